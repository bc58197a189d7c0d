package types

// Point is a pixel coordinate on an image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Coordinates locate a measured angle on the analyzed image, in the
// 1000x1000 reference space used by the analysis model.
type Coordinates struct {
	Vertex Point `json:"vertex"`
	Point1 Point `json:"point1"`
	Point2 Point `json:"point2"`
}

// Confidence is the model's self-reported confidence for one measurement.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// AngleMeasurement is one measured geometric angle on a tool, enriched with
// the applicable standard.
type AngleMeasurement struct {
	AngleName     string  `json:"angleName"`
	MeasuredValue float64 `json:"measuredValue"`
	// OriginalValue is the value as first produced by the analysis. Calibration
	// always offsets from it, never from a previously adjusted value.
	OriginalValue  *float64     `json:"originalValue,omitempty"`
	Standard       string       `json:"standard"`
	IsCompliant    bool         `json:"isCompliant"`
	Recommendation string       `json:"recommendation,omitempty"`
	Coordinates    *Coordinates `json:"coordinates,omitempty"`
	Confidence     Confidence   `json:"confidence"`
}

// Base returns the value calibration offsets are applied to.
func (m AngleMeasurement) Base() float64 {
	if m.OriginalValue != nil {
		return *m.OriginalValue
	}
	return m.MeasuredValue
}
