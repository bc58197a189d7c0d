package standards

import "strconv"

const (
	// NotSpecified is the standard string reported when no range exists for
	// an (angle name, material) pair.
	NotSpecified = "Not Specified"

	// DefaultMaterial is used wherever the surrounding application does not
	// name a tool material.
	DefaultMaterial = "HSS"
)

// AngleRange is an allowed interval of an angle, in degrees. Both bounds are
// inclusive.
type AngleRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies within [Min, Max].
func (r AngleRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// String renders the range as "<min>° - <max>°" using the shortest decimal
// form of each stored bound.
func (r AngleRange) String() string {
	return formatDegrees(r.Min) + "° - " + formatDegrees(r.Max) + "°"
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Table maps a tool material to the ranges of its named angles.
type Table map[string]map[string]AngleRange

// Evaluation is the outcome of checking one value against the catalog.
// Standard, Compliant and Recommendation are always computed together.
type Evaluation struct {
	// Range is nil when the catalog has no range for the pair.
	Range          *AngleRange `json:"range,omitempty"`
	Standard       string      `json:"standard"`
	Compliant      bool        `json:"isCompliant"`
	Recommendation string      `json:"recommendation,omitempty"`
}
