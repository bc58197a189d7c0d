package types

import (
	"fmt"
	"time"
)

// Report is the outcome of analyzing one uploaded image. Exactly one of
// Results and Error is meaningful: a failed analysis carries an Error and nil
// Results.
type Report struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	FileName  string             `json:"fileName,omitempty"`
	Material  string             `json:"material"`
	Results   []AngleMeasurement `json:"results"`
	Error     string             `json:"error,omitempty"`

	// Image is the prepared image the analysis ran on. It is served separately
	// and never inlined into JSON.
	Image     []byte `json:"-"`
	ImageMIME string `json:"imageMime,omitempty"`
}

// HasImage reports whether the report carries image bytes.
func (r Report) HasImage() bool {
	return len(r.Image) > 0
}

// NonCompliant returns the measurements that violate their standard.
func (r Report) NonCompliant() []AngleMeasurement {
	var out []AngleMeasurement
	for _, m := range r.Results {
		if !m.IsCompliant {
			out = append(out, m)
		}
	}
	return out
}

// Summary is a one-line compliance verdict for listings.
func (r Report) Summary() string {
	if r.Error != "" {
		return "Error"
	}
	if r.Results == nil {
		return "No Data"
	}
	n := len(r.NonCompliant())
	if n == 0 {
		return "Passed"
	}
	return fmt.Sprintf("%d Issues", n)
}

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	FileName         string    `json:"fileName,omitempty"`
	Material         string    `json:"material"`
	Summary          string    `json:"summary"`
	MeasurementCount int       `json:"measurementCount"`
}

// Summarize builds the listing view of r.
func (r Report) Summarize() ReportSummary {
	return ReportSummary{
		ID:               r.ID,
		Timestamp:        r.Timestamp,
		FileName:         r.FileName,
		Material:         r.Material,
		Summary:          r.Summary(),
		MeasurementCount: len(r.Results),
	}
}

// ResultSet is the active set of reports shown to the user, together with the
// calibration offset most recently applied to it.
type ResultSet struct {
	Reports  []Report `json:"reports"`
	Material string   `json:"material"`
	Offset   float64  `json:"offset"`
}
