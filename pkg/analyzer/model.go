package analyzer

import (
	"context"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

// RawMeasurement is one angle as reported by the vision model, before any
// standard is applied.
type RawMeasurement struct {
	AngleName     string             `json:"angleName"`
	MeasuredValue float64            `json:"measuredValue"`
	Coordinates   *types.Coordinates `json:"coordinates,omitempty"`
	Confidence    types.Confidence   `json:"confidence"`
}

// Model is the multimodal service that estimates tool angles and writes
// design advice.
type Model interface {
	// Measure estimates the angles visible in an image.
	Measure(ctx context.Context, image []byte, mime string) ([]RawMeasurement, error)
	// Advise answers a free-form engineering prompt in Markdown.
	Advise(ctx context.Context, prompt string) (string, error)
}
