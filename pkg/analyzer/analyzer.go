// Package analyzer turns uploaded tool images into compliance reports. The
// angle estimates come from a multimodal Model; every estimate is then
// evaluated against the standards catalog for the selected tool material.
package analyzer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cuttingtool/toolinspect/pkg/imageprep"
	"github.com/cuttingtool/toolinspect/pkg/standards"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

// DefaultMaxImages is the number of images accepted per analysis run.
const DefaultMaxImages = 3

// FailedAnalysisMessage is the user-facing error recorded on a report whose
// image could not be analyzed.
const FailedAnalysisMessage = "Failed to analyze image. Please try again."

var (
	ErrNoImages       = errors.New("no images to analyze")
	ErrTooManyImages  = errors.New("too many images")
	ErrNoMeasurements = errors.New("no measurements to base recommendations on")
)

// Upload is one image submitted for analysis.
type Upload struct {
	FileName string
	Data     []byte
}

// Analyzer runs uploads through a Model and the standards catalog.
type Analyzer struct {
	model     Model
	catalog   atomic.Pointer[standards.Catalog]
	maxImages int

	now   func() time.Time
	newID func() string
}

// New creates an Analyzer. maxImages <= 0 selects DefaultMaxImages.
func New(model Model, catalog *standards.Catalog, maxImages int) *Analyzer {
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}
	a := &Analyzer{
		model:     model,
		maxImages: maxImages,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	a.catalog.Store(catalog)
	return a
}

// SetCatalog swaps the catalog used for subsequent evaluations. It is safe
// to call while an analysis is running.
func (a *Analyzer) SetCatalog(c *standards.Catalog) {
	a.catalog.Store(c)
}

// Catalog returns the catalog in use.
func (a *Analyzer) Catalog() *standards.Catalog {
	return a.catalog.Load()
}

// Evaluate attaches the standard, compliance flag and recommendation to each
// raw measurement. The measured value is also recorded as the original value,
// which calibration later offsets from.
func (a *Analyzer) Evaluate(raw []RawMeasurement, material string) []types.AngleMeasurement {
	catalog := a.Catalog()
	out := make([]types.AngleMeasurement, 0, len(raw))
	for _, r := range raw {
		ev := catalog.Evaluate(r.AngleName, r.MeasuredValue, material)
		original := r.MeasuredValue
		out = append(out, types.AngleMeasurement{
			AngleName:      r.AngleName,
			MeasuredValue:  r.MeasuredValue,
			OriginalValue:  &original,
			Standard:       ev.Standard,
			IsCompliant:    ev.Compliant,
			Recommendation: ev.Recommendation,
			Coordinates:    r.Coordinates,
			Confidence:     r.Confidence,
		})
	}
	return out
}

// Analyze produces the report for one upload. It never fails: any error is
// logged and recorded on the report instead.
func (a *Analyzer) Analyze(ctx context.Context, u Upload, material string) types.Report {
	report := types.Report{
		ID:        a.newID(),
		Timestamp: a.now(),
		FileName:  u.FileName,
		Material:  material,
	}

	logger := logrus.WithFields(logrus.Fields{
		"file":     u.FileName,
		"material": material,
	})

	img, err := imageprep.Prepare(u.Data)
	if err != nil {
		logger.WithError(err).Error("failed to prepare image")
		report.Error = FailedAnalysisMessage
		return report
	}
	report.Image = img.Data
	report.ImageMIME = img.MIME

	raw, err := a.model.Measure(ctx, img.Data, img.MIME)
	if err != nil {
		logger.WithError(err).Error("failed to analyze image")
		report.Error = FailedAnalysisMessage
		return report
	}

	report.Results = a.Evaluate(raw, material)
	logger.WithField("measurements", len(report.Results)).Info("image analyzed")
	return report
}

// AnalyzeAll analyzes uploads one at a time so that a failure on one image
// does not affect the others. onReport, if not nil, is called after each
// image. Only cancellation of ctx stops the run early.
func (a *Analyzer) AnalyzeAll(ctx context.Context, uploads []Upload, material string, onReport func(i int, r types.Report)) ([]types.Report, error) {
	if len(uploads) == 0 {
		return nil, ErrNoImages
	}
	if len(uploads) > a.maxImages {
		return nil, errors.Wrapf(ErrTooManyImages, "got %d, at most %d allowed", len(uploads), a.maxImages)
	}

	reports := make([]types.Report, 0, len(uploads))
	for i, u := range uploads {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r := a.Analyze(ctx, u, material)
		reports = append(reports, r)
		if onReport != nil {
			onReport(i, r)
		}
	}
	return reports, nil
}
