package export

import (
	"bytes"
	"io"
	"strconv"

	"codeberg.org/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

const (
	pageMargin = 14.0
	imageWidth = 100.0
)

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Status", 28},
	{"Angle Name", 58},
	{"Measured", 26},
	{"Standard", 40},
	{"Confidence", 30},
}

// PDF writes one page per report: the image, a measurement table and the
// recommendations for every deviation.
func PDF(w io.Writer, reports []types.Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if len(reports) == 0 {
		pdf.AddPage()
		pdfHeader(pdf, tr)
		pdf.SetFont("Helvetica", "", 12)
		pdf.Text(pageMargin, 32, "No reports.")
	}

	for i, r := range reports {
		pdf.AddPage()
		pdfHeader(pdf, tr)

		pdf.SetFont("Helvetica", "", 12)
		pdf.Text(pageMargin, 30, tr("File: "+fileName(r)))
		pdf.Text(pageMargin, 36, "Date: "+r.Timestamp.Format("2006-01-02"))
		if r.Material != "" {
			pdf.Text(pageMargin, 42, tr("Tool material: "+r.Material))
		}
		pdf.SetY(48)

		if r.HasImage() {
			pdfImage(pdf, "report-"+strconv.Itoa(i), r)
		}

		switch {
		case r.Error != "":
			pdf.SetTextColor(200, 0, 0)
			pdf.MultiCell(0, 6, tr("Error: "+r.Error), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		case r.Results == nil:
			pdf.MultiCell(0, 6, "No results for this image.", "", "L", false)
		default:
			pdfTable(pdf, tr, r.Results)
			pdfRecommendations(pdf, tr, r.NonCompliant())
		}
	}

	if err := pdf.Error(); err != nil {
		return errors.Wrap(err, "failed to build pdf")
	}
	return errors.Wrap(pdf.Output(w), "failed to write pdf")
}

func pdfHeader(pdf *fpdf.Fpdf, tr func(string) string) {
	pdf.SetFillColor(251, 146, 60)
	pdf.Rect(0, 0, 210, 20, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(pageMargin, 13, tr(ReportTitle))
	pdf.SetTextColor(0, 0, 0)
}

func pdfImage(pdf *fpdf.Fpdf, name string, r types.Report) {
	opt := fpdf.ImageOptions{ImageType: "JPG"}
	if r.ImageMIME == "image/png" {
		opt.ImageType = "PNG"
	}

	info := pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(r.Image))
	if info == nil || pdf.Err() {
		// A broken image should not lose the rest of the report.
		pdf.ClearError()
		pdf.MultiCell(0, 6, "(Image could not be loaded for export)", "", "L", false)
		return
	}

	h := imageWidth * info.Height() / info.Width()
	pdf.ImageOptions(name, pageMargin, pdf.GetY(), imageWidth, h, true, opt, 0, "")
	pdf.Ln(6)
}

func pdfTable(pdf *fpdf.Fpdf, tr func(string) string, results []types.AngleMeasurement) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(249, 115, 22)
	pdf.SetTextColor(255, 255, 255)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	for _, m := range results {
		row := []string{status(m), m.AngleName, degrees(m.MeasuredValue), m.Standard, string(m.Confidence)}
		for i, c := range pdfColumns {
			pdf.CellFormat(c.width, 7, tr(row[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func pdfRecommendations(pdf *fpdf.Fpdf, tr func(string) string, issues []types.AngleMeasurement) {
	if len(issues) == 0 {
		return
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Recommendations", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, m := range issues {
		if m.Recommendation == "" {
			continue
		}
		pdf.MultiCell(0, 5, tr(m.AngleName+": "+m.Recommendation), "", "L", false)
		pdf.Ln(2)
	}
}
