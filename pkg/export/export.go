// Package export renders a result set into downloadable documents: a PDF
// report, an Excel workbook, a CSV table and measurement charts.
package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

// Format is an export document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPNG  Format = "png"
	FormatHTML Format = "html"
)

// ReportTitle heads every exported document.
const ReportTitle = "Cutting Tool Inspector - Analysis Report"

var ErrUnknownFormat = errors.New("unknown export format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatPDF, FormatXLSX, FormatCSV, FormatPNG, FormatHTML}
}

// ParseFormat accepts a format name, case-insensitively, with or without a
// leading dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	if f == "excel" {
		return FormatXLSX, nil
	}
	return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPNG:
		return "image/png"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

// FileName returns the default download name for f.
func (f Format) FileName() string {
	switch f {
	case FormatPDF:
		return "tool-analysis-report.pdf"
	case FormatPNG:
		return "tool-analysis-chart.png"
	case FormatHTML:
		return "tool-analysis-chart.html"
	}
	return "analysis-reports." + string(f)
}

// Write renders reports as f into w.
func Write(w io.Writer, f Format, reports []types.Report) error {
	switch f {
	case FormatPDF:
		return PDF(w, reports)
	case FormatXLSX:
		return XLSX(w, reports)
	case FormatCSV:
		return CSV(w, reports)
	case FormatPNG:
		return ChartPNG(w, reports)
	case FormatHTML:
		return ChartHTML(w, reports)
	}
	return errors.Wrapf(ErrUnknownFormat, "%q", f)
}

func status(m types.AngleMeasurement) string {
	if m.IsCompliant {
		return "Compliant"
	}
	return "Deviation"
}

func fileName(r types.Report) string {
	if r.FileName == "" {
		return "Untitled"
	}
	return r.FileName
}

func degrees(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "°"
}

// chartSeries arranges the successful reports for charting: one series per
// report over the union of angle names in first-seen order.
func chartSeries(reports []types.Report) (angles []string, labels []string, values [][]float64) {
	index := map[string]int{}
	for _, r := range reports {
		for _, m := range r.Results {
			if _, ok := index[m.AngleName]; !ok {
				index[m.AngleName] = len(angles)
				angles = append(angles, m.AngleName)
			}
		}
	}

	for i, r := range reports {
		if r.Error != "" || len(r.Results) == 0 {
			continue
		}
		vs := make([]float64, len(angles))
		for _, m := range r.Results {
			vs[index[m.AngleName]] = m.MeasuredValue
		}
		label := r.FileName
		if label == "" {
			label = "Report " + strconv.Itoa(i+1)
		}
		labels = append(labels, label)
		values = append(values, vs)
	}
	return angles, labels, values
}
