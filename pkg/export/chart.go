package export

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

const chartTitle = "Measured tool angles"

var ErrNothingToChart = errors.New("no successful measurements to chart")

// ChartPNG renders measured angles as a grouped bar chart, one group per
// angle name and one bar per report.
func ChartPNG(w io.Writer, reports []types.Report) error {
	angles, labels, values := chartSeries(reports)
	if len(values) == 0 {
		return ErrNothingToChart
	}

	p := plot.New()
	p.Title.Text = chartTitle
	p.Y.Label.Text = "Degrees"
	p.Legend.Top = true

	barWidth := vg.Points(60 / float64(len(values)))
	for i, vs := range values {
		bars, err := plotter.NewBarChart(plotter.Values(vs), barWidth)
		if err != nil {
			return errors.Wrap(err, "failed to create bar chart")
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = barWidth * vg.Length(float64(i)-float64(len(values)-1)/2)

		p.Add(bars)
		p.Legend.Add(labels[i], bars)
	}
	p.NominalX(angles...)

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return errors.Wrap(err, "failed to render chart")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "failed to write chart")
}

// ChartHTML renders the same chart as ChartPNG as an interactive page.
func ChartHTML(w io.Writer, reports []types.Report) error {
	angles, labels, values := chartSeries(reports)
	if len(values) == 0 {
		return ErrNothingToChart
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: ReportTitle, Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: chartTitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Degrees"}),
	)

	bar.SetXAxis(angles)
	for i, vs := range values {
		data := make([]opts.BarData, len(vs))
		for j, v := range vs {
			data[j] = opts.BarData{Value: v}
		}
		bar.AddSeries(labels[i], data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	}

	return errors.Wrap(bar.Render(w), "failed to render chart")
}
