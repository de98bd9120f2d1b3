// Package report renders calibration results for humans: an interactive
// HTML page built with go-echarts, plus standalone PNG charts via
// gonum/plot for station logbooks.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/sonme-data/depth.report/internal/linearity"
	"github.com/sonme-data/depth.report/internal/model"
)

// curveSamples is how many points the fitted curve is drawn with.
const curveSamples = 200

// Summary is everything one calibration report draws from.
type Summary struct {
	Station string
	RunID   string
	Model   *model.Model
	// Effect compares linearity before and after compensation; nil when
	// the verification step was skipped.
	Effect *linearity.Effect
}

// WriteHTML renders the calibration report to an HTML file.
func WriteHTML(s Summary, path string) error {
	if s.Model == nil {
		return fmt.Errorf("report needs a model")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	page := components.NewPage()
	page.AddCharts(curveChart(s))
	if s.Effect != nil {
		page.AddCharts(residualChart(s))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return f.Close()
}

// curveChart plots the calibration samples against the fitted inverse
// curve (measured depth in, true displacement out).
func curveChart(s Summary) *charts.Scatter {
	m := s.Model

	pts := make([]opts.ScatterData, 0, len(m.Measured))
	for i := range m.Measured {
		pts = append(pts, opts.ScatterData{Value: []interface{}{m.Measured[i], m.Actual[i]}})
	}

	lo, hi := m.Domain()
	curve := make([]opts.ScatterData, 0, curveSamples+1)
	for i := 0; i <= curveSamples; i++ {
		x := lo + (hi-lo)*float64(i)/curveSamples
		curve = append(curve, opts.ScatterData{Value: []interface{}{x, m.Inverse.Evaluate(x)}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Depth Calibration", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Compensation Curve",
			Subtitle: fmt.Sprintf("station=%s run=%s points=%d version=%s", s.Station, s.RunID, m.CalibrationPoints, m.ModelVersion),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Measured (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Actual (mm)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("samples", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	scatter.AddSeries("fitted curve", curve, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
	return scatter
}

// residualChart compares the BFSL statistics before and after
// compensation.
func residualChart(s Summary) *charts.Bar {
	e := s.Effect

	x := []string{"Linearity (%FS)", "Abs max dev (mm)", "RMS error (mm)", "MAE (mm)"}
	before := []opts.BarData{
		{Value: e.Before.Linearity},
		{Value: e.Before.AbsMaxDeviation},
		{Value: e.Before.RMSError},
		{Value: e.Before.MAE},
	}
	after := []opts.BarData{
		{Value: e.After.Linearity},
		{Value: e.After.AbsMaxDeviation},
		{Value: e.After.RMSError},
		{Value: e.After.MAE},
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{
			Title: "Linearity",
			Subtitle: fmt.Sprintf("before=%.4f%%  after=%.4f%%  improvement=%.1f%%",
				e.Before.Linearity, e.After.Linearity, e.ImprovementPercent),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("before", before, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("after", after, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}
