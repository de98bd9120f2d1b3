package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sonme-data/depth.report/internal/model"
)

// SaveCurvePNG writes the compensation curve and its calibration samples
// as a PNG for station logbooks.
func SaveCurvePNG(m *model.Model, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Compensation Curve"
	p.X.Label.Text = "Measured (mm)"
	p.Y.Label.Text = "Actual (mm)"

	samples := make(plotter.XYs, len(m.Measured))
	for i := range m.Measured {
		samples[i] = plotter.XY{X: m.Measured[i], Y: m.Actual[i]}
	}
	scatter, err := plotter.NewScatter(samples)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Points(3)

	lo, hi := m.Domain()
	curve := make(plotter.XYs, 0, curveSamples+1)
	for i := 0; i <= curveSamples; i++ {
		x := lo + (hi-lo)*float64(i)/curveSamples
		curve = append(curve, plotter.XY{X: x, Y: m.Inverse.Evaluate(x)})
	}
	line, err := plotter.NewLine(curve)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)

	p.Add(line, scatter)
	p.Legend.Add("fitted curve", line)
	p.Legend.Add("samples", scatter)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save curve plot: %w", err)
	}
	return nil
}

// SaveResidualsPNG writes before/after compensation residuals against
// ground truth as a PNG.
func SaveResidualsPNG(actual, measured, compensated []float64, path string) error {
	if len(actual) != len(measured) || len(actual) != len(compensated) {
		return fmt.Errorf("residual plot needs equal-length sequences")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Residuals vs Ground Truth"
	p.X.Label.Text = "Actual (mm)"
	p.Y.Label.Text = "Error (mm)"

	before := make(plotter.XYs, len(actual))
	after := make(plotter.XYs, len(actual))
	for i := range actual {
		before[i] = plotter.XY{X: actual[i], Y: measured[i] - actual[i]}
		after[i] = plotter.XY{X: actual[i], Y: compensated[i] - actual[i]}
	}

	beforeLine, err := plotter.NewLine(before)
	if err != nil {
		return err
	}
	beforeLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	beforeLine.Width = vg.Points(1)

	afterLine, err := plotter.NewLine(after)
	if err != nil {
		return err
	}
	afterLine.Color = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	afterLine.Width = vg.Points(1)

	p.Add(beforeLine, afterLine)
	p.Legend.Add("before", beforeLine)
	p.Legend.Add("after", afterLine)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save residual plot: %w", err)
	}
	return nil
}
