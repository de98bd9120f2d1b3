package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonme-data/depth.report/internal/linearity"
	"github.com/sonme-data/depth.report/internal/model"
)

var (
	reportActual   = []float64{0, 5, 10, 15, 20, 25, 30, 35, 40}
	reportMeasured = []float64{0.05, 5.02, 10.08, 15.01, 19.98, 25.05, 30.02, 34.95, 40.03}
)

func buildTestModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Build(reportActual, reportMeasured)
	require.NoError(t, err)
	return m
}

func TestWriteHTML(t *testing.T) {
	m := buildTestModel(t)

	compensated := make([]float64, len(reportMeasured))
	for i, v := range reportMeasured {
		compensated[i] = m.Inverse.Evaluate(v)
	}
	effect, err := linearity.CompareEffect(reportActual, reportMeasured, compensated, 0)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reports", "calibration.html")
	require.NoError(t, WriteHTML(Summary{
		Station: "station-07",
		RunID:   "run-1",
		Model:   m,
		Effect:  &effect,
	}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Compensation Curve")
	assert.Contains(t, html, "Linearity")
}

func TestWriteHTMLWithoutEffect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.html")
	require.NoError(t, WriteHTML(Summary{Model: buildTestModel(t)}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Compensation Curve")
	assert.NotContains(t, string(data), "Abs max dev")
}

func TestWriteHTMLNeedsModel(t *testing.T) {
	err := WriteHTML(Summary{}, filepath.Join(t.TempDir(), "r.html"))
	assert.ErrorContains(t, err, "needs a model")
}

func TestSaveCurvePNG(t *testing.T) {
	m := buildTestModel(t)
	path := filepath.Join(t.TempDir(), "plots", "curve.png")
	require.NoError(t, SaveCurvePNG(m, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSaveResidualsPNG(t *testing.T) {
	m := buildTestModel(t)
	compensated := make([]float64, len(reportMeasured))
	for i, v := range reportMeasured {
		compensated[i] = m.Inverse.Evaluate(v)
	}

	path := filepath.Join(t.TempDir(), "plots", "residuals.png")
	require.NoError(t, SaveResidualsPNG(reportActual, reportMeasured, compensated, path))

	_, err := os.Stat(path)
	assert.NoError(t, err)

	err = SaveResidualsPNG(reportActual, reportMeasured[:3], compensated, path)
	assert.ErrorContains(t, err, "equal-length")
}
