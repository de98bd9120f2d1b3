package service

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonme-data/depth.report/internal/calibdb"
	"github.com/sonme-data/depth.report/internal/depth"
	"github.com/sonme-data/depth.report/internal/imageio"
)

// flatExposure writes a constant-depth image for a displacement in mm.
func flatExposure(t *testing.T, st *Station, dir string, seq int, mm float64) string {
	t.Helper()
	img := depth.NewImage(64, 48)
	g := st.Converter.MMToGray(mm)
	for i := range img.Pix {
		img.Pix[i] = g
	}
	path := filepath.Join(dir, fmt.Sprintf("exp_%d.png", seq))
	require.NoError(t, imageio.WriteDepthImage(img, path))
	return path
}

// writeDataset creates a full calibration directory: one flat exposure per
// displacement plus the ground-truth CSV.
func writeDataset(t *testing.T, st *Station, displacements []float64) string {
	t.Helper()
	dir := t.TempDir()
	csv := "index,displacement\n"
	for i, d := range displacements {
		flatExposure(t, st, dir, i+1, d)
		csv += fmt.Sprintf("%d,%g\n", i+1, d)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "truth.csv"), []byte(csv), 0o644))
	return dir
}

var testDisplacements = []float64{0, 5, 10, 15, 20, 25, 30, 35, 40}

func TestCalibrationRunEndToEnd(t *testing.T) {
	st := NewStation("station-test", nil)
	dir := writeDataset(t, st, testDisplacements)

	db, err := calibdb.NewDB(filepath.Join(t.TempDir(), "calib.db"))
	require.NoError(t, err)
	defer db.Close()

	modelPath := filepath.Join(t.TempDir(), "models", "station-test.json")
	svc := &CalibrationService{Station: st, DB: db}

	out, err := svc.Run(dir, modelPath)
	require.NoError(t, err)
	require.NotNil(t, out.Model)
	assert.Equal(t, 9, out.Model.CalibrationPoints)
	assert.Equal(t, 3, out.Model.Degree())
	assert.Len(t, out.Samples, 9)
	for _, s := range out.Samples {
		assert.True(t, s.Accepted, "sample %s rejected: %s", s.ImagePath, s.Reason)
	}

	// Flat targets measure almost exactly their true displacement, so the
	// fitted curve is near-identity and residuals stay tiny.
	assert.Less(t, out.Effect.After.Linearity, 0.05)

	_, err = os.Stat(out.ModelPath)
	require.NoError(t, err)

	runs, err := db.Runs(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "complete", runs[0].Status)
	assert.Equal(t, 9, runs[0].NumPoints)

	samples, err := db.RunSamples(out.RunID)
	require.NoError(t, err)
	assert.Len(t, samples, 9)
}

func TestCalibrationSkipsBadExposures(t *testing.T) {
	st := NewStation("station-test", nil)
	dir := writeDataset(t, st, testDisplacements)

	// Overwrite one exposure with all-invalid pixels.
	bad := depth.NewImage(64, 48)
	for i := range bad.Pix {
		bad.Pix[i] = 65535
	}
	require.NoError(t, imageio.WriteDepthImage(bad, filepath.Join(dir, "exp_5.png")))

	svc := &CalibrationService{Station: st}
	out, err := svc.Run(dir, "")
	require.NoError(t, err)
	require.NotNil(t, out.Model)
	assert.Equal(t, 8, out.Model.CalibrationPoints)

	rejected := 0
	for _, s := range out.Samples {
		if !s.Accepted {
			rejected++
			assert.Contains(t, s.Reason, "insufficient valid pixels")
		}
	}
	assert.Equal(t, 1, rejected)
}

func TestCalibrationFailsWithTooFewUsableSamples(t *testing.T) {
	st := NewStation("station-test", nil)
	dir := writeDataset(t, st, []float64{0, 10, 20})

	db, err := calibdb.NewDB(filepath.Join(t.TempDir(), "calib.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := &CalibrationService{Station: st, DB: db}
	_, err = svc.Run(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 4")

	runs, err := db.Runs(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Status, "failed")
}

func TestCompensationRoundTrip(t *testing.T) {
	st := NewStation("station-test", nil)
	dir := writeDataset(t, st, testDisplacements)

	cal := &CalibrationService{Station: st}
	calOut, err := cal.Run(dir, "")
	require.NoError(t, err)

	comp := &CompensationService{Station: st, Model: calOut.Model}
	inPath := flatExposure(t, st, t.TempDir(), 1, 20.0)
	outPath := filepath.Join(t.TempDir(), "out", "exp_1.png")

	outcome, err := comp.CompensateFile(inPath, outPath)
	require.NoError(t, err)
	assert.Equal(t, outcome.TotalPixels, outcome.CompensatedPixels)
	assert.Zero(t, outcome.InvalidPixels)

	compensated, err := imageio.ReadDepthImage(outPath, imageio.DefaultLoadOptions())
	require.NoError(t, err)
	mm := st.Converter.GrayToMMRaw(float64(compensated.At(10, 10)))
	assert.InDelta(t, 20.0, mm, 0.05)
}

func TestCompensateDirKeepsGoing(t *testing.T) {
	st := NewStation("station-test", nil)
	dir := writeDataset(t, st, testDisplacements)

	cal := &CalibrationService{Station: st}
	calOut, err := cal.Run(dir, "")
	require.NoError(t, err)

	inDir := t.TempDir()
	flatExposure(t, st, inDir, 1, 10.0)
	flatExposure(t, st, inDir, 2, 30.0)
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "exp_3.png"), []byte("junk"), 0o644))

	comp := &CompensationService{Station: st, Model: calOut.Model}
	results, err := comp.CompensateDir(inDir, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	require.Len(t, results, 3)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			_, statErr := os.Stat(r.OutputPath)
			assert.NoError(t, statErr)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestVerificationRun(t *testing.T) {
	st := NewStation("station-test", nil)
	dir := writeDataset(t, st, testDisplacements)

	cal := &CalibrationService{Station: st}
	calOut, err := cal.Run(dir, "")
	require.NoError(t, err)

	verify := &VerificationService{Station: st, Model: calOut.Model}
	out, err := verify.Run(dir)
	require.NoError(t, err)
	assert.Len(t, out.Actual, 9)
	assert.Len(t, out.Compensated, 9)
	assert.Less(t, out.Effect.After.Linearity, 0.05)
}

func TestRepeatabilityAnalyze(t *testing.T) {
	st := NewStation("station-test", nil)
	dir := t.TempDir()

	var paths []string
	for i := 0; i < 5; i++ {
		paths = append(paths, flatExposure(t, st, dir, i+1, 20.0))
	}

	svc := &RepeatabilityService{Station: st}
	res, err := svc.Analyze(paths)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Exposures)
	assert.InDelta(t, 20.0, res.Mean, 0.01)
	assert.InDelta(t, 0.0, res.Sigma, 1e-9)
	assert.InDelta(t, 0.0, res.PeakToPeak, 1e-9)
	assert.InDelta(t, 0.0, res.MeanIntraSigma, 1e-9)

	_, err = svc.Analyze(paths[:1])
	assert.ErrorContains(t, err, "at least 2 exposures")
}

func TestNewStationResolvesDefaults(t *testing.T) {
	st := NewStation("s", nil)
	assert.Equal(t, uint16(65535), st.Sentinel())
	assert.Equal(t, depth.FullImage, st.ROI)
	assert.True(t, st.Calibrate.Filter.Enabled)
	assert.Equal(t, 3.0, st.Calibrate.Filter.OutlierStdFactor)
	assert.Equal(t, 3, st.Calibrate.Filter.MedianSize)
	assert.Equal(t, 1.0, st.Calibrate.Filter.GaussianSigma)
	assert.True(t, st.Extrap.Enabled)
	assert.Equal(t, 41.0, st.FullScale)
}
