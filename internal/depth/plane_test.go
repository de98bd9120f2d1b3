package depth

import (
	"errors"
	"math"
	"strings"
	"testing"
)

// Recovering a noise-free synthetic plane z = 2x + 3y + 1000.
func TestFitPlaneRecovery(t *testing.T) {
	im := gradientImage(20, 20) // 1000 + 2x + 3y
	p, err := FitPlane(im, sentinel, 100)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if math.Abs(p.A-2) > 0.1 || math.Abs(p.B-3) > 0.1 || math.Abs(p.C-1000) > 0.1 {
		t.Errorf("recovered (%f, %f, %f), want (2, 3, 1000)", p.A, p.B, p.C)
	}
}

func TestFitPlaneInsufficientData(t *testing.T) {
	im := gradientImage(5, 5)
	_, err := FitPlane(im, sentinel, 100)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Valid != 25 || insufficient.Required != 100 {
		t.Errorf("error carries %d/%d, want 25/100", insufficient.Valid, insufficient.Required)
	}
}

func TestDeviationAndFlatness(t *testing.T) {
	im := gradientImage(16, 16)
	im.Set(4, 4, im.At(4, 4)+10) // one bump
	p := PlaneParams{A: 2, B: 3, C: 1000}

	dev := Deviation(im, p)
	if math.Abs(dev.At(0, 0)) > 1e-9 {
		t.Errorf("deviation at origin: %f", dev.At(0, 0))
	}
	if math.Abs(dev.At(4, 4)-10) > 1e-9 {
		t.Errorf("deviation at bump: %f", dev.At(4, 4))
	}

	flat, ok := Flatness(im, p, sentinel)
	if !ok {
		t.Fatal("flatness undefined")
	}
	if math.Abs(flat-10) > 1e-9 {
		t.Errorf("flatness = %f, want 10", flat)
	}
}

func TestFlatnessUndefinedWithoutValidPixels(t *testing.T) {
	im := flatImage(4, 4, sentinel)
	if _, ok := Flatness(im, PlaneParams{}, sentinel); ok {
		t.Error("expected undefined flatness")
	}
}

func TestCalibratePlane(t *testing.T) {
	im := gradientImage(10, 10)
	im.Set(7, 7, sentinel)
	p := PlaneParams{A: 2, B: 3, C: 1000}

	cal := CalibratePlane(im, p, sentinel)
	// deviation + c: a perfect plane calibrates to the constant intercept.
	if math.Abs(cal.At(3, 3)-1000) > 1e-9 {
		t.Errorf("calibrated value %f, want 1000", cal.At(3, 3))
	}
	if cal.At(7, 7) != float64(sentinel) {
		t.Error("invalid pixel must carry the sentinel value in the output")
	}
}

func TestCalibrateImageSuccess(t *testing.T) {
	im := gradientImage(20, 20)
	cfg := DefaultCalibrateConfig()

	res := CalibrateImage(im, cfg)
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Reason)
	}
	if math.Abs(res.Plane.A-2) > 0.2 || math.Abs(res.Plane.B-3) > 0.2 {
		t.Errorf("plane (%f, %f, %f)", res.Plane.A, res.Plane.B, res.Plane.C)
	}
	if !res.FlatnessOK {
		t.Error("flatness should be defined")
	}
	if res.Filtered == nil {
		t.Error("filtered region should be recorded when the chain ran")
	}
	if res.Calibrated == nil || res.Deviation == nil {
		t.Error("success result must carry calibrated and deviation grids")
	}
}

func TestCalibrateImageInsufficientPixels(t *testing.T) {
	im := flatImage(20, 20, sentinel)
	for i := 0; i < 30; i++ {
		im.Pix[i] = 30000
	}
	cfg := DefaultCalibrateConfig()
	cfg.Filter.Enabled = false

	res := CalibrateImage(im, cfg)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Reason, "insufficient valid pixels") {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
}

func TestCalibrateImageRatioFloor(t *testing.T) {
	// Enough absolute pixels but below the 10% ratio floor.
	im := flatImage(60, 60, sentinel)
	for i := 0; i < 150; i++ {
		im.Pix[i] = 30000
	}
	cfg := DefaultCalibrateConfig()
	cfg.Filter.Enabled = false

	res := CalibrateImage(im, cfg)
	if res.Success {
		t.Fatal("expected ratio-floor failure")
	}
}

func TestCalibrateImageEmptyROI(t *testing.T) {
	im := gradientImage(10, 10)
	empty := ExtractROI(im, ROI{X: 100, Y: 100, Width: 5, Height: 5})
	res := CalibrateImage(empty, DefaultCalibrateConfig())
	if res.Success {
		t.Fatal("empty region must report insufficient data, not succeed")
	}
}
