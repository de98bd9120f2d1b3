package depth

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PlaneParams are the coefficients of z = a·x + b·y + c fitted over the
// valid pixels of a region.
type PlaneParams struct {
	A, B, C float64
}

// InsufficientDataError reports a plane fit attempted with fewer valid
// pixels than the configured floor.
type InsufficientDataError struct {
	Valid    int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient valid pixels: %d < %d", e.Valid, e.Required)
}

// FitPlane solves the over-determined system [x, y, 1]·[a b c]ᵗ ≈ z by
// least squares over the valid pixels.
func FitPlane(im *Image, sentinel uint16, minValidPixels int) (PlaneParams, error) {
	valid := CountValid(im, sentinel)
	if valid < minValidPixels {
		return PlaneParams{}, &InsufficientDataError{Valid: valid, Required: minValidPixels}
	}

	a := mat.NewDense(valid, 3, nil)
	z := mat.NewVecDense(valid, nil)
	row := 0
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			v := im.At(x, y)
			if v == sentinel {
				continue
			}
			a.Set(row, 0, float64(x))
			a.Set(row, 1, float64(y))
			a.Set(row, 2, 1)
			z.SetVec(row, float64(v))
			row++
		}
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, z); err != nil {
		return PlaneParams{}, fmt.Errorf("plane fit: %w", err)
	}
	return PlaneParams{A: sol.AtVec(0), B: sol.AtVec(1), C: sol.AtVec(2)}, nil
}

// Deviation computes z − (a·x + b·y + c) for every pixel of the grid,
// including invalid ones; callers restrict to valid pixels as needed.
func Deviation(im *Image, p PlaneParams) *FloatGrid {
	out := NewFloatGrid(im.W, im.H)
	for y := 0; y < im.H; y++ {
		base := p.B*float64(y) + p.C
		for x := 0; x < im.W; x++ {
			out.Set(x, y, float64(im.At(x, y))-(p.A*float64(x)+base))
		}
	}
	return out
}

// Flatness returns the peak-to-peak deviation over valid pixels. The second
// return is false when no valid pixels remain.
func Flatness(im *Image, p PlaneParams, sentinel uint16) (float64, bool) {
	dev := Deviation(im, p)
	first := true
	var lo, hi float64
	for i, v := range im.Pix {
		if v == sentinel {
			continue
		}
		d := dev.Pix[i]
		if first {
			lo, hi = d, d
			first = false
			continue
		}
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	if first {
		return 0, false
	}
	return hi - lo, true
}

// CalibratePlane removes the fitted tilt: output = deviation + c, so the
// result reads as height relative to the fitted plane offset to the plane's
// intercept. Invalid pixels are forced back to the sentinel value.
func CalibratePlane(im *Image, p PlaneParams, sentinel uint16) *FloatGrid {
	out := Deviation(im, p)
	for i := range out.Pix {
		if im.Pix[i] == sentinel {
			out.Pix[i] = float64(sentinel)
		} else {
			out.Pix[i] += p.C
		}
	}
	return out
}

// CalibrateConfig bundles the thresholds for a full calibration pass.
type CalibrateConfig struct {
	Filter         FilterConfig
	Sentinel       uint16
	MinValidPixels int
	MinValidRatio  float64
}

// DefaultCalibrateConfig returns the production thresholds.
func DefaultCalibrateConfig() CalibrateConfig {
	return CalibrateConfig{
		Filter:         DefaultFilterConfig(),
		Sentinel:       65535,
		MinValidPixels: 100,
		MinValidRatio:  0.10,
	}
}

// CalibrationResult is the tagged outcome of a calibration pass. Exactly
// one of the success payload or the failure reason is meaningful.
type CalibrationResult struct {
	Success bool
	Reason  string

	Plane      PlaneParams
	Calibrated *FloatGrid
	Deviation  *FloatGrid
	Flatness   float64
	// FlatnessOK is false when no valid pixels remained for the
	// peak-to-peak computation.
	FlatnessOK bool
	// Filtered holds the post-chain region when filtering ran, else nil.
	Filtered *Image
}

func calibrationFailure(reason string) CalibrationResult {
	return CalibrationResult{Success: false, Reason: reason}
}

// CalibrateImage runs the full pass over a region: optional filter chain,
// valid-count checks, plane fit, flatness, tilt removal. Ordinary
// "not enough data" conditions come back as failure values, never panics
// or errors escaping the pipeline.
func CalibrateImage(roi *Image, cfg CalibrateConfig) CalibrationResult {
	processed := roi
	var filtered *Image
	if cfg.Filter.Enabled {
		filtered = ApplyFilters(roi, cfg.Filter, cfg.Sentinel)
		processed = filtered
	}

	validCount := CountValid(processed, cfg.Sentinel)
	total := roi.Size()
	var ratio float64
	if total > 0 {
		ratio = float64(validCount) / float64(total)
	}
	if validCount < cfg.MinValidPixels || ratio < cfg.MinValidRatio {
		return calibrationFailure(fmt.Sprintf(
			"insufficient valid pixels: %d (%.2f%%)", validCount, ratio*100))
	}

	plane, err := FitPlane(processed, cfg.Sentinel, cfg.MinValidPixels)
	if err != nil {
		return calibrationFailure(err.Error())
	}

	flatness, flatOK := Flatness(processed, plane, cfg.Sentinel)

	return CalibrationResult{
		Success:    true,
		Plane:      plane,
		Calibrated: CalibratePlane(processed, plane, cfg.Sentinel),
		Deviation:  Deviation(processed, plane),
		Flatness:   flatness,
		FlatnessOK: flatOK,
		Filtered:   filtered,
	}
}
