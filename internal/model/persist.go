package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/sonme-data/depth.report/internal/spline"
)

// The model file is a JSON object with two supported layouts. The minimal
// layout carries only the inverse spline; the full layout adds the forward
// spline and the raw calibration pairs. Both parse into the same Model.
//
// Numeric values are rounded on save (6 decimals, 4 for range bounds and
// calibration data) to bound file size; the precision loss is deliberate
// and acceptable for gray-level resolution.

type minimalFile struct {
	ModelType         string    `json:"model_type"`
	Version           string    `json:"version"`
	Knots             []float64 `json:"knots"`
	Coefficients      []float64 `json:"coefficients"`
	K                 int       `json:"k"`
	XRange            []float64 `json:"x_range"`
	YRange            []float64 `json:"y_range"`
	CalibrationPoints int       `json:"calibration_points"`
}

type splineFile struct {
	T []float64 `json:"t"`
	C []float64 `json:"c"`
	K int       `json:"k"`
}

type calibrationDataFile struct {
	NumPoints      int       `json:"num_points"`
	ActualValues   []float64 `json:"actual_values"`
	MeasuredValues []float64 `json:"measured_values"`
}

type fullFile struct {
	ModelType       string              `json:"model_type"`
	Version         string              `json:"version"`
	Description     string              `json:"description,omitempty"`
	InverseModel    splineFile          `json:"inverse_model"`
	ForwardModel    *splineFile         `json:"forward_model,omitempty"`
	ActualRange     []float64           `json:"actual_range"`
	MeasuredRange   []float64           `json:"measured_range"`
	CalibrationData calibrationDataFile `json:"calibration_data"`
}

// probe is used only to detect which layout a file carries.
type probe struct {
	Knots        []float64        `json:"knots"`
	InverseModel *json.RawMessage `json:"inverse_model"`
}

func roundSlice(vs []float64, decimals int) []float64 {
	scale := math.Pow(10, float64(decimals))
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = math.Round(v*scale) / scale
	}
	return out
}

func roundPair(p [2]float64, decimals int) []float64 {
	return roundSlice([]float64{p[0], p[1]}, decimals)
}

// Save writes the model as JSON. With minimal set, only the inverse spline
// and ranges are persisted; otherwise the full layout including forward
// model and calibration data is written. The parent directory is created
// if needed and a .json extension is enforced.
func Save(m *Model, path string, minimal bool) (string, error) {
	if filepath.Ext(path) != ".json" {
		path += ".json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create model directory: %w", err)
		}
	}

	var payload any
	if minimal {
		payload = minimalFile{
			ModelType:         "cubic_spline",
			Version:           m.ModelVersion,
			Knots:             roundSlice(m.Inverse.Knots(), 6),
			Coefficients:      roundSlice(m.Inverse.Coefficients(), 6),
			K:                 m.Inverse.Degree(),
			XRange:            roundPair(m.XRange, 4),
			YRange:            roundPair(m.YRange, 4),
			CalibrationPoints: m.CalibrationPoints,
		}
	} else {
		f := fullFile{
			ModelType: "cubic_spline",
			Version:   m.ModelVersion,
			InverseModel: splineFile{
				T: roundSlice(m.Inverse.Knots(), 6),
				C: roundSlice(m.Inverse.Coefficients(), 6),
				K: m.Inverse.Degree(),
			},
			ActualRange:   roundPair(m.YRange, 4),
			MeasuredRange: roundPair(m.XRange, 4),
			CalibrationData: calibrationDataFile{
				NumPoints:      m.CalibrationPoints,
				ActualValues:   roundSlice(m.Actual, 4),
				MeasuredValues: roundSlice(m.Measured, 4),
			},
		}
		if m.Forward != nil {
			f.ForwardModel = &splineFile{
				T: roundSlice(m.Forward.Knots(), 6),
				C: roundSlice(m.Forward.Coefficients(), 6),
				K: m.Forward.Degree(),
			}
		}
		payload = f
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write model file: %w", err)
	}
	return path, nil
}

// Load reads a model file, detecting the layout by its top-level keys:
// `knots` means minimal, `inverse_model` means full. Missing files and
// unrecognized layouts are environment errors, not structured failures.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return Parse(data)
}

// Parse decodes model-file bytes in either supported layout.
func Parse(data []byte) (*Model, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}
	switch {
	case len(p.Knots) > 0:
		return parseMinimal(data)
	case p.InverseModel != nil:
		return parseFull(data)
	default:
		return nil, fmt.Errorf("unrecognized model file layout: neither knots nor inverse_model present")
	}
}

func parseMinimal(data []byte) (*Model, error) {
	var f minimalFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse minimal model: %w", err)
	}
	inv, err := newSpline(splineFile{T: f.Knots, C: f.Coefficients, K: f.K})
	if err != nil {
		return nil, err
	}

	m := &Model{
		Inverse:           inv,
		CalibrationPoints: f.CalibrationPoints,
		ModelVersion:      versionOr(f.Version, "2.0"),
	}
	if len(f.XRange) == 2 && len(f.YRange) == 2 {
		m.XRange = [2]float64{f.XRange[0], f.XRange[1]}
		m.YRange = [2]float64{f.YRange[0], f.YRange[1]}
	} else {
		// Older files omit the ranges; approximate both from the knot
		// domain, which equals the measured extent for interpolating fits.
		lo, hi := inv.Domain()
		m.XRange = [2]float64{lo, hi}
		m.YRange = m.XRange
	}
	return m, nil
}

func parseFull(data []byte) (*Model, error) {
	var f fullFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse full model: %w", err)
	}
	inv, err := newSpline(f.InverseModel)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Inverse:      inv,
		ModelVersion: versionOr(f.Version, "2.1"),
		Actual:       f.CalibrationData.ActualValues,
		Measured:     f.CalibrationData.MeasuredValues,
	}
	lo, hi := inv.Domain()
	m.XRange = [2]float64{lo, hi}
	m.YRange = m.XRange
	if len(f.MeasuredRange) == 2 {
		m.XRange = [2]float64{f.MeasuredRange[0], f.MeasuredRange[1]}
	}
	if len(f.ActualRange) == 2 {
		m.YRange = [2]float64{f.ActualRange[0], f.ActualRange[1]}
	}
	m.CalibrationPoints = f.CalibrationData.NumPoints
	if m.CalibrationPoints == 0 {
		m.CalibrationPoints = len(f.CalibrationData.ActualValues)
	}
	if f.ForwardModel != nil {
		fwd, err := newSpline(*f.ForwardModel)
		if err != nil {
			return nil, err
		}
		m.Forward = fwd
	}
	return m, nil
}

func newSpline(f splineFile) (*spline.Spline, error) {
	s, err := spline.New(f.T, f.C, f.K)
	if err != nil {
		return nil, fmt.Errorf("invalid spline in model file: %w", err)
	}
	return s, nil
}

func versionOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
