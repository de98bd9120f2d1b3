// Package compensate applies a compensation model to scalar distances and
// whole depth images, with boundary-derivative linear extrapolation beyond
// the fitted domain and optional output clamping.
package compensate

import (
	"github.com/sonme-data/depth.report/internal/model"
)

// ExtrapolateConfig bounds linear extension beyond the fitted domain and
// clamps the output range. Pure configuration, never derived state.
type ExtrapolateConfig struct {
	Enabled bool
	// MaxLow and MaxHigh limit the extension distance below and above the
	// fitted domain, in millimetres, independently.
	MaxLow  float64
	MaxHigh float64

	ClampOutput bool
	OutputMin   float64
	OutputMax   float64
}

// DefaultExtrapolateConfig returns the production extrapolation policy.
func DefaultExtrapolateConfig() ExtrapolateConfig {
	return ExtrapolateConfig{
		Enabled:     true,
		MaxLow:      2.0,
		MaxHigh:     2.0,
		ClampOutput: true,
		OutputMin:   0.0,
		OutputMax:   43.0,
	}
}

// ExtendedRange returns the compensable input range including the
// extrapolation margins, based on the model's measured range.
func (c ExtrapolateConfig) ExtendedRange(m *model.Model) (lo, hi float64) {
	return m.XRange[0] - c.MaxLow, m.XRange[1] + c.MaxHigh
}

// Evaluator is a read-only view of a model under one extrapolation policy.
// Boundary values and slopes are computed once at construction, so a single
// Evaluator is cheap to share across pixels and goroutines.
type Evaluator struct {
	m   *model.Model
	cfg ExtrapolateConfig

	xMin, xMax float64 // spline knot domain, not the raw measured range
	yMin, yMax float64 // curve values at the domain boundaries
	slopeLo    float64
	slopeHi    float64
}

// NewEvaluator prepares scalar compensation for the model under the given
// policy. The domain comes from the inverse spline's knot structure.
func NewEvaluator(m *model.Model, cfg ExtrapolateConfig) *Evaluator {
	e := &Evaluator{m: m, cfg: cfg}
	e.xMin, e.xMax = m.Domain()
	e.yMin = m.Inverse.Evaluate(e.xMin)
	e.yMax = m.Inverse.Evaluate(e.xMax)
	deriv := m.Inverse.Derivative()
	e.slopeLo = deriv.Evaluate(e.xMin)
	e.slopeHi = deriv.Evaluate(e.xMax)
	return e
}

// Apply compensates a single measured distance. Inside the fitted domain the
// spline is evaluated directly. Outside, with extrapolation enabled, the
// curve is extended linearly using the boundary derivative, with the
// extension distance clamped to the configured maximum. With extrapolation
// disabled, out-of-domain inputs fall through to the spline evaluator's
// boundary-polynomial extension. Output clamping, when enabled, applies
// last in all cases.
func (e *Evaluator) Apply(measured float64) float64 {
	var out float64
	switch {
	case !e.cfg.Enabled || (measured >= e.xMin && measured <= e.xMax):
		out = e.m.Inverse.Evaluate(measured)
	case measured < e.xMin:
		dist := e.xMin - measured
		if dist > e.cfg.MaxLow {
			dist = e.cfg.MaxLow
		}
		out = e.yMin - e.slopeLo*dist
	default:
		dist := measured - e.xMax
		if dist > e.cfg.MaxHigh {
			dist = e.cfg.MaxHigh
		}
		out = e.yMax + e.slopeHi*dist
	}
	if e.cfg.ClampOutput {
		if out < e.cfg.OutputMin {
			out = e.cfg.OutputMin
		}
		if out > e.cfg.OutputMax {
			out = e.cfg.OutputMax
		}
	}
	return out
}

// ApplyAll compensates a sequence of measured distances.
func (e *Evaluator) ApplyAll(measured []float64, out []float64) []float64 {
	if out == nil {
		out = make([]float64, len(measured))
	}
	for i, v := range measured {
		out[i] = e.Apply(v)
	}
	return out
}
