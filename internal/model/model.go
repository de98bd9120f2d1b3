// Package model builds and persists the compensation model: a cubic
// (degree-degrading) spline pair fitted from paired (actual, measured)
// calibration distances. The inverse curve (measured -> actual) is the
// artifact applied at inference time; the forward curve is kept for
// analysis only.
package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/sonme-data/depth.report/internal/spline"
)

// Version written into newly built models.
const Version = "2.2"

// MaxDegree is the spline degree ceiling; fewer calibration points degrade
// the degree rather than failing the build.
const MaxDegree = 3

// Model is the durable artifact of a calibration run. Immutable once built;
// safe for concurrent reads.
type Model struct {
	Inverse *spline.Spline // measured -> actual, used at inference time
	Forward *spline.Spline // actual -> measured, analysis only, may be nil

	// XRange is the measured-domain extent and YRange the actual-domain
	// extent, inclusive bounds from the calibration sample min/max.
	XRange [2]float64
	YRange [2]float64

	CalibrationPoints int
	ModelVersion      string

	// Raw calibration pairs, kept only when built locally or loaded from
	// a full-layout file.
	Actual   []float64
	Measured []float64
}

// Degree returns the spline degree of the inverse curve.
func (m *Model) Degree() int { return m.Inverse.Degree() }

// Domain returns the inverse spline's fitted domain, derived from its knot
// structure rather than the raw measured range.
func (m *Model) Domain() (lo, hi float64) { return m.Inverse.Domain() }

// ValidationError reports calibration input that cannot be fitted. It is a
// structured failure: batch callers skip the sample set and continue.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Build fits the compensation model from equal-length sequences of actual
// (ground truth) and measured distances. The degree is min(3, n-1); both
// sequences must be finite and duplicate-free, since each is used as the
// abscissa of one of the two monotonic fitting views.
func Build(actual, measured []float64) (*Model, error) {
	return BuildWithDegree(actual, measured, MaxDegree)
}

// BuildWithDegree is Build with a station-specific degree ceiling between
// 1 and MaxDegree.
func BuildWithDegree(actual, measured []float64, maxDegree int) (*Model, error) {
	if maxDegree < 1 || maxDegree > MaxDegree {
		return nil, validationf("spline degree must be between 1 and %d, got %d", MaxDegree, maxDegree)
	}
	n := len(actual)
	degree := maxDegree
	if n-1 < degree {
		degree = n - 1
	}
	if degree < 1 {
		return nil, validationf("insufficient calibration points: need at least 2, got %d", n)
	}
	if n != len(measured) {
		return nil, validationf("length mismatch: %d actual values, %d measured values", n, len(measured))
	}
	if hasNonFinite(actual) {
		return nil, validationf("actual values contain NaN or Inf")
	}
	if hasNonFinite(measured) {
		return nil, validationf("measured values contain NaN or Inf")
	}
	if hasDuplicates(actual) {
		return nil, validationf("duplicate actual values: spline fitting requires unique abscissae")
	}
	if hasDuplicates(measured) {
		return nil, validationf("duplicate measured values: spline fitting requires unique abscissae")
	}

	// Two independent monotonic views: sorted by actual for the forward
	// curve, sorted by measured for the inverse curve.
	actByAct, measByAct := sortPairs(actual, measured)
	measByMeas, actByMeas := sortPairs(measured, actual)

	forward, err := spline.Fit(actByAct, measByAct, degree)
	if err != nil {
		return nil, validationf("forward spline fit failed: %v", err)
	}
	inverse, err := spline.Fit(measByMeas, actByMeas, degree)
	if err != nil {
		return nil, validationf("inverse spline fit failed: %v", err)
	}

	return &Model{
		Inverse:           inverse,
		Forward:           forward,
		XRange:            [2]float64{measByMeas[0], measByMeas[len(measByMeas)-1]},
		YRange:            [2]float64{actByAct[0], actByAct[len(actByAct)-1]},
		CalibrationPoints: n,
		ModelVersion:      Version,
		Actual:            append([]float64(nil), actual...),
		Measured:          append([]float64(nil), measured...),
	}, nil
}

// sortPairs returns copies of (key, val) sorted ascending by key.
func sortPairs(key, val []float64) ([]float64, []float64) {
	idx := make([]int, len(key))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return key[idx[a]] < key[idx[b]] })
	ks := make([]float64, len(key))
	vs := make([]float64, len(val))
	for i, j := range idx {
		ks[i] = key[j]
		vs[i] = val[j]
	}
	return ks, vs
}

func hasNonFinite(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func hasDuplicates(vs []float64) bool {
	seen := make(map[float64]struct{}, len(vs))
	for _, v := range vs {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
