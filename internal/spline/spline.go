// Package spline implements piecewise-polynomial (B-spline) curves in the
// knots/coefficients/degree representation, with interpolating fits and
// de Boor evaluation. Curves round-trip losslessly through their (t, c, k)
// triple, which is what the model file format persists.
package spline

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Spline is an immutable B-spline curve. Safe for concurrent reads.
type Spline struct {
	t []float64 // knot vector, len n+k+1
	c []float64 // coefficients, first n entries are used
	k int       // degree
}

// New builds a spline directly from a knot vector, coefficients and degree,
// e.g. when loading a persisted model. Coefficient slices longer than
// len(t)-k-1 are tolerated (some fitters pad with trailing zeros).
func New(knots, coefs []float64, degree int) (*Spline, error) {
	if degree < 0 {
		return nil, fmt.Errorf("spline: negative degree %d", degree)
	}
	n := len(knots) - degree - 1
	if n < 1 {
		return nil, fmt.Errorf("spline: knot vector too short: %d knots for degree %d", len(knots), degree)
	}
	if len(coefs) < n {
		return nil, fmt.Errorf("spline: need %d coefficients, got %d", n, len(coefs))
	}
	if !sort.Float64sAreSorted(knots) {
		return nil, errors.New("spline: knot vector must be non-decreasing")
	}
	return &Spline{
		t: append([]float64(nil), knots...),
		c: append([]float64(nil), coefs[:n]...),
		k: degree,
	}, nil
}

// Knots returns a copy of the knot vector.
func (s *Spline) Knots() []float64 { return append([]float64(nil), s.t...) }

// Coefficients returns a copy of the coefficient vector.
func (s *Spline) Coefficients() []float64 { return append([]float64(nil), s.c...) }

// Degree returns the polynomial degree k.
func (s *Spline) Degree() int { return s.k }

// Domain returns the fitted domain [t[k], t[n]] derived from the knot
// structure, not from the raw sample range.
func (s *Spline) Domain() (lo, hi float64) {
	return s.t[s.k], s.t[len(s.t)-s.k-1]
}

// Fit constructs the interpolating B-spline of the given degree through the
// points (x, y). x must be strictly increasing; callers sort and de-duplicate
// before fitting. Knot placement follows the standard scheme for
// interpolation: clamped boundary knots plus interior knots at (or between)
// the data sites, so the Schoenberg-Whitney conditions hold.
func Fit(x, y []float64, degree int) (*Spline, error) {
	n := len(x)
	if n != len(y) {
		return nil, fmt.Errorf("spline: length mismatch: %d x values, %d y values", n, len(y))
	}
	if degree < 1 {
		return nil, fmt.Errorf("spline: degree must be at least 1, got %d", degree)
	}
	if n < degree+1 {
		return nil, fmt.Errorf("spline: need at least %d points for degree %d, got %d", degree+1, degree, n)
	}
	for i := 1; i < n; i++ {
		if x[i] <= x[i-1] {
			return nil, errors.New("spline: x values must be strictly increasing")
		}
	}

	t := interpKnots(x, degree)

	// Collocation system B*c = y where B[i][j] = N_j(x[i]). The matrix is
	// banded but the calibration sets are tiny, so a dense solve is fine.
	a := mat.NewDense(n, n, nil)
	basis := make([]float64, degree+1)
	for i := 0; i < n; i++ {
		span := findSpan(t, degree, x[i])
		basisFuncs(t, degree, span, x[i], basis)
		for r := 0; r <= degree; r++ {
			a.Set(i, span-degree+r, basis[r])
		}
	}

	var coefs mat.VecDense
	if err := coefs.SolveVec(a, mat.NewVecDense(n, y)); err != nil {
		return nil, fmt.Errorf("spline: collocation solve failed: %w", err)
	}

	return &Spline{t: t, c: coefs.RawVector().Data, k: degree}, nil
}

// interpKnots places n+k+1 clamped knots for an interpolating fit.
func interpKnots(x []float64, k int) []float64 {
	n := len(x)
	t := make([]float64, n+k+1)
	for i := 0; i <= k; i++ {
		t[i] = x[0]
		t[n+i] = x[n-1]
	}
	if k%2 == 1 {
		// Odd degree: interior knots sit on the data sites.
		for j := 1; j <= n-k-1; j++ {
			t[k+j] = x[j+(k-1)/2]
		}
	} else {
		// Even degree: interior knots at midpoints between sites.
		for j := 1; j <= n-k-1; j++ {
			t[k+j] = (x[j] + x[j+1]) / 2
		}
	}
	return t
}

// findSpan locates the knot interval index m with t[m] <= u < t[m+1],
// clamped to [k, n-1]. Out-of-domain inputs clamp to the boundary interval,
// which makes evaluation extend the boundary polynomial.
func findSpan(t []float64, k int, u float64) int {
	n := len(t) - k - 1
	if u >= t[n] {
		return n - 1
	}
	if u <= t[k] {
		return k
	}
	lo, hi := k, n-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t[mid] <= u {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// basisFuncs computes the k+1 non-vanishing basis functions at u for the
// given span (Cox-de Boor recursion) into out.
func basisFuncs(t []float64, k, span int, u float64, out []float64) {
	left := make([]float64, k+1)
	right := make([]float64, k+1)
	out[0] = 1
	for j := 1; j <= k; j++ {
		left[j] = u - t[span+1-j]
		right[j] = t[span+j] - u
		saved := 0.0
		for r := 0; r < j; r++ {
			den := right[r+1] + left[j-r]
			var temp float64
			if den != 0 {
				temp = out[r] / den
			}
			out[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		out[j] = saved
	}
}

// Evaluate computes the curve value at u by de Boor's algorithm. Inputs
// outside the fitted domain are evaluated by extending the boundary
// polynomial, matching the permissive default of the original fitter.
func (s *Spline) Evaluate(u float64) float64 {
	if s.k == 0 {
		return s.c[findSpan(s.t, 0, u)]
	}
	m := findSpan(s.t, s.k, u)
	d := make([]float64, s.k+1)
	copy(d, s.c[m-s.k:m+1])
	for r := 1; r <= s.k; r++ {
		for j := s.k; j >= r; j-- {
			i := m - s.k + j
			den := s.t[i+s.k-r+1] - s.t[i]
			var alpha float64
			if den != 0 {
				alpha = (u - s.t[i]) / den
			}
			d[j] = (1-alpha)*d[j-1] + alpha*d[j]
		}
	}
	return d[s.k]
}

// EvaluateAll evaluates the curve at each input. An optional output slice
// avoids allocation on hot paths.
func (s *Spline) EvaluateAll(us []float64, out []float64) []float64 {
	if out == nil {
		out = make([]float64, len(us))
	}
	for i, u := range us {
		out[i] = s.Evaluate(u)
	}
	return out
}

// Derivative returns the spline's first derivative as a new curve of degree
// k-1 over the interior knot vector.
func (s *Spline) Derivative() *Spline {
	if s.k == 0 {
		// Derivative of a step function: zero everywhere it is defined.
		return &Spline{t: s.t, c: make([]float64, len(s.c)), k: 0}
	}
	n := len(s.c)
	dc := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		den := s.t[i+s.k+1] - s.t[i+1]
		if den != 0 {
			dc[i] = float64(s.k) * (s.c[i+1] - s.c[i]) / den
		}
	}
	dt := make([]float64, len(s.t)-2)
	copy(dt, s.t[1:len(s.t)-1])
	return &Spline{t: dt, c: dc, k: s.k - 1}
}
