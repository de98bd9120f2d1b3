package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testActual   = []float64{0, 5, 10, 15, 20, 25, 30, 35, 40}
	testMeasured = []float64{0.05, 5.02, 10.08, 15.01, 19.98, 25.05, 30.02, 34.95, 40.03}
)

func TestBuildNinePoints(t *testing.T) {
	m, err := Build(testActual, testMeasured)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Degree())
	assert.Equal(t, 9, m.CalibrationPoints)
	assert.Equal(t, [2]float64{0.05, 40.03}, m.XRange)
	assert.Equal(t, [2]float64{0, 40}, m.YRange)
	require.NotNil(t, m.Forward)

	// The inverse curve maps a mid-scale measurement near its truth.
	got := m.Inverse.Evaluate(20.0)
	assert.Greater(t, got, 15.0)
	assert.Less(t, got, 25.0)
}

// Degree degrades with the point count instead of failing, down to n = 2.
func TestBuildDegreeDegradation(t *testing.T) {
	cases := []struct {
		n      int
		degree int
	}{
		{2, 1}, {3, 2}, {4, 3}, {5, 3}, {9, 3},
	}
	for _, c := range cases {
		actual := make([]float64, c.n)
		measured := make([]float64, c.n)
		for i := 0; i < c.n; i++ {
			actual[i] = float64(i) * 5
			measured[i] = float64(i)*5 + 0.01*float64(i%3)
		}
		m, err := Build(actual, measured)
		require.NoError(t, err, "n=%d", c.n)
		assert.Equal(t, c.degree, m.Degree(), "n=%d", c.n)
	}
}

func TestBuildValidationFailures(t *testing.T) {
	var verr *ValidationError

	_, err := Build([]float64{1}, []float64{1})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "insufficient calibration points")

	_, err = Build([]float64{0, 1, 2}, []float64{0, 1})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "length mismatch")

	_, err = Build([]float64{0, math.NaN(), 2}, []float64{0, 1, 2})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "actual values contain NaN or Inf")

	_, err = Build([]float64{0, 1, 2}, []float64{0, math.Inf(1), 2})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "measured values contain NaN or Inf")

	_, err = Build([]float64{0, 0, 0, 0}, []float64{0, 1, 2, 3})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "duplicate actual values")

	_, err = Build([]float64{0, 1, 2, 3}, []float64{5, 5, 6, 7})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "duplicate measured values")
}

func TestBuildWithDegreeCap(t *testing.T) {
	m, err := BuildWithDegree(testActual, testMeasured, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Degree())

	var verr *ValidationError
	_, err = BuildWithDegree(testActual, testMeasured, 0)
	require.ErrorAs(t, err, &verr)
	_, err = BuildWithDegree(testActual, testMeasured, 4)
	require.ErrorAs(t, err, &verr)
}

// Unsorted calibration input is fine: the builder sorts by each axis
// independently before fitting.
func TestBuildUnsortedInput(t *testing.T) {
	actual := []float64{20, 0, 40, 10, 30}
	measured := []float64{20.1, 0.05, 39.9, 10.2, 29.8}
	m, err := Build(actual, measured)
	require.NoError(t, err)

	lo, hi := m.Domain()
	assert.InDelta(t, 0.05, lo, 1e-12)
	assert.InDelta(t, 39.9, hi, 1e-12)
	assert.InDelta(t, 10.0, m.Inverse.Evaluate(10.2), 0.5)
}
