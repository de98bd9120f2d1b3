// Package linearity scores measurement sequences against a best-fit
// straight line (BFSL): the maximum residual as a percentage of full scale,
// plus the usual regression statistics.
package linearity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultFullScale is the station's measurement span in millimetres.
const DefaultFullScale = 41.0

// Result holds the BFSL analysis of one sequence pair. Pure function
// output; never mutated after creation.
type Result struct {
	// Linearity is 100 × max|residual| / fullScale, in percent.
	Linearity       float64
	MaxDeviation    float64
	MinDeviation    float64
	AbsMaxDeviation float64
	RMSError        float64
	MAE             float64
	RSquared        float64
	Slope           float64
	Intercept       float64
}

// Calculate fits measured against actual with a first-degree least-squares
// line and scores the residuals. Both sequences are zero-point normalized
// against their first element before fitting, so absolute inputs are fine.
// A fullScale of zero selects the default span.
func Calculate(actual, measured []float64, fullScale float64) (Result, error) {
	if fullScale == 0 {
		fullScale = DefaultFullScale
	}
	if err := validate(actual, measured); err != nil {
		return Result{}, err
	}

	actualRel := relative(actual)
	measuredRel := relative(measured)

	intercept, slope := stat.LinearRegression(actualRel, measuredRel, nil, false)

	residuals := make([]float64, len(actualRel))
	maxDev, minDev := math.Inf(-1), math.Inf(1)
	var ssRes, absSum float64
	for i := range actualRel {
		r := measuredRel[i] - (slope*actualRel[i] + intercept)
		residuals[i] = r
		if r > maxDev {
			maxDev = r
		}
		if r < minDev {
			minDev = r
		}
		ssRes += r * r
		absSum += math.Abs(r)
	}
	n := float64(len(residuals))
	absMax := math.Max(math.Abs(maxDev), math.Abs(minDev))

	mean := stat.Mean(measuredRel, nil)
	var ssTot float64
	for _, v := range measuredRel {
		d := v - mean
		ssTot += d * d
	}
	rSquared := 0.0
	if ssTot != 0 {
		rSquared = 1 - ssRes/ssTot
	}

	return Result{
		Linearity:       absMax / fullScale * 100,
		MaxDeviation:    maxDev,
		MinDeviation:    minDev,
		AbsMaxDeviation: absMax,
		RMSError:        math.Sqrt(ssRes / n),
		MAE:             absSum / n,
		RSquared:        rSquared,
		Slope:           slope,
		Intercept:       intercept,
	}, nil
}

// Effect compares linearity before and after compensation over the same
// actual sequence.
type Effect struct {
	Before Result
	After  Result
	// ImprovementPercent is the relative reduction of the linearity score.
	ImprovementPercent float64
}

// CompareEffect scores measured and compensated sequences against the same
// ground truth.
func CompareEffect(actual, measured, compensated []float64, fullScale float64) (Effect, error) {
	before, err := Calculate(actual, measured, fullScale)
	if err != nil {
		return Effect{}, fmt.Errorf("before compensation: %w", err)
	}
	after, err := Calculate(actual, compensated, fullScale)
	if err != nil {
		return Effect{}, fmt.Errorf("after compensation: %w", err)
	}
	e := Effect{Before: before, After: after}
	if before.Linearity != 0 {
		e.ImprovementPercent = (before.Linearity - after.Linearity) / before.Linearity * 100
	}
	return e, nil
}

// Relative returns values normalized to their first element (the first
// calibration sample defines the zero point).
func Relative(values []float64) []float64 { return relative(values) }

func relative(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v - values[0]
	}
	return out
}

func validate(actual, measured []float64) error {
	if len(actual) < 2 {
		return fmt.Errorf("insufficient data: linear regression needs at least 2 points, got %d", len(actual))
	}
	if len(actual) != len(measured) {
		return fmt.Errorf("length mismatch: %d actual values, %d measured values", len(actual), len(measured))
	}
	for _, v := range actual {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("actual values contain NaN or Inf")
		}
	}
	for _, v := range measured {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("measured values contain NaN or Inf")
		}
	}
	allSame := true
	for _, v := range actual[1:] {
		if v != actual[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all actual values identical: regression slope is undefined")
	}
	return nil
}
