package service

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/stat"

	"github.com/sonme-data/depth.report/internal/depth"
	"github.com/sonme-data/depth.report/internal/imageio"
)

// RepeatabilityResult is the ensemble statistics of repeated exposures of
// a static target, in millimetres.
type RepeatabilityResult struct {
	Exposures int

	// Per-exposure mean distances and the ensemble statistics over them.
	Means      []float64
	Mean       float64
	Sigma      float64
	ThreeSigma float64
	SixSigma   float64
	PeakToPeak float64

	// MeanIntraSigma is the average within-exposure standard deviation,
	// a noise figure independent of stage drift.
	MeanIntraSigma float64
}

// RepeatabilityService measures shot-to-shot stability from repeated
// exposures of the same scene.
type RepeatabilityService struct {
	Station *Station
}

// Analyze reduces each exposure to its valid-pixel mean and reports the
// spread across exposures.
func (s *RepeatabilityService) Analyze(paths []string) (*RepeatabilityResult, error) {
	if len(paths) < 2 {
		return nil, fmt.Errorf("repeatability needs at least 2 exposures, got %d", len(paths))
	}

	res := &RepeatabilityResult{Exposures: len(paths)}
	var intraSum float64
	for _, p := range paths {
		img, err := imageio.ReadDepthImage(p, s.Station.LoadOpts)
		if err != nil {
			return nil, err
		}
		roi := depth.ExtractROI(img, s.Station.ROI)

		_, values := depth.ValidPixels(roi, s.Station.Sentinel())
		if len(values) == 0 {
			return nil, fmt.Errorf("no valid pixels in %s", p)
		}
		mm := s.Station.Converter.GrayToMMSlice(values, nil)
		mean := stat.Mean(mm, nil)
		res.Means = append(res.Means, mean)
		intraSum += stat.StdDev(mm, nil)
	}

	res.Mean = stat.Mean(res.Means, nil)
	res.Sigma = stat.StdDev(res.Means, nil)
	res.ThreeSigma = 3 * res.Sigma
	res.SixSigma = 6 * res.Sigma
	res.MeanIntraSigma = intraSum / float64(len(paths))

	lo, hi := res.Means[0], res.Means[0]
	for _, m := range res.Means[1:] {
		if m < lo {
			lo = m
		}
		if m > hi {
			hi = m
		}
	}
	res.PeakToPeak = hi - lo

	log.Printf("[Repeat] %d exposures: mean=%.4fmm sigma=%.4fmm 6sigma=%.4fmm p2p=%.4fmm",
		res.Exposures, res.Mean, res.Sigma, res.SixSigma, res.PeakToPeak)
	return res, nil
}
