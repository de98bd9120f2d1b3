package service

import (
	"fmt"
	"log"

	"github.com/sonme-data/depth.report/internal/compensate"
	"github.com/sonme-data/depth.report/internal/fsutil"
	"github.com/sonme-data/depth.report/internal/imageio"
	"github.com/sonme-data/depth.report/internal/linearity"
	"github.com/sonme-data/depth.report/internal/model"
)

// VerificationService scores a saved model against an independent test
// dataset: each exposure is reduced to a scalar distance, compensated,
// and the before/after linearity compared.
type VerificationService struct {
	Station *Station
	Model   *model.Model
}

// VerificationOutcome is the linearity comparison plus the sequences it
// was computed from.
type VerificationOutcome struct {
	Actual      []float64
	Measured    []float64
	Compensated []float64
	Effect      linearity.Effect
	Skipped     []SampleOutcome
}

// Run measures every usable exposure in the dataset and scores the model.
func (s *VerificationService) Run(datasetDir string) (*VerificationOutcome, error) {
	ds, err := fsutil.FindDataset(datasetDir, s.Station.DisplacementColumns)
	if err != nil {
		return nil, err
	}
	n := len(ds.ImagePaths)
	if len(ds.Displacements) < n {
		n = len(ds.Displacements)
	}

	cal := &CalibrationService{Station: s.Station}
	out := &VerificationOutcome{}
	for i := 0; i < n; i++ {
		img, err := imageio.ReadDepthImage(ds.ImagePaths[i], s.Station.LoadOpts)
		if err != nil {
			out.Skipped = append(out.Skipped, SampleOutcome{
				ImagePath: ds.ImagePaths[i], Reason: err.Error()})
			continue
		}
		measured, _, _, reason := cal.MeasureImage(img)
		if reason != "" {
			log.Printf("[Verify] skipping %s: %s", ds.ImagePaths[i], reason)
			out.Skipped = append(out.Skipped, SampleOutcome{
				ImagePath: ds.ImagePaths[i], Reason: reason})
			continue
		}
		out.Actual = append(out.Actual, ds.Displacements[i])
		out.Measured = append(out.Measured, measured)
	}

	if len(out.Actual) < 2 {
		return out, fmt.Errorf("verification needs at least 2 usable exposures, got %d", len(out.Actual))
	}

	ev := compensate.NewEvaluator(s.Model, s.Station.Extrap)
	out.Compensated = ev.ApplyAll(out.Measured, nil)

	effect, err := linearity.CompareEffect(out.Actual, out.Measured, out.Compensated, s.Station.FullScale)
	if err != nil {
		return out, err
	}
	out.Effect = effect

	log.Printf("[Verify] %d exposures, linearity %.4f%% -> %.4f%% (%.1f%% improvement)",
		len(out.Actual), effect.Before.Linearity, effect.After.Linearity, effect.ImprovementPercent)
	return out, nil
}
