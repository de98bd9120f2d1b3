package service

import (
	"fmt"
	"log"

	"github.com/sonme-data/depth.report/internal/calibdb"
	"github.com/sonme-data/depth.report/internal/compensate"
	"github.com/sonme-data/depth.report/internal/depth"
	"github.com/sonme-data/depth.report/internal/fsutil"
	"github.com/sonme-data/depth.report/internal/imageio"
	"github.com/sonme-data/depth.report/internal/linearity"
	"github.com/sonme-data/depth.report/internal/model"
)

// minUsableSamples is the floor of accepted exposures a model fit needs.
const minUsableSamples = 4

// SampleOutcome is the per-exposure result of a calibration pass,
// including rejected exposures.
type SampleOutcome struct {
	ImagePath   string
	ActualMM    float64
	MeasuredMM  float64
	FlatnessMM  float64
	ValidPixels int
	Accepted    bool
	Reason      string
}

// CalibrationOutcome bundles the results of a full calibration run.
type CalibrationOutcome struct {
	RunID     string
	Model     *model.Model
	ModelPath string
	Samples   []SampleOutcome
	Effect    linearity.Effect
}

// CalibrationService turns a directory of flat-target exposures plus a
// displacement CSV into a saved compensation model. A nil DB disables run
// history.
type CalibrationService struct {
	Station *Station
	DB      *calibdb.DB
}

// MeasureImage reduces one exposure to a single measured distance: ROI
// extraction, filtering, plane fit, then the mean of the tilt-corrected
// surface converted to millimetres.
func (s *CalibrationService) MeasureImage(img *depth.Image) (measuredMM, flatnessMM float64, validPixels int, reason string) {
	roi := depth.ExtractROI(img, s.Station.ROI)
	res := depth.CalibrateImage(roi, s.Station.Calibrate)
	if !res.Success {
		return 0, 0, 0, res.Reason
	}

	sentinel := float64(s.Station.Sentinel())
	var sum float64
	n := 0
	for _, v := range res.Calibrated.Pix {
		if v == sentinel {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0, 0, "no valid pixels after calibration"
	}
	return s.Station.Converter.GrayToMMRaw(sum / float64(n)), res.Flatness, n, ""
}

// Run executes a calibration: discover the dataset, measure each exposure,
// fit and save the model, then score the linearity improvement.
func (s *CalibrationService) Run(datasetDir, modelPath string) (*CalibrationOutcome, error) {
	ds, err := fsutil.FindDataset(datasetDir, s.Station.DisplacementColumns)
	if err != nil {
		return nil, err
	}
	n := len(ds.ImagePaths)
	if len(ds.Displacements) < n {
		n = len(ds.Displacements)
	}
	log.Printf("[Calibrate] dataset %s: %d images, %d displacement rows, using %d pairs",
		datasetDir, len(ds.ImagePaths), len(ds.Displacements), n)

	out := &CalibrationOutcome{}
	if s.DB != nil {
		runID, err := s.DB.CreateRun(s.Station.Name, datasetDir)
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		out.RunID = runID
	}

	var actual, measured []float64
	for i := 0; i < n; i++ {
		sample := SampleOutcome{ImagePath: ds.ImagePaths[i], ActualMM: ds.Displacements[i]}

		img, err := imageio.ReadDepthImage(ds.ImagePaths[i], s.Station.LoadOpts)
		if err != nil {
			sample.Reason = err.Error()
		} else {
			sample.MeasuredMM, sample.FlatnessMM, sample.ValidPixels, sample.Reason =
				s.MeasureImage(img)
		}
		sample.Accepted = sample.Reason == ""

		if sample.Accepted {
			actual = append(actual, sample.ActualMM)
			measured = append(measured, sample.MeasuredMM)
		} else {
			log.Printf("[Calibrate] skipping %s: %s", sample.ImagePath, sample.Reason)
		}
		out.Samples = append(out.Samples, sample)

		if s.DB != nil {
			if err := s.DB.RecordSample(calibdb.Sample{
				RunID:       out.RunID,
				Seq:         i,
				ImagePath:   sample.ImagePath,
				ActualMM:    sample.ActualMM,
				MeasuredMM:  sample.MeasuredMM,
				FlatnessMM:  sample.FlatnessMM,
				ValidPixels: sample.ValidPixels,
				Accepted:    sample.Accepted,
				Reason:      sample.Reason,
			}); err != nil {
				return nil, fmt.Errorf("record sample: %w", err)
			}
		}
	}

	if len(actual) < minUsableSamples {
		reason := fmt.Sprintf("only %d of %d exposures usable, need at least %d",
			len(actual), n, minUsableSamples)
		if s.DB != nil {
			if err := s.DB.FailRun(out.RunID, reason); err != nil {
				return nil, fmt.Errorf("record failure: %w", err)
			}
		}
		return out, fmt.Errorf("calibration failed: %s", reason)
	}

	m, err := model.BuildWithDegree(actual, measured, s.Station.SplineDegree)
	if err != nil {
		if s.DB != nil {
			if dbErr := s.DB.FailRun(out.RunID, err.Error()); dbErr != nil {
				return nil, fmt.Errorf("record failure: %w", dbErr)
			}
		}
		return out, fmt.Errorf("model fit: %w", err)
	}
	out.Model = m

	if modelPath != "" {
		saved, err := model.Save(m, modelPath, false)
		if err != nil {
			return out, fmt.Errorf("save model: %w", err)
		}
		out.ModelPath = saved
	}

	// Score how much the new model improves the calibration sequence
	// itself: compensate each scalar and compare against ground truth.
	ev := compensate.NewEvaluator(m, s.Station.Extrap)
	compensated := ev.ApplyAll(measured, nil)
	effect, err := linearity.CompareEffect(actual, measured, compensated, s.Station.FullScale)
	if err != nil {
		return out, fmt.Errorf("linearity check: %w", err)
	}
	out.Effect = effect

	if s.DB != nil {
		if err := s.DB.FinishRun(out.RunID, out.ModelPath, m.ModelVersion,
			m.CalibrationPoints, effect.Before.Linearity, effect.After.Linearity); err != nil {
			return out, fmt.Errorf("record completion: %w", err)
		}
	}

	log.Printf("[Calibrate] fitted degree-%d model from %d points, linearity %.4f%% -> %.4f%%",
		m.Degree(), m.CalibrationPoints, effect.Before.Linearity, effect.After.Linearity)
	return out, nil
}
