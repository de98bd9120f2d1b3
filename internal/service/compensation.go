package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sonme-data/depth.report/internal/compensate"
	"github.com/sonme-data/depth.report/internal/fsutil"
	"github.com/sonme-data/depth.report/internal/imageio"
	"github.com/sonme-data/depth.report/internal/model"
)

// CompensationService applies a saved model to depth images.
type CompensationService struct {
	Station   *Station
	Model     *model.Model
	Normalize compensate.NormalizeConfig
}

// FileOutcome pairs one compensated file with its pixel statistics.
type FileOutcome struct {
	InputPath  string
	OutputPath string
	Outcome    compensate.Outcome
	Err        error
}

// CompensateFile compensates a single image and writes the result.
func (s *CompensationService) CompensateFile(inPath, outPath string) (compensate.Outcome, error) {
	img, err := imageio.ReadDepthImage(inPath, s.Station.LoadOpts)
	if err != nil {
		return compensate.Outcome{}, err
	}

	offset := compensate.ResolveOffset(s.Model, s.Normalize)
	out := compensate.Image(img, s.Model, s.Station.Converter, s.Station.Sentinel(),
		s.Station.Extrap, offset)

	if err := imageio.WriteDepthImage(out.Image, outPath); err != nil {
		return out, err
	}
	log.Printf("[Compensate] %s: %d/%d pixels compensated (%.2f%%), %d extrapolated, %d out of range",
		filepath.Base(inPath), out.CompensatedPixels, out.TotalPixels,
		out.CompensationRate, out.ExtrapolatedPixels, out.OutOfRangePixels)
	return out, nil
}

// CompensateDir compensates every depth image in a directory, mirroring
// filenames into outDir. Per-file failures are reported in the outcome
// list; the batch keeps going.
func (s *CompensationService) CompensateDir(inDir, outDir string) ([]FileOutcome, error) {
	paths, err := fsutil.ListImages(inDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no depth images in %s", inDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	results := make([]FileOutcome, 0, len(paths))
	failed := 0
	for _, p := range paths {
		outPath := filepath.Join(outDir, filepath.Base(p))
		outcome, err := s.CompensateFile(p, outPath)
		if err != nil {
			failed++
			log.Printf("[Compensate] %s failed: %v", filepath.Base(p), err)
		}
		results = append(results, FileOutcome{
			InputPath:  p,
			OutputPath: outPath,
			Outcome:    outcome,
			Err:        err,
		})
	}
	log.Printf("[Compensate] batch done: %d files, %d failed", len(paths), failed)
	return results, nil
}
