package compensate

import (
	"github.com/sonme-data/depth.report/internal/depth"
	"github.com/sonme-data/depth.report/internal/model"
	"github.com/sonme-data/depth.report/internal/units"
)

// Outcome is the per-image compensation result with pixel classification
// counts. Derived on every call, never cached.
type Outcome struct {
	Image *depth.Image

	TotalPixels        int
	ValidPixels        int
	InvalidPixels      int
	InRangePixels      int
	ExtrapolatedPixels int
	CompensatedPixels  int
	OutOfRangePixels   int

	// CompensationRate is compensated / total in percent.
	CompensationRate     float64
	ExtrapolationEnabled bool
	NormalizeOffset      float64
}

// NormalizeConfig shifts every compensated distance by a constant offset,
// e.g. to re-center the output range at zero. The offset is computed once
// per model, never per pixel.
type NormalizeConfig struct {
	Enabled      bool
	AutoOffset   bool
	TargetCenter float64
	ManualOffset float64
}

// NormalizationOffset returns target − midpoint of the model's actual
// range: adding it to a compensated value centers the output on the target.
func NormalizationOffset(m *model.Model, targetCenter float64) float64 {
	return targetCenter - (m.YRange[0]+m.YRange[1])/2
}

// ResolveOffset computes the effective offset for a normalization config.
func ResolveOffset(m *model.Model, cfg NormalizeConfig) float64 {
	if !cfg.Enabled {
		return 0
	}
	if cfg.AutoOffset {
		return NormalizationOffset(m, cfg.TargetCenter)
	}
	return cfg.ManualOffset
}

// Image compensates a whole depth image. Valid pixels are partitioned into
// in-range, extrapolation-range and out-of-range by the model's measured
// range; only the first two classes are converted. Invalid and out-of-range
// pixels keep their original gray value byte for byte; compensation never
// manufactures a sentinel or zero for pixels it does not touch.
func Image(img *depth.Image, m *model.Model, conv units.Converter, sentinel uint16,
	cfg ExtrapolateConfig, normalizeOffset float64) Outcome {

	out := Outcome{
		Image:                img.Clone(),
		TotalPixels:          img.Size(),
		ExtrapolationEnabled: cfg.Enabled,
		NormalizeOffset:      normalizeOffset,
	}

	xMin, xMax := m.XRange[0], m.XRange[1]
	extLo, extHi := xMin, xMax
	if cfg.Enabled {
		extLo, extHi = cfg.ExtendedRange(m)
	}

	ev := NewEvaluator(m, cfg)

	for i, g := range img.Pix {
		if g == sentinel {
			out.InvalidPixels++
			continue
		}
		out.ValidPixels++

		mm := conv.GrayToMMRaw(float64(g))
		inRange := mm >= xMin && mm <= xMax
		if inRange {
			out.InRangePixels++
		}
		if mm < extLo || mm > extHi {
			out.OutOfRangePixels++
			continue
		}
		if !inRange {
			out.ExtrapolatedPixels++
		}
		out.CompensatedPixels++

		compensated := ev.Apply(mm) + normalizeOffset
		out.Image.Pix[i] = conv.MMToGray(compensated)
	}

	if out.TotalPixels > 0 {
		out.CompensationRate = float64(out.CompensatedPixels) / float64(out.TotalPixels) * 100
	}
	return out
}
