package depth

import (
	"math"
	"sort"
)

// FilterConfig controls the three-stage denoising chain. The fixed order is
// outlier rejection, then median, then Gaussian.
type FilterConfig struct {
	Enabled          bool
	OutlierStdFactor float64
	MedianSize       int
	GaussianSigma    float64
}

// DefaultFilterConfig returns the production filter settings.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Enabled:          true,
		OutlierStdFactor: 3.0,
		MedianSize:       3,
		GaussianSigma:    1.0,
	}
}

// FilterOutliers reclassifies valid pixels outside mean ± factor·σ of the
// valid population as invalid. With zero valid pixels the input is returned
// unchanged (as a copy).
func FilterOutliers(im *Image, factor float64, sentinel uint16) *Image {
	out := im.Clone()
	var sum, sumSq float64
	n := 0
	for _, v := range im.Pix {
		if v != sentinel {
			f := float64(v)
			sum += f
			sumSq += f * f
			n++
		}
	}
	if n == 0 {
		return out
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)
	lower := mean - factor*std
	upper := mean + factor*std
	for i, v := range out.Pix {
		if v == sentinel {
			continue
		}
		if f := float64(v); f < lower || f > upper {
			out.Pix[i] = sentinel
		}
	}
	return out
}

// MedianFilter applies a windowed median. Invalid positions are first
// replaced by the mean of valid pixels rather than zero, which would bias
// the median at invalid-adjacent borders, then restored to the sentinel
// afterwards. Borders reflect.
func MedianFilter(im *Image, size int, sentinel uint16) *Image {
	mean, ok := ValidMean(im, sentinel)
	if !ok {
		return im.Clone()
	}
	work := fillInvalid(im, mean, sentinel)

	half := size / 2
	window := make([]float64, 0, size*size)
	out := im.Clone()
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			if im.At(x, y) == sentinel {
				continue
			}
			window = window[:0]
			for dy := -half; dy <= half; dy++ {
				ry := reflectIndex(y+dy, im.H)
				for dx := -half; dx <= half; dx++ {
					rx := reflectIndex(x+dx, im.W)
					window = append(window, work.At(rx, ry))
				}
			}
			sort.Float64s(window)
			out.Set(x, y, clampGray(window[len(window)/2]))
		}
	}
	return out
}

// GaussianFilter applies a separable Gaussian blur with the same
// invalid-fill/restore strategy as the median stage. Output values are
// rounded to the nearest gray level.
func GaussianFilter(im *Image, sigma float64, sentinel uint16) *Image {
	mean, ok := ValidMean(im, sentinel)
	if !ok {
		return im.Clone()
	}
	work := fillInvalid(im, mean, sentinel)
	kernel := gaussKernel(sigma)
	half := len(kernel) / 2

	// Horizontal then vertical pass over the filled grid.
	tmp := NewFloatGrid(im.W, im.H)
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			acc := 0.0
			for i, w := range kernel {
				acc += w * work.At(reflectIndex(x+i-half, im.W), y)
			}
			tmp.Set(x, y, acc)
		}
	}
	out := im.Clone()
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			if im.At(x, y) == sentinel {
				continue
			}
			acc := 0.0
			for i, w := range kernel {
				acc += w * tmp.At(x, reflectIndex(y+i-half, im.H))
			}
			out.Set(x, y, clampGray(math.Round(acc)))
		}
	}
	return out
}

// ApplyFilters runs the composed chain. A disabled chain returns a copy of
// the input unchanged.
func ApplyFilters(im *Image, cfg FilterConfig, sentinel uint16) *Image {
	if !cfg.Enabled {
		return im.Clone()
	}
	// A zero parameter switches its stage off.
	filtered := im.Clone()
	if cfg.OutlierStdFactor > 0 {
		filtered = FilterOutliers(filtered, cfg.OutlierStdFactor, sentinel)
	}
	if cfg.MedianSize > 1 {
		filtered = MedianFilter(filtered, cfg.MedianSize, sentinel)
	}
	if cfg.GaussianSigma > 0 {
		filtered = GaussianFilter(filtered, cfg.GaussianSigma, sentinel)
	}
	return filtered
}

func fillInvalid(im *Image, fill float64, sentinel uint16) *FloatGrid {
	g := NewFloatGrid(im.W, im.H)
	for i, v := range im.Pix {
		if v == sentinel {
			g.Pix[i] = fill
		} else {
			g.Pix[i] = float64(v)
		}
	}
	return g
}

// reflectIndex mirrors an out-of-range index back into [0, n).
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i = ((i % period) + period) % period
	if i >= n {
		i = period - 1 - i
	}
	return i
}

func clampGray(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

func gaussKernel(sigma float64) []float64 {
	radius := int(4.0*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
