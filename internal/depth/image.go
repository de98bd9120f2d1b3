// Package depth implements the numeric core of the depth-station pipeline:
// the 16-bit depth image model, region-of-interest extraction, the
// invalid-aware denoising filter chain, and least-squares plane calibration.
//
// Every stage is a pure function over in-memory grids. Stages never mutate
// their input; each returns a fresh grid with the sentinel preserved at
// originally-invalid positions unless documented otherwise.
package depth

// Image is a row-major grid of 16-bit gray values. One reserved sentinel
// value marks pixels with no measurement.
type Image struct {
	W, H int
	Pix  []uint16
}

// NewImage allocates a zeroed image of the given size.
func NewImage(w, h int) *Image {
	return &Image{W: w, H: h, Pix: make([]uint16, w*h)}
}

// At returns the pixel at (x, y). No bounds checking; callers stay in range.
func (im *Image) At(x, y int) uint16 { return im.Pix[y*im.W+x] }

// Set writes the pixel at (x, y).
func (im *Image) Set(x, y int, v uint16) { im.Pix[y*im.W+x] = v }

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	out := &Image{W: im.W, H: im.H, Pix: make([]uint16, len(im.Pix))}
	copy(out.Pix, im.Pix)
	return out
}

// Size returns the pixel count.
func (im *Image) Size() int { return im.W * im.H }

// FloatGrid is a row-major grid of float64 values, used for deviation and
// calibrated outputs where sub-gray precision matters.
type FloatGrid struct {
	W, H int
	Pix  []float64
}

// NewFloatGrid allocates a zeroed grid.
func NewFloatGrid(w, h int) *FloatGrid {
	return &FloatGrid{W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the value at (x, y).
func (g *FloatGrid) At(x, y int) float64 { return g.Pix[y*g.W+x] }

// Set writes the value at (x, y).
func (g *FloatGrid) Set(x, y int, v float64) { g.Pix[y*g.W+x] = v }

// ROI selects a rectangular sub-region of an image. Width or height of -1
// extends to the image edge.
type ROI struct {
	X, Y          int
	Width, Height int
}

// FullImage is the ROI covering the whole image.
var FullImage = ROI{X: 0, Y: 0, Width: -1, Height: -1}

// ExtractROI returns the sub-grid selected by the ROI. The full-image ROI
// returns the input as-is; callers must not rely on aliasing. Out-of-bounds
// rectangles are clipped; a rectangle fully outside the image yields an
// empty region, which downstream stages report as insufficient data.
func ExtractROI(im *Image, r ROI) *Image {
	if r.Width == -1 && r.Height == -1 {
		// Both dimensions open-ended selects the whole image, whatever
		// the origin says.
		return im
	}
	x0 := max(0, r.X)
	y0 := max(0, r.Y)
	x1 := im.W
	if r.Width != -1 {
		x1 = min(im.W, r.X+r.Width)
	}
	y1 := im.H
	if r.Height != -1 {
		y1 = min(im.H, r.Y+r.Height)
	}
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	out := NewImage(x1-x0, y1-y0)
	for y := y0; y < y1; y++ {
		copy(out.Pix[(y-y0)*out.W:(y-y0+1)*out.W], im.Pix[y*im.W+x0:y*im.W+x1])
	}
	return out
}

// ValidPixels returns a flattened validity mask and the valid values.
func ValidPixels(im *Image, sentinel uint16) (mask []bool, values []uint16) {
	mask = make([]bool, len(im.Pix))
	values = make([]uint16, 0, len(im.Pix))
	for i, v := range im.Pix {
		if v != sentinel {
			mask[i] = true
			values = append(values, v)
		}
	}
	return mask, values
}

// CountValid returns the number of non-sentinel pixels.
func CountValid(im *Image, sentinel uint16) int {
	n := 0
	for _, v := range im.Pix {
		if v != sentinel {
			n++
		}
	}
	return n
}

// ValidMean returns the mean of valid pixels and false when none exist.
func ValidMean(im *Image, sentinel uint16) (float64, bool) {
	sum, n := 0.0, 0
	for _, v := range im.Pix {
		if v != sentinel {
			sum += float64(v)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
