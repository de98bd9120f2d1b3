// Package units converts between raw 16-bit depth gray values and
// physical distances in millimetres.
package units

import "math"

// Default fixed-point encoding used by the sensor.
const (
	DefaultOffset      = 32768.0
	DefaultScaleFactor = 1.6
	// Sentinel is the reserved gray value meaning "no measurement".
	Sentinel uint16 = 65535
)

// Converter maps gray values to millimetres and back using a fixed-point
// encoding: mm = (gray - offset) * scale / 1000. The zero value is not
// usable; construct with NewConverter.
type Converter struct {
	offset float64
	scale  float64
}

// NewConverter returns a converter for the given encoding parameters.
func NewConverter(offset, scaleFactor float64) Converter {
	return Converter{offset: offset, scale: scaleFactor}
}

// DefaultConverter returns a converter with the sensor's stock encoding.
func DefaultConverter() Converter {
	return NewConverter(DefaultOffset, DefaultScaleFactor)
}

// GrayToMM converts a single gray value to millimetres. The second return
// is false when the input is the sentinel, which has no physical meaning.
func (c Converter) GrayToMM(gray uint16) (float64, bool) {
	if gray == Sentinel {
		return 0, false
	}
	return (float64(gray) - c.offset) * c.scale / 1000.0, true
}

// MMToGray converts millimetres to a gray value, rounding to the nearest
// integer and clamping to the uint16 range.
func (c Converter) MMToGray(mm float64) uint16 {
	g := math.Round(mm*1000.0/c.scale + c.offset)
	if g < 0 {
		return 0
	}
	if g > 65535 {
		return 65535
	}
	return uint16(g)
}

// GrayToMMRaw converts without the sentinel check. Bulk callers mask
// sentinels themselves so the per-element path stays branch-free.
func (c Converter) GrayToMMRaw(gray float64) float64 {
	return (gray - c.offset) * c.scale / 1000.0
}

// GrayToMMSlice converts a slice of gray values to millimetres. Sentinels
// are not special-cased; the caller is responsible for masking them.
func (c Converter) GrayToMMSlice(gray []uint16, out []float64) []float64 {
	if out == nil {
		out = make([]float64, len(gray))
	}
	for i, g := range gray {
		out[i] = (float64(g) - c.offset) * c.scale / 1000.0
	}
	return out
}

// MMToGraySlice converts millimetres back to gray values with rounding
// and clamping per element.
func (c Converter) MMToGraySlice(mm []float64, out []uint16) []uint16 {
	if out == nil {
		out = make([]uint16, len(mm))
	}
	for i, v := range mm {
		out[i] = c.MMToGray(v)
	}
	return out
}
