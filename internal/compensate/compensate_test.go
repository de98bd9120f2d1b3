package compensate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonme-data/depth.report/internal/depth"
	"github.com/sonme-data/depth.report/internal/units"
)

const sentinel = uint16(65535)

func TestImageCompensation(t *testing.T) {
	m := buildTestModel(t)
	conv := units.DefaultConverter()

	img := depth.NewImage(10, 10)
	inRangeGray := conv.MMToGray(20.0)     // inside the measured range
	outOfRangeGray := conv.MMToGray(50.0)  // beyond the extension margin
	extrapolateGray := conv.MMToGray(41.0) // within the +2mm margin above 40.03
	for i := range img.Pix {
		img.Pix[i] = inRangeGray
	}
	img.Pix[0] = sentinel
	img.Pix[1] = outOfRangeGray
	img.Pix[2] = extrapolateGray

	out := Image(img, m, conv, sentinel, DefaultExtrapolateConfig(), 0)

	assert.Equal(t, 100, out.TotalPixels)
	assert.Equal(t, 1, out.InvalidPixels)
	assert.Equal(t, 99, out.ValidPixels)
	assert.Equal(t, 97, out.InRangePixels)
	assert.Equal(t, 1, out.ExtrapolatedPixels)
	assert.Equal(t, 98, out.CompensatedPixels)
	assert.Equal(t, 1, out.OutOfRangePixels)
	assert.InDelta(t, 98.0, out.CompensationRate, 1e-9)

	// Invalid pixels keep the sentinel; out-of-range pixels are untouched.
	assert.Equal(t, sentinel, out.Image.Pix[0])
	assert.Equal(t, outOfRangeGray, out.Image.Pix[1])
	// Compensated pixels moved toward the true value.
	mm, ok := conv.GrayToMM(out.Image.Pix[50])
	require.True(t, ok)
	assert.Greater(t, mm, 15.0)
	assert.Less(t, mm, 25.0)

	// The input image itself is untouched.
	assert.Equal(t, inRangeGray, img.Pix[50])
}

// Pixels the applicator chooses not to touch must be numerically identical
// before and after, and sentinels must survive, for any input.
func TestInvalidPreservationInvariant(t *testing.T) {
	m := buildTestModel(t)
	conv := units.DefaultConverter()

	img := depth.NewImage(8, 8)
	for i := range img.Pix {
		switch i % 3 {
		case 0:
			img.Pix[i] = sentinel
		case 1:
			img.Pix[i] = conv.MMToGray(10.0)
		default:
			img.Pix[i] = conv.MMToGray(50.0) // out of range
		}
	}

	out := Image(img, m, conv, sentinel, DefaultExtrapolateConfig(), 0)
	for i := range img.Pix {
		switch i % 3 {
		case 0:
			assert.Equal(t, sentinel, out.Image.Pix[i], "pixel %d", i)
		case 2:
			assert.Equal(t, img.Pix[i], out.Image.Pix[i], "pixel %d", i)
		}
	}
}

func TestImageAllInvalid(t *testing.T) {
	m := buildTestModel(t)
	conv := units.DefaultConverter()

	img := depth.NewImage(4, 4)
	for i := range img.Pix {
		img.Pix[i] = sentinel
	}

	out := Image(img, m, conv, sentinel, DefaultExtrapolateConfig(), 0)
	assert.Equal(t, 16, out.InvalidPixels)
	assert.Equal(t, 0, out.ValidPixels)
	assert.Equal(t, 0, out.CompensatedPixels)
	assert.Equal(t, 0.0, out.CompensationRate)
}

func TestImageDisabledExtrapolationNarrowsRange(t *testing.T) {
	m := buildTestModel(t)
	conv := units.DefaultConverter()

	img := depth.NewImage(2, 2)
	img.Pix[0] = conv.MMToGray(41.0) // outside measured range, inside margin
	img.Pix[1] = conv.MMToGray(20.0)
	img.Pix[2] = conv.MMToGray(20.0)
	img.Pix[3] = conv.MMToGray(20.0)

	cfg := DefaultExtrapolateConfig()
	cfg.Enabled = false
	out := Image(img, m, conv, sentinel, cfg, 0)

	assert.Equal(t, 3, out.CompensatedPixels)
	assert.Equal(t, 1, out.OutOfRangePixels)
	assert.Equal(t, 0, out.ExtrapolatedPixels)
	assert.Equal(t, img.Pix[0], out.Image.Pix[0], "untouched pixel must be identical")
}

func TestNormalizationOffset(t *testing.T) {
	m := buildTestModel(t)

	// Actual range is [0, 40]; centering on zero shifts by -20.
	off := NormalizationOffset(m, 0)
	assert.InDelta(t, -20.0, off, 1e-9)

	assert.Equal(t, 0.0, ResolveOffset(m, NormalizeConfig{}))
	assert.InDelta(t, -20.0, ResolveOffset(m, NormalizeConfig{Enabled: true, AutoOffset: true}), 1e-9)
	assert.Equal(t, 1.5, ResolveOffset(m, NormalizeConfig{Enabled: true, ManualOffset: 1.5}))
}

func TestImageNormalizeOffsetShiftsOutput(t *testing.T) {
	m := buildTestModel(t)
	conv := units.DefaultConverter()

	img := depth.NewImage(2, 1)
	img.Pix[0] = conv.MMToGray(20.0)
	img.Pix[1] = conv.MMToGray(20.0)

	cfg := DefaultExtrapolateConfig()
	cfg.ClampOutput = false // offset may push values below the clamp floor
	base := Image(img, m, conv, sentinel, cfg, 0)
	shifted := Image(img, m, conv, sentinel, cfg, 1.0)

	baseMM, _ := conv.GrayToMM(base.Image.Pix[0])
	shiftedMM, _ := conv.GrayToMM(shifted.Image.Pix[0])
	assert.InDelta(t, baseMM+1.0, shiftedMM, 0.01)
	assert.Equal(t, 1.0, shifted.NormalizeOffset)
}
