package imageio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonme-data/depth.report/internal/depth"
)

func testImage() *depth.Image {
	img := depth.NewImage(8, 6)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			img.Set(x, y, uint16(30000+100*x+7*y))
		}
	}
	img.Set(3, 2, 65535)
	return img
}

func TestPNGRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depth_1.png")
	src := testImage()

	require.NoError(t, WriteDepthImage(src, path))

	got, err := ReadDepthImage(path, DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, src.W, got.W)
	assert.Equal(t, src.H, got.H)
	assert.Equal(t, src.Pix, got.Pix)
}

func TestTIFFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depth_1.tif")
	src := testImage()

	require.NoError(t, WriteDepthImage(src, path))

	got, err := ReadDepthImage(path, DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, src.Pix, got.Pix)
}

func TestSentinelRemapOnLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zeros.tif")

	src := depth.NewImage(4, 4)
	for i := range src.Pix {
		src.Pix[i] = 40000
	}
	src.Set(1, 1, 0) // file marks missing pixels with 0
	require.NoError(t, WriteDepthImage(src, path))

	got, err := ReadDepthImage(path, LoadOptions{FileSentinel: 0, Sentinel: 65535})
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), got.At(1, 1))
	assert.Equal(t, uint16(40000), got.At(0, 0))
}

func TestWriteCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "nested", "d.png")

	require.NoError(t, WriteDepthImage(testImage(), path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	err := WriteDepthImage(testImage(), filepath.Join(dir, "d.bmp"))
	assert.ErrorContains(t, err, "unsupported depth image format")

	path := filepath.Join(dir, "d.jpg")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	_, err = ReadDepthImage(path, DefaultLoadOptions())
	assert.ErrorContains(t, err, "unsupported depth image format")
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadDepthImage(filepath.Join(t.TempDir(), "nope.png"), DefaultLoadOptions())
	assert.ErrorContains(t, err, "open depth image")
}
