// Package imageio reads and writes single-channel 16-bit depth rasters.
// PNG is handled by the standard library, TIFF by golang.org/x/image/tiff.
// The no-data sentinel is format-dependent at this boundary: PNG exports
// use 65535, while some TIFF exports mark missing pixels with 0. Loads can
// remap a file-level sentinel to the pipeline's canonical one.
package imageio

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/sonme-data/depth.report/internal/depth"
)

// LoadOptions controls sentinel handling at the file boundary.
type LoadOptions struct {
	// FileSentinel is the value the file uses for "no data".
	FileSentinel uint16
	// Sentinel is the canonical in-memory sentinel. When it differs from
	// FileSentinel, matching pixels are remapped on load.
	Sentinel uint16
}

// DefaultLoadOptions assumes the file already uses the canonical sentinel.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{FileSentinel: 65535, Sentinel: 65535}
}

// ReadDepthImage loads a 16-bit depth raster, deciding the codec from the
// file extension.
func ReadDepthImage(path string, opts LoadOptions) (*depth.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open depth image: %w", err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(f)
	case ".tif", ".tiff":
		img, err = tiff.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported depth image format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fromImage(img, opts)
}

func fromImage(img image.Image, opts LoadOptions) (*depth.Image, error) {
	b := img.Bounds()
	out := depth.NewImage(b.Dx(), b.Dy())

	gray, ok := img.(*image.Gray16)
	if !ok {
		return nil, fmt.Errorf("depth image must be 16-bit single channel, got %T", img)
	}
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+2*b.Dx()]
		for x := 0; x < b.Dx(); x++ {
			v := uint16(row[2*x])<<8 | uint16(row[2*x+1])
			if v == opts.FileSentinel {
				v = opts.Sentinel
			}
			out.Set(x, y, v)
		}
	}
	return out, nil
}

// WriteDepthImage saves a depth image, deciding the codec from the file
// extension and creating parent directories as needed.
func WriteDepthImage(img *depth.Image, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".png" && ext != ".tif" && ext != ".tiff" {
		return fmt.Errorf("unsupported depth image format: %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	gray := image.NewGray16(image.Rect(0, 0, img.W, img.H))
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			v := img.At(x, y)
			gray.Pix[y*gray.Stride+2*x] = uint8(v >> 8)
			gray.Pix[y*gray.Stride+2*x+1] = uint8(v)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create depth image: %w", err)
	}
	defer f.Close()

	if ext == ".png" {
		err = png.Encode(f, gray)
	} else {
		err = tiff.Encode(f, gray, nil)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
