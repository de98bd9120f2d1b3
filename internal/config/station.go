package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StationConfig is the root configuration for a calibration station.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* accessors supply defaults for everything else.
type StationConfig struct {
	// Unit conversion params
	DepthOffset *int     `json:"depth_offset,omitempty"`
	ScaleFactor *float64 `json:"scale_factor,omitempty"`
	InvalidGray *int     `json:"invalid_gray,omitempty"`

	// Region of interest: x, y, width, height. Width or height of -1
	// means "to the image edge".
	ROIX      *int `json:"roi_x,omitempty"`
	ROIY      *int `json:"roi_y,omitempty"`
	ROIWidth  *int `json:"roi_width,omitempty"`
	ROIHeight *int `json:"roi_height,omitempty"`

	// Validity thresholds
	MinValidPixels *int     `json:"min_valid_pixels,omitempty"`
	MinValidRatio  *float64 `json:"min_valid_ratio,omitempty"`

	// Filter params
	OutlierEnabled  *bool    `json:"outlier_enabled,omitempty"`
	OutlierSigma    *float64 `json:"outlier_sigma,omitempty"`
	MedianEnabled   *bool    `json:"median_enabled,omitempty"`
	MedianSize      *int     `json:"median_size,omitempty"`
	GaussianEnabled *bool    `json:"gaussian_enabled,omitempty"`
	GaussianSigma   *float64 `json:"gaussian_sigma,omitempty"`

	// Model params
	SplineDegree *int     `json:"spline_degree,omitempty"`
	FullScale    *float64 `json:"full_scale,omitempty"`

	// Extrapolation params
	ExtrapolateEnabled *bool    `json:"extrapolate_enabled,omitempty"`
	ExtrapolateMaxLow  *float64 `json:"extrapolate_max_low,omitempty"`
	ExtrapolateMaxHigh *float64 `json:"extrapolate_max_high,omitempty"`
	ClampOutput        *bool    `json:"clamp_output,omitempty"`
	OutputMin          *float64 `json:"output_min,omitempty"`
	OutputMax          *float64 `json:"output_max,omitempty"`

	// Dataset params
	DisplacementColumns []string `json:"displacement_columns,omitempty"`
	FileSentinel        *int     `json:"file_sentinel,omitempty"`
}

// EmptyStationConfig returns a StationConfig with all fields unset, so
// every accessor reports its default.
func EmptyStationConfig() *StationConfig {
	return &StationConfig{}
}

// LoadStationConfig loads a StationConfig from a JSON file. Fields
// omitted from the file keep their defaults, so partial configs are safe.
func LoadStationConfig(path string) (*StationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyStationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *StationConfig) Validate() error {
	if c.ScaleFactor != nil && *c.ScaleFactor <= 0 {
		return fmt.Errorf("scale_factor must be positive, got %f", *c.ScaleFactor)
	}
	if c.DepthOffset != nil && (*c.DepthOffset < 0 || *c.DepthOffset > 65535) {
		return fmt.Errorf("depth_offset must be a 16-bit gray value, got %d", *c.DepthOffset)
	}
	if c.InvalidGray != nil && (*c.InvalidGray < 0 || *c.InvalidGray > 65535) {
		return fmt.Errorf("invalid_gray must be a 16-bit gray value, got %d", *c.InvalidGray)
	}
	if c.MinValidRatio != nil && (*c.MinValidRatio < 0 || *c.MinValidRatio > 1) {
		return fmt.Errorf("min_valid_ratio must be between 0 and 1, got %f", *c.MinValidRatio)
	}
	if c.OutlierSigma != nil && *c.OutlierSigma <= 0 {
		return fmt.Errorf("outlier_sigma must be positive, got %f", *c.OutlierSigma)
	}
	if c.MedianSize != nil && (*c.MedianSize < 1 || *c.MedianSize%2 == 0) {
		return fmt.Errorf("median_size must be a positive odd number, got %d", *c.MedianSize)
	}
	if c.GaussianSigma != nil && *c.GaussianSigma <= 0 {
		return fmt.Errorf("gaussian_sigma must be positive, got %f", *c.GaussianSigma)
	}
	if c.SplineDegree != nil && (*c.SplineDegree < 1 || *c.SplineDegree > 3) {
		return fmt.Errorf("spline_degree must be between 1 and 3, got %d", *c.SplineDegree)
	}
	if c.FullScale != nil && *c.FullScale <= 0 {
		return fmt.Errorf("full_scale must be positive, got %f", *c.FullScale)
	}
	if c.ExtrapolateMaxLow != nil && *c.ExtrapolateMaxLow < 0 {
		return fmt.Errorf("extrapolate_max_low must be non-negative, got %f", *c.ExtrapolateMaxLow)
	}
	if c.ExtrapolateMaxHigh != nil && *c.ExtrapolateMaxHigh < 0 {
		return fmt.Errorf("extrapolate_max_high must be non-negative, got %f", *c.ExtrapolateMaxHigh)
	}
	if c.OutputMin != nil && c.OutputMax != nil && *c.OutputMin > *c.OutputMax {
		return fmt.Errorf("output_min %f exceeds output_max %f", *c.OutputMin, *c.OutputMax)
	}
	return nil
}

// GetDepthOffset returns the gray value corresponding to 0mm.
func (c *StationConfig) GetDepthOffset() int {
	if c.DepthOffset == nil {
		return 32768
	}
	return *c.DepthOffset
}

// GetScaleFactor returns micrometres per gray step.
func (c *StationConfig) GetScaleFactor() float64 {
	if c.ScaleFactor == nil {
		return 1.6
	}
	return *c.ScaleFactor
}

// GetInvalidGray returns the no-data sentinel gray value.
func (c *StationConfig) GetInvalidGray() int {
	if c.InvalidGray == nil {
		return 65535
	}
	return *c.InvalidGray
}

// GetROI returns the configured region of interest as x, y, width, height.
func (c *StationConfig) GetROI() (x, y, w, h int) {
	x, y, w, h = 0, 0, -1, -1
	if c.ROIX != nil {
		x = *c.ROIX
	}
	if c.ROIY != nil {
		y = *c.ROIY
	}
	if c.ROIWidth != nil {
		w = *c.ROIWidth
	}
	if c.ROIHeight != nil {
		h = *c.ROIHeight
	}
	return x, y, w, h
}

// GetMinValidPixels returns the absolute valid-pixel floor.
func (c *StationConfig) GetMinValidPixels() int {
	if c.MinValidPixels == nil {
		return 100
	}
	return *c.MinValidPixels
}

// GetMinValidRatio returns the fractional valid-pixel floor.
func (c *StationConfig) GetMinValidRatio() float64 {
	if c.MinValidRatio == nil {
		return 0.10
	}
	return *c.MinValidRatio
}

// GetOutlierEnabled reports whether sigma clipping runs.
func (c *StationConfig) GetOutlierEnabled() bool {
	if c.OutlierEnabled == nil {
		return true
	}
	return *c.OutlierEnabled
}

// GetOutlierSigma returns the sigma-clipping threshold.
func (c *StationConfig) GetOutlierSigma() float64 {
	if c.OutlierSigma == nil {
		return 3.0
	}
	return *c.OutlierSigma
}

// GetMedianEnabled reports whether the median filter runs.
func (c *StationConfig) GetMedianEnabled() bool {
	if c.MedianEnabled == nil {
		return true
	}
	return *c.MedianEnabled
}

// GetMedianSize returns the median window edge length.
func (c *StationConfig) GetMedianSize() int {
	if c.MedianSize == nil {
		return 3
	}
	return *c.MedianSize
}

// GetGaussianEnabled reports whether the gaussian filter runs.
func (c *StationConfig) GetGaussianEnabled() bool {
	if c.GaussianEnabled == nil {
		return true
	}
	return *c.GaussianEnabled
}

// GetGaussianSigma returns the gaussian standard deviation in pixels.
func (c *StationConfig) GetGaussianSigma() float64 {
	if c.GaussianSigma == nil {
		return 1.0
	}
	return *c.GaussianSigma
}

// GetSplineDegree returns the maximum spline degree for model fitting.
func (c *StationConfig) GetSplineDegree() int {
	if c.SplineDegree == nil {
		return 3
	}
	return *c.SplineDegree
}

// GetFullScale returns the station's measurement span in millimetres.
func (c *StationConfig) GetFullScale() float64 {
	if c.FullScale == nil {
		return 41.0
	}
	return *c.FullScale
}

// GetExtrapolateEnabled reports whether out-of-range compensation runs.
func (c *StationConfig) GetExtrapolateEnabled() bool {
	if c.ExtrapolateEnabled == nil {
		return true
	}
	return *c.ExtrapolateEnabled
}

// GetExtrapolateMaxLow returns the extension below the model domain, in mm.
func (c *StationConfig) GetExtrapolateMaxLow() float64 {
	if c.ExtrapolateMaxLow == nil {
		return 2.0
	}
	return *c.ExtrapolateMaxLow
}

// GetExtrapolateMaxHigh returns the extension above the model domain, in mm.
func (c *StationConfig) GetExtrapolateMaxHigh() float64 {
	if c.ExtrapolateMaxHigh == nil {
		return 2.0
	}
	return *c.ExtrapolateMaxHigh
}

// GetClampOutput reports whether compensated values are clamped.
func (c *StationConfig) GetClampOutput() bool {
	if c.ClampOutput == nil {
		return true
	}
	return *c.ClampOutput
}

// GetOutputMin returns the lower clamp for compensated values, in mm.
func (c *StationConfig) GetOutputMin() float64 {
	if c.OutputMin == nil {
		return 0.0
	}
	return *c.OutputMin
}

// GetOutputMax returns the upper clamp for compensated values, in mm.
func (c *StationConfig) GetOutputMax() float64 {
	if c.OutputMax == nil {
		return 43.0
	}
	return *c.OutputMax
}

// GetDisplacementColumns returns the recognized CSV headers for the
// ground-truth displacement.
func (c *StationConfig) GetDisplacementColumns() []string {
	if len(c.DisplacementColumns) == 0 {
		return nil // callers fall back to the fsutil defaults
	}
	return c.DisplacementColumns
}

// GetFileSentinel returns the no-data value depth files use on disk.
func (c *StationConfig) GetFileSentinel() int {
	if c.FileSentinel == nil {
		return 65535
	}
	return *c.FileSentinel
}
