// Package service wires the depth pipeline together: dataset discovery,
// per-exposure plane calibration, model fitting, image compensation and
// repeatability analysis, all driven by a station configuration.
package service

import (
	"github.com/sonme-data/depth.report/internal/compensate"
	"github.com/sonme-data/depth.report/internal/config"
	"github.com/sonme-data/depth.report/internal/depth"
	"github.com/sonme-data/depth.report/internal/imageio"
	"github.com/sonme-data/depth.report/internal/units"
)

// Station resolves a StationConfig into the concrete pieces the services
// share. Built once, read-only afterwards.
type Station struct {
	Name string

	Converter units.Converter
	ROI       depth.ROI
	Calibrate depth.CalibrateConfig
	Extrap    compensate.ExtrapolateConfig
	LoadOpts  imageio.LoadOptions

	DisplacementColumns []string
	SplineDegree        int
	FullScale           float64
}

// NewStation resolves the configuration once. A nil config selects all
// defaults.
func NewStation(name string, cfg *config.StationConfig) *Station {
	if cfg == nil {
		cfg = config.EmptyStationConfig()
	}
	x, y, w, h := cfg.GetROI()

	// Zeroed filter parameters switch the corresponding stage off.
	filter := depth.FilterConfig{
		Enabled: cfg.GetOutlierEnabled() || cfg.GetMedianEnabled() || cfg.GetGaussianEnabled(),
	}
	if cfg.GetOutlierEnabled() {
		filter.OutlierStdFactor = cfg.GetOutlierSigma()
	}
	if cfg.GetMedianEnabled() {
		filter.MedianSize = cfg.GetMedianSize()
	}
	if cfg.GetGaussianEnabled() {
		filter.GaussianSigma = cfg.GetGaussianSigma()
	}

	return &Station{
		Name:      name,
		Converter: units.NewConverter(float64(cfg.GetDepthOffset()), cfg.GetScaleFactor()),
		ROI:       depth.ROI{X: x, Y: y, Width: w, Height: h},
		Calibrate: depth.CalibrateConfig{
			Filter:         filter,
			Sentinel:       uint16(cfg.GetInvalidGray()),
			MinValidPixels: cfg.GetMinValidPixels(),
			MinValidRatio:  cfg.GetMinValidRatio(),
		},
		Extrap: compensate.ExtrapolateConfig{
			Enabled:     cfg.GetExtrapolateEnabled(),
			MaxLow:      cfg.GetExtrapolateMaxLow(),
			MaxHigh:     cfg.GetExtrapolateMaxHigh(),
			ClampOutput: cfg.GetClampOutput(),
			OutputMin:   cfg.GetOutputMin(),
			OutputMax:   cfg.GetOutputMax(),
		},
		LoadOpts: imageio.LoadOptions{
			FileSentinel: uint16(cfg.GetFileSentinel()),
			Sentinel:     uint16(cfg.GetInvalidGray()),
		},
		DisplacementColumns: cfg.GetDisplacementColumns(),
		SplineDegree:        cfg.GetSplineDegree(),
		FullScale:           cfg.GetFullScale(),
	}
}

// Sentinel is the canonical no-data gray value for this station.
func (s *Station) Sentinel() uint16 { return s.Calibrate.Sentinel }
