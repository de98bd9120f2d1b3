// Command depth-report is the station CLI: it calibrates depth sensors
// against a flat reference target, applies the resulting compensation
// models to depth images, and scores linearity and repeatability.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sonme-data/depth.report/internal/calibdb"
	"github.com/sonme-data/depth.report/internal/compensate"
	"github.com/sonme-data/depth.report/internal/config"
	"github.com/sonme-data/depth.report/internal/fsutil"
	"github.com/sonme-data/depth.report/internal/model"
	"github.com/sonme-data/depth.report/internal/report"
	"github.com/sonme-data/depth.report/internal/service"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  calibrate   Fit a compensation model from a calibration dataset
  compensate  Apply a saved model to a depth image or directory
  verify      Score a saved model against a test dataset
  repeat      Measure shot-to-shot repeatability of static exposures
  runs        List recorded calibration runs

Run '%s <command> -h' for command flags.
`, os.Args[0], os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "calibrate":
		err = runCalibrate(os.Args[2:])
	case "compensate":
		err = runCompensate(os.Args[2:])
	case "verify", "linearity":
		err = runVerify(os.Args[2:])
	case "repeat":
		err = runRepeat(os.Args[2:])
	case "runs":
		err = runRuns(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// loadStation builds a Station from an optional JSON config file.
func loadStation(name, configPath string) (*service.Station, error) {
	var cfg *config.StationConfig
	if configPath != "" {
		loaded, err := config.LoadStationConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return service.NewStation(name, cfg), nil
}

func runCalibrate(args []string) error {
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	dataset := fs.String("dataset", "", "Calibration dataset directory (images + displacement CSV)")
	modelOut := fs.String("model", "model.json", "Output path for the fitted model")
	configPath := fs.String("config", "", "Station config JSON (optional)")
	station := fs.String("station", "default", "Station name recorded with the run")
	dbPath := fs.String("db", "", "SQLite run-history database (optional)")
	htmlOut := fs.String("report", "", "Write an HTML calibration report (optional)")
	plotOut := fs.String("plot", "", "Write a PNG of the compensation curve (optional)")
	fs.Parse(args)

	if *dataset == "" {
		return fmt.Errorf("-dataset is required")
	}
	st, err := loadStation(*station, *configPath)
	if err != nil {
		return err
	}

	svc := &service.CalibrationService{Station: st}
	if *dbPath != "" {
		db, err := calibdb.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("open run database: %w", err)
		}
		defer db.Close()
		svc.DB = db
	}

	out, err := svc.Run(*dataset, *modelOut)
	if err != nil {
		return err
	}
	log.Printf("[Calibrate] model saved to %s", out.ModelPath)

	if *htmlOut != "" {
		if err := report.WriteHTML(report.Summary{
			Station: *station,
			RunID:   out.RunID,
			Model:   out.Model,
			Effect:  &out.Effect,
		}, *htmlOut); err != nil {
			return err
		}
		log.Printf("[Calibrate] report written to %s", *htmlOut)
	}
	if *plotOut != "" {
		if err := report.SaveCurvePNG(out.Model, *plotOut); err != nil {
			return err
		}
		log.Printf("[Calibrate] curve plot written to %s", *plotOut)
	}
	return nil
}

func runCompensate(args []string) error {
	fs := flag.NewFlagSet("compensate", flag.ExitOnError)
	modelPath := fs.String("model", "", "Saved model JSON")
	in := fs.String("in", "", "Input depth image or directory")
	out := fs.String("out", "", "Output image path, or directory for batch input")
	configPath := fs.String("config", "", "Station config JSON (optional)")
	station := fs.String("station", "default", "Station name")
	normalize := fs.Bool("normalize", false, "Shift output to center on -target")
	target := fs.Float64("target", 0, "Normalization target center in mm")
	fs.Parse(args)

	if *modelPath == "" || *in == "" || *out == "" {
		return fmt.Errorf("-model, -in and -out are required")
	}
	st, err := loadStation(*station, *configPath)
	if err != nil {
		return err
	}
	m, err := model.Load(*modelPath)
	if err != nil {
		return err
	}

	svc := &service.CompensationService{
		Station: st,
		Model:   m,
		Normalize: compensate.NormalizeConfig{
			Enabled:      *normalize,
			AutoOffset:   true,
			TargetCenter: *target,
		},
	}

	info, err := os.Stat(*in)
	if err != nil {
		return err
	}
	if info.IsDir() {
		_, err = svc.CompensateDir(*in, *out)
		return err
	}
	_, err = svc.CompensateFile(*in, *out)
	return err
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	modelPath := fs.String("model", "", "Saved model JSON")
	dataset := fs.String("dataset", "", "Test dataset directory (images + displacement CSV)")
	configPath := fs.String("config", "", "Station config JSON (optional)")
	station := fs.String("station", "default", "Station name")
	plotOut := fs.String("plot", "", "Write a PNG of residuals before/after (optional)")
	fs.Parse(args)

	if *modelPath == "" || *dataset == "" {
		return fmt.Errorf("-model and -dataset are required")
	}
	st, err := loadStation(*station, *configPath)
	if err != nil {
		return err
	}
	m, err := model.Load(*modelPath)
	if err != nil {
		return err
	}

	svc := &service.VerificationService{Station: st, Model: m}
	out, err := svc.Run(*dataset)
	if err != nil {
		return err
	}

	fmt.Printf("exposures:    %d (%d skipped)\n", len(out.Actual), len(out.Skipped))
	fmt.Printf("linearity:    %.4f%% -> %.4f%% of full scale\n",
		out.Effect.Before.Linearity, out.Effect.After.Linearity)
	fmt.Printf("abs max dev:  %.4fmm -> %.4fmm\n",
		out.Effect.Before.AbsMaxDeviation, out.Effect.After.AbsMaxDeviation)
	fmt.Printf("improvement:  %.1f%%\n", out.Effect.ImprovementPercent)

	if *plotOut != "" {
		if err := report.SaveResidualsPNG(out.Actual, out.Measured, out.Compensated, *plotOut); err != nil {
			return err
		}
		log.Printf("[Verify] residual plot written to %s", *plotOut)
	}
	return nil
}

func runRepeat(args []string) error {
	fs := flag.NewFlagSet("repeat", flag.ExitOnError)
	dir := fs.String("dir", "", "Directory of repeated exposures of a static target")
	configPath := fs.String("config", "", "Station config JSON (optional)")
	station := fs.String("station", "default", "Station name")
	fs.Parse(args)

	if *dir == "" {
		return fmt.Errorf("-dir is required")
	}
	st, err := loadStation(*station, *configPath)
	if err != nil {
		return err
	}
	paths, err := fsutil.ListImages(*dir)
	if err != nil {
		return err
	}

	svc := &service.RepeatabilityService{Station: st}
	res, err := svc.Analyze(paths)
	if err != nil {
		return err
	}

	fmt.Printf("exposures:      %d\n", res.Exposures)
	fmt.Printf("mean:           %.4fmm\n", res.Mean)
	fmt.Printf("sigma:          %.4fmm\n", res.Sigma)
	fmt.Printf("3 sigma:        %.4fmm\n", res.ThreeSigma)
	fmt.Printf("6 sigma:        %.4fmm\n", res.SixSigma)
	fmt.Printf("peak to peak:   %.4fmm\n", res.PeakToPeak)
	fmt.Printf("intra-exposure: %.4fmm\n", res.MeanIntraSigma)
	return nil
}

func runRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", "", "SQLite run-history database")
	limit := fs.Int("limit", 20, "Maximum runs to list")
	fs.Parse(args)

	if *dbPath == "" {
		return fmt.Errorf("-db is required")
	}
	db, err := calibdb.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Runs(*limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Println(r.String())
	}
	return nil
}
