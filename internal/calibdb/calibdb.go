// Package calibdb persists calibration runs in a local SQLite database so
// stations keep an auditable history of models and their linearity scores.
package calibdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			station TEXT,
			dataset_dir TEXT,
			model_path TEXT,
			model_version TEXT,
			num_points INTEGER,
			linearity_before DOUBLE,
			linearity_after DOUBLE,
			status TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT,
			seq INTEGER,
			image_path TEXT,
			actual_mm DOUBLE,
			measured_mm DOUBLE,
			flatness_mm DOUBLE,
			valid_pixels INTEGER,
			accepted INTEGER,
			reason TEXT,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// Run is one calibration attempt, successful or not.
type Run struct {
	RunID           string
	Station         string
	DatasetDir      string
	ModelPath       string
	ModelVersion    string
	NumPoints       int
	LinearityBefore float64
	LinearityAfter  float64
	Status          string
	CreatedAt       time.Time
}

func (r *Run) String() string {
	return fmt.Sprintf("Run %s: station=%s points=%d status=%s linearity %.4f%% -> %.4f%%",
		r.RunID, r.Station, r.NumPoints, r.Status, r.LinearityBefore, r.LinearityAfter)
}

// Sample is one exposure inside a run, including rejected ones.
type Sample struct {
	RunID       string
	Seq         int
	ImagePath   string
	ActualMM    float64
	MeasuredMM  float64
	FlatnessMM  float64
	ValidPixels int
	Accepted    bool
	Reason      string
}

// CreateRun registers a new calibration run and returns its generated ID.
func (db *DB) CreateRun(station, datasetDir string) (string, error) {
	runID := uuid.NewString()
	_, err := db.Exec(
		"INSERT INTO runs (run_id, station, dataset_dir, status) VALUES (?, ?, ?, 'running')",
		runID, station, datasetDir)
	if err != nil {
		return "", err
	}
	return runID, nil
}

// RecordSample stores one exposure's outcome under a run.
func (db *DB) RecordSample(s Sample) error {
	accepted := 0
	if s.Accepted {
		accepted = 1
	}
	_, err := db.Exec(
		`INSERT INTO samples (run_id, seq, image_path, actual_mm, measured_mm,
			flatness_mm, valid_pixels, accepted, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Seq, s.ImagePath, s.ActualMM, s.MeasuredMM,
		s.FlatnessMM, s.ValidPixels, accepted, s.Reason)
	return err
}

// FinishRun marks a run complete and stores the model location and scores.
func (db *DB) FinishRun(runID, modelPath, modelVersion string, numPoints int, linearityBefore, linearityAfter float64) error {
	_, err := db.Exec(
		`UPDATE runs SET model_path = ?, model_version = ?, num_points = ?,
			linearity_before = ?, linearity_after = ?, status = 'complete'
		 WHERE run_id = ?`,
		modelPath, modelVersion, numPoints, linearityBefore, linearityAfter, runID)
	return err
}

// FailRun marks a run failed with a reason.
func (db *DB) FailRun(runID, reason string) error {
	_, err := db.Exec("UPDATE runs SET status = ? WHERE run_id = ?",
		"failed: "+reason, runID)
	return err
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT run_id, station, dataset_dir,
			COALESCE(model_path, ''), COALESCE(model_version, ''),
			COALESCE(num_points, 0),
			COALESCE(linearity_before, 0), COALESCE(linearity_after, 0),
			status, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Station, &r.DatasetDir,
			&r.ModelPath, &r.ModelVersion, &r.NumPoints,
			&r.LinearityBefore, &r.LinearityAfter,
			&r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// RunSamples returns the exposures of one run in capture order.
func (db *DB) RunSamples(runID string) ([]Sample, error) {
	rows, err := db.Query(
		`SELECT run_id, seq, image_path, actual_mm, measured_mm,
			flatness_mm, valid_pixels, accepted, COALESCE(reason, '')
		 FROM samples WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var accepted int
		if err := rows.Scan(&s.RunID, &s.Seq, &s.ImagePath, &s.ActualMM,
			&s.MeasuredMM, &s.FlatnessMM, &s.ValidPixels, &accepted, &s.Reason); err != nil {
			return nil, err
		}
		s.Accepted = accepted != 0
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
