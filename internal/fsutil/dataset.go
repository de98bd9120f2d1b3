// Package fsutil discovers calibration datasets on disk: depth images in
// natural (numeric-aware) filename order, paired with the CSV file that
// supplies the ground-truth displacement per exposure.
package fsutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// DefaultDisplacementColumns are the recognized CSV headers for the
// ground-truth displacement, checked in order.
var DefaultDisplacementColumns = []string{
	"displacement",
	"Displacement",
	"displacement_mm",
	"actual_displacement_mm",
	"actual_displacement",
}

// Dataset is one calibration or test directory: a CSV of displacements and
// the depth images paired with it by natural filename order.
type Dataset struct {
	CSVPath       string
	ImagePaths    []string
	Displacements []float64
}

var trailingNumber = regexp.MustCompile(`\d+`)

// naturalKey extracts the last number in a filename stem, so img_2 sorts
// before img_10.
func naturalKey(path string) int {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	nums := trailingNumber.FindAllString(stem, -1)
	if len(nums) == 0 {
		return 0
	}
	n, err := strconv.Atoi(nums[len(nums)-1])
	if err != nil {
		return 0
	}
	return n
}

// SortNatural orders paths by the last number in their stem, falling back
// to lexical order for ties.
func SortNatural(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		a, b := naturalKey(paths[i]), naturalKey(paths[j])
		if a != b {
			return a < b
		}
		return paths[i] < paths[j]
	})
}

// ListImages returns the depth-image files in a directory in natural order.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan image directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	SortNatural(paths)
	return paths, nil
}

// FindDataset locates the CSV and images of a calibration directory and
// parses the displacement column. The CSV and image counts may differ;
// callers pair them index by index up to the shorter length.
func FindDataset(dir string, displacementColumns []string) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan dataset directory: %w", err)
	}

	var csvPath string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			csvPath = filepath.Join(dir, e.Name())
			break
		}
	}
	if csvPath == "" {
		return nil, fmt.Errorf("no CSV file in %s", dir)
	}

	images, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no depth images in %s", dir)
	}

	displacements, err := ParseDisplacementCSV(csvPath, displacementColumns)
	if err != nil {
		return nil, err
	}

	return &Dataset{
		CSVPath:       csvPath,
		ImagePaths:    images,
		Displacements: displacements,
	}, nil
}

// ParseDisplacementCSV reads the displacement column from a CSV file.
// The first matching recognized header wins; rows whose cell does not
// parse as a number are skipped.
func ParseDisplacementCSV(path string, columns []string) ([]float64, error) {
	if len(columns) == 0 {
		columns = DefaultDisplacementColumns
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := -1
	for _, want := range columns {
		for i, h := range header {
			// Excel exports prepend a UTF-8 BOM to the first header.
			if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == want {
				col = i
				break
			}
		}
		if col >= 0 {
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("no displacement column in %s (recognized: %s)",
			path, strings.Join(columns, ", "))
	}

	var out []float64
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		if col >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no displacement rows in %s", path)
	}
	return out, nil
}
