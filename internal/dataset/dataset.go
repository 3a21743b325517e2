// Package dataset loads the labeled CSV the offline trainer consumes, so the
// producer's feature arity can be checked against real training data.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// #region types

// DefaultInputDim is the feature arity shared with the producer.
const DefaultInputDim = 8

// DefaultNormalLabel marks rows the trainer learns from.
const DefaultNormalLabel = 0.0

// Result holds the usable normal rows and how many rows were malformed.
type Result struct {
	Rows    [][]float64
	Dropped int
	// HasHeader reports whether the first row was treated as a header.
	HasHeader bool
}

// ErrNoRows is returned when no usable normal row remains.
var ErrNoRows = errors.New("no valid normal rows")

// #endregion types

// #region load

// LoadLabeledCSV reads path and keeps the feature columns of rows whose
// trailing label equals normalLabel.
func LoadLabeledCSV(path string, inputDim int, normalLabel float64) (Result, error) {
	if inputDim <= 0 {
		return Result{}, fmt.Errorf("input dim must be positive, got %d", inputDim)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("resolve dataset path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Result{}, fmt.Errorf("dataset file not found: %s: %w", abs, err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("dataset path is a directory: %s", abs)
	}

	f, err := os.Open(abs)
	if err != nil {
		return Result{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	res, err := Parse(f, inputDim, normalLabel)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", abs, err)
	}
	return res, nil
}

// Parse is LoadLabeledCSV over an already opened reader.
func Parse(r io.Reader, inputDim int, normalLabel float64) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var (
		res  Result
		rows [][]string
	)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.Dropped++
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("read csv: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return Result{}, errors.New("dataset file is empty")
	}

	if isHeader(rows[0], inputDim) {
		res.HasHeader = true
		rows = rows[1:]
		if len(rows) == 0 {
			return Result{}, errors.New("dataset file has header but no data rows")
		}
	}

	for _, row := range rows {
		feats, label, ok := parseRow(row, inputDim)
		if !ok {
			res.Dropped++
			continue
		}
		if label != normalLabel {
			continue
		}
		res.Rows = append(res.Rows, feats)
	}
	if len(res.Rows) == 0 {
		return Result{}, ErrNoRows
	}
	return res, nil
}

// #endregion load

// #region helpers

// isHeader treats the first row as a header when any of its first inputDim
// cells is not a number.
func isHeader(row []string, inputDim int) bool {
	for i := 0; i < inputDim && i < len(row); i++ {
		if _, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err != nil {
			return true
		}
	}
	return false
}

func parseRow(row []string, inputDim int) ([]float64, float64, bool) {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	if len(cells) < inputDim+1 {
		return nil, 0, false
	}

	feats := make([]float64, inputDim)
	for i := range feats {
		v, err := strconv.ParseFloat(cells[i], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, false
		}
		feats[i] = v
	}
	label, err := strconv.ParseFloat(cells[len(cells)-1], 64)
	if err != nil || math.IsNaN(label) || math.IsInf(label, 0) {
		return nil, 0, false
	}
	return feats, label, true
}

// #endregion helpers
