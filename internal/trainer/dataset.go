package trainer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"rockguard/internal/features"
)

// LabelColumn holds the observed risk for each historical record.
const LabelColumn = "risk_probability"

type Dataset struct {
	X [][]float64
	Y []float64
}

func (d *Dataset) Len() int { return len(d.Y) }

// DatasetSchemaError is fatal to a training run.
type DatasetSchemaError struct {
	Missing []string
	Row     int
	Column  string
	Err     error
}

func (e *DatasetSchemaError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return "dataset schema: missing columns " + strings.Join(e.Missing, ", ")
	case e.Column != "":
		return fmt.Sprintf("dataset schema: row %d column %s: %v", e.Row, e.Column, e.Err)
	case e.Row > 0:
		return fmt.Sprintf("dataset schema: row %d: %v", e.Row, e.Err)
	default:
		return fmt.Sprintf("dataset schema: %v", e.Err)
	}
}

func (e *DatasetSchemaError) Unwrap() error { return e.Err }

func LoadDatasetFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDataset(f)
}

// LoadDataset reads a CSV with a header row. Feature columns are taken in
// features.Schema order; columns outside the schema are ignored.
func LoadDataset(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DatasetSchemaError{Err: errors.New("dataset is empty")}
		}
		return nil, &DatasetSchemaError{Err: err}
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	required := append(features.Names(), LabelColumn)
	cols := make([]int, 0, len(required))
	var missing []string
	for _, name := range required {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols = append(cols, i)
	}
	if len(missing) > 0 {
		return nil, &DatasetSchemaError{Missing: missing}
	}

	ds := &Dataset{}
	row := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, &DatasetSchemaError{Row: row, Err: err}
		}
		values := make([]float64, len(cols))
		for k, c := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
				err = errors.New("not a finite number")
			}
			if err != nil {
				return nil, &DatasetSchemaError{Row: row, Column: required[k], Err: err}
			}
			values[k] = v
		}
		ds.X = append(ds.X, values[:features.Count])
		ds.Y = append(ds.Y, values[features.Count])
	}
	if ds.Len() == 0 {
		return nil, &DatasetSchemaError{Err: errors.New("dataset has no records")}
	}
	return ds, nil
}
