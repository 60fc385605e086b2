// Package csv provides grid-point CSV dataset I/O.
//
// The header names the row dimension, the column dimension and then one
// column per variable, e.g. "row,col,lon,lat,sst". Each record holds the
// integer row and column index of one grid cell followed by its values.
// Empty fields and "NaN" read as missing values.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.ngs.io/rectify/internal/domain"
)

// Extension is the file extension of CSV datasets.
const Extension = ".csv"

// ReadFile reads a grid-point CSV file.
func ReadFile(path string) (*domain.Dataset, error) {
	//nolint:gosec // G304: path is chosen by the operator.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return Read(file)
}

// Read parses a grid-point CSV stream. Every variable becomes a 2-D array over
// the two index dimensions; cells without a record are NaN.
func Read(r io.Reader) (*domain.Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) < 3 {
		return nil, fmt.Errorf("%w: invalid CSV header: expected row and column dimensions and at least one variable, got %v",
			domain.ErrValidation, header)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	dimY, dimX, names := header[0], header[1], header[2:]

	type cell struct {
		j, i   int
		values []float64
	}
	var cells []cell
	height, width := 0, 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("%w: line %d: expected %d columns, got %d", domain.ErrValidation, line, len(header), len(record))
		}

		j, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil || j < 0 {
			return nil, fmt.Errorf("%w: line %d: invalid %s index %q", domain.ErrValidation, line, dimY, record[0])
		}
		i, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: line %d: invalid %s index %q", domain.ErrValidation, line, dimX, record[1])
		}

		values := make([]float64, len(names))
		for k, field := range record[2:] {
			field = strings.TrimSpace(field)
			if field == "" {
				values[k] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid value for %s: %v", domain.ErrValidation, line, names[k], err)
			}
			values[k] = v
		}
		cells = append(cells, cell{j: j, i: i, values: values})
		height = max(height, j+1)
		width = max(width, i+1)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: no records found in CSV", domain.ErrValidation)
	}

	ds := domain.NewDataset()
	dims := []string{dimY, dimX}
	shape := []int{height, width}
	for k, name := range names {
		a := domain.Full(dims, shape, math.NaN())
		for _, c := range cells {
			a.Data[c.j*width+c.i] = c.values[k]
		}
		ds.Set(name, a)
	}
	return ds, nil
}

// WriteFile writes ds to path as grid-point CSV, replacing any existing file.
func WriteFile(path string, ds *domain.Dataset) error {
	//nolint:gosec // G304: path is chosen by the operator.
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := Write(file, ds); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Write encodes the 2-D variables of ds that share the grid of the first one.
// 1-D variables along either grid dimension are broadcast over the grid;
// everything else is dropped.
func Write(w io.Writer, ds *domain.Dataset) error {
	var grid *domain.Array
	for _, name := range ds.Names() {
		if a, _ := ds.Var(name); a.NDim() == 2 {
			grid = a
			break
		}
	}
	if grid == nil {
		return fmt.Errorf("%w: dataset has no 2-D variable to write as CSV", domain.ErrUnsupported)
	}
	dimY, dimX := grid.SpatialDims()
	height, width := grid.Height(), grid.Width()

	type column struct {
		name string
		at   func(j, i int) float64
	}
	var columns []column
	for _, name := range ds.Names() {
		a, _ := ds.Var(name)
		switch {
		case a.MatchesGrid(grid):
			if a.NDim() == 2 {
				columns = append(columns, column{name, a.At})
			}
		case a.NDim() == 1 && a.Dims[0] == dimX && a.Shape[0] == width:
			columns = append(columns, column{name, func(_, i int) float64 { return a.Data[i] }})
		case a.NDim() == 1 && a.Dims[0] == dimY && a.Shape[0] == height:
			columns = append(columns, column{name, func(j, _ int) float64 { return a.Data[j] }})
		}
	}

	writer := csv.NewWriter(w)
	header := []string{dimY, dimX}
	for _, c := range columns {
		header = append(header, c.name)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(header))
	for j := 0; j < height; j++ {
		for i := 0; i < width; i++ {
			record[0] = strconv.Itoa(j)
			record[1] = strconv.Itoa(i)
			for k, c := range columns {
				v := c.at(j, i)
				if math.IsNaN(v) {
					record[k+2] = ""
				} else {
					record[k+2] = strconv.FormatFloat(v, 'g', -1, 64)
				}
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
