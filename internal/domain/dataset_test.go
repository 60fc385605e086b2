package domain

import (
	"errors"
	"math"
	"testing"
)

func TestNewArray_ShapeMismatch(t *testing.T) {
	if _, err := NewArray([]string{"y", "x"}, []int{2, 3}, make([]float64, 5)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for short buffer, got %v", err)
	}
	if _, err := NewArray([]string{"y"}, []int{2, 3}, make([]float64, 6)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for missing dim name, got %v", err)
	}
}

func TestArray_Crop(t *testing.T) {
	// Two 3x4 planes holding 0..23.
	data := make([]float64, 24)
	for i := range data {
		data[i] = float64(i)
	}
	a, err := NewArray([]string{"time", "y", "x"}, []int{2, 3, 4}, data)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}

	c := a.Crop(1, 3, 1, 3)
	if c.Height() != 2 || c.Width() != 2 || c.Layers() != 2 {
		t.Fatalf("unexpected cropped shape %v", c.Shape)
	}
	expected := []float64{5, 6, 9, 10, 17, 18, 21, 22}
	for i, v := range expected {
		if c.Data[i] != v {
			t.Errorf("crop[%d]: expected %v, got %v", i, v, c.Data[i])
		}
	}
}

func TestArray_MatchesGrid(t *testing.T) {
	grid := Full([]string{"y", "x"}, []int{3, 4}, 0)

	tests := []struct {
		name     string
		array    *Array
		expected bool
	}{
		{"same 2D", Full([]string{"y", "x"}, []int{3, 4}, 1), true},
		{"leading dim", Full([]string{"t", "y", "x"}, []int{5, 3, 4}, 1), true},
		{"transposed dims", Full([]string{"x", "y"}, []int{3, 4}, 1), false},
		{"other size", Full([]string{"y", "x"}, []int{3, 5}, 1), false},
		{"1D", Full([]string{"x"}, []int{4}, 1), false},
	}

	for _, tt := range tests {
		if got := tt.array.MatchesGrid(grid); got != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, got)
		}
	}
}

func TestArray_MinMaxIgnoresNaN(t *testing.T) {
	a := &Array{Dims: []string{"x"}, Shape: []int{4}, Data: []float64{math.NaN(), 3, -2, math.NaN()}}
	lo, hi, ok := a.MinMax()
	if !ok || lo != -2 || hi != 3 {
		t.Fatalf("expected (-2, 3, true), got (%v, %v, %v)", lo, hi, ok)
	}

	empty := Full([]string{"x"}, []int{2}, math.NaN())
	if _, _, ok := empty.MinMax(); ok {
		t.Fatalf("expected ok=false for all-NaN array")
	}
}

func TestDataset_VarNotFound(t *testing.T) {
	ds := NewDataset()
	ds.Set("chl", Full([]string{"y", "x"}, []int{2, 2}, 1))

	if _, err := ds.Var("chl"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ds.Var("tsm"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDataset_DataNamesSkipCoords(t *testing.T) {
	ds := NewDataset()
	ds.SetCoord("lon", Full([]string{"y", "x"}, []int{2, 2}, 0))
	ds.Set("chl", Full([]string{"y", "x"}, []int{2, 2}, 1))
	ds.SetCoord("lat", Full([]string{"y", "x"}, []int{2, 2}, 0))
	ds.Set("tsm", Full([]string{"y", "x"}, []int{2, 2}, 2))

	names := ds.DataNames()
	if len(names) != 2 || names[0] != "chl" || names[1] != "tsm" {
		t.Fatalf("expected [chl tsm], got %v", names)
	}
	if len(ds.Names()) != 4 {
		t.Fatalf("expected 4 names, got %v", ds.Names())
	}
}

func TestDataset_DimsConflict(t *testing.T) {
	ds := NewDataset()
	ds.Set("a", Full([]string{"y", "x"}, []int{2, 3}, 0))
	ds.Set("b", Full([]string{"y", "x"}, []int{2, 4}, 0))
	if _, _, err := ds.Dims(); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestImageGeom_XMaxWraps(t *testing.T) {
	g := ImageGeom{Width: 20, Height: 10, XMin: 170, YMin: -5, Res: 1}
	if got := g.XMax(); got != -170 {
		t.Fatalf("expected wrapped x_max -170, got %v", got)
	}
	if !g.CrossesAntimeridian() {
		t.Fatalf("expected geometry to cross the antimeridian")
	}
	if got := g.YMax(); got != 5 {
		t.Fatalf("expected y_max 5, got %v", got)
	}
}

func TestGeomFromBBox(t *testing.T) {
	g, err := GeomFromBBox(BBox{XMin: 170, YMin: 0, XMax: -170, YMax: 10}, 0.5)
	if err != nil {
		t.Fatalf("GeomFromBBox: %v", err)
	}
	if g.Width != 40 || g.Height != 20 {
		t.Fatalf("expected 40x20, got %dx%d", g.Width, g.Height)
	}

	if _, err := GeomFromBBox(BBox{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero res, got %v", err)
	}
	if _, err := GeomFromBBox(BBox{XMin: 0, YMin: 2, XMax: 1, YMax: 1}, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for inverted y, got %v", err)
	}
}
