package main

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"go.ngs.io/rectify/internal/adapter/store/files"
	"go.ngs.io/rectify/internal/domain"
	"go.ngs.io/rectify/internal/pkg/config"
)

func writeGrid(t *testing.T, path string) {
	t.Helper()
	ds := domain.NewDataset()
	lon, _ := domain.NewArray([]string{"lon"}, []int{3}, []float64{10, 11, 12})
	lat, _ := domain.NewArray([]string{"lat"}, []int{2}, []float64{50, 51})
	v, _ := domain.NewArray([]string{"lat", "lon"}, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	ds.SetCoord("lon", lon)
	ds.SetCoord("lat", lat)
	ds.Set("v", v)
	if err := files.Write(path, ds); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "grid.csv")
	out := filepath.Join(dir, "rect.csv")
	writeGrid(t, in)

	fill := -1.0
	req := &config.Request{
		Input:        in,
		Output:       out,
		BBox:         []float64{10, 50, 14, 51},
		Res:          1,
		Oversampling: 1,
		DenomX:       1,
		DenomY:       1,
		Fill:         &fill,
		Fractional:   true,
		Workers:      2,
	}
	if err := run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := files.Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	v, err := got.Var("v")
	if err != nil {
		t.Fatalf("Var: %v", err)
	}
	if v.Width() != 4 || v.Height() != 1 {
		t.Fatalf("expected 4x1 output, got %dx%d", v.Width(), v.Height())
	}
	want := []float64{1, 2, 3, -1}
	for i, w := range want {
		if v.At(0, i) != w {
			t.Errorf("pixel %d: expected %v, got %v", i, w, v.At(0, i))
		}
	}
	srcI, err := got.Var("src_i")
	if err != nil {
		t.Fatalf("expected src_i: %v", err)
	}
	if srcI.At(0, 2) != 2 || !math.IsNaN(srcI.At(0, 3)) {
		t.Errorf("unexpected source indices %v", srcI.Data)
	}
}

func TestRun_CroppedSourceIndices(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "grid.csv")
	out := filepath.Join(dir, "rect.csv")

	axis := make([]float64, 10)
	data := make([]float64, 100)
	for i := range axis {
		axis[i] = float64(i)
	}
	for k := range data {
		data[k] = float64(k)
	}
	ds := domain.NewDataset()
	lon, _ := domain.NewArray([]string{"lon"}, []int{10}, axis)
	lat, _ := domain.NewArray([]string{"lat"}, []int{10}, axis)
	v, _ := domain.NewArray([]string{"lat", "lon"}, []int{10, 10}, data)
	ds.SetCoord("lon", lon)
	ds.SetCoord("lat", lat)
	ds.Set("v", v)
	if err := files.Write(in, ds); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	fill := math.NaN()
	req := &config.Request{
		Input:        in,
		Output:       out,
		BBox:         []float64{6, 6, 8, 8},
		Res:          1,
		Oversampling: 1,
		DenomX:       1,
		DenomY:       1,
		Fill:         &fill,
		Fractional:   true,
		Workers:      1,
	}
	if err := run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := files.Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	gv, _ := got.Var("v")
	srcI, err := got.Var("src_i")
	if err != nil {
		t.Fatalf("expected src_i: %v", err)
	}
	srcJ, err := got.Var("src_j")
	if err != nil {
		t.Fatalf("expected src_j: %v", err)
	}
	// Output pixel (0,0) sits on input sample (6,6).
	if srcI.At(0, 0) != 6 || srcJ.At(0, 0) != 6 {
		t.Errorf("expected input index (6, 6), got (%v, %v)", srcI.At(0, 0), srcJ.At(0, 0))
	}
	if gv.At(0, 0) != 66 {
		t.Errorf("expected value 66, got %v", gv.At(0, 0))
	}
}
