package rectify

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.ngs.io/rectify/internal/domain"
)

// regularGrid returns 2-D x/y arrays with x = x0 + i*step and y = y0 + j*step.
func regularGrid(t *testing.T, w, h int, x0, y0, step float64) (*domain.Array, *domain.Array) {
	t.Helper()
	xs := make([]float64, w*h)
	ys := make([]float64, w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			xs[j*w+i] = x0 + float64(i)*step
			ys[j*w+i] = y0 + float64(j)*step
		}
	}
	x, err := domain.NewArray([]string{"y", "x"}, []int{h, w}, xs)
	if err != nil {
		t.Fatalf("x: %v", err)
	}
	y, err := domain.NewArray([]string{"y", "x"}, []int{h, w}, ys)
	if err != nil {
		t.Fatalf("y: %v", err)
	}
	return x, y
}

func mustArray(t *testing.T, dims []string, shape []int, data []float64) *domain.Array {
	t.Helper()
	a, err := domain.NewArray(dims, shape, data)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	return a
}

func seq(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i)
	}
	return v
}

// TestReprojectInto_Identity rectifies a regular 4x4 grid onto itself.
func TestReprojectInto_Identity(t *testing.T) {
	x, y := regularGrid(t, 4, 4, 0, 0, 1)
	src := mustArray(t, []string{"y", "x"}, []int{4, 4}, seq(16))
	dst := domain.Full([]string{"y", "x"}, []int{4, 4}, 0)

	if err := ReprojectInto(src, x, y, dst, 0, 0, 1, DefaultDelta); err != nil {
		t.Fatalf("ReprojectInto: %v", err)
	}
	for k, want := range src.Data {
		if dst.Data[k] != want {
			t.Errorf("pixel %d: expected %v, got %v", k, want, dst.Data[k])
		}
	}
}

func TestReprojectInto_LeadingDimsAndUncovered(t *testing.T) {
	x, y := regularGrid(t, 2, 2, 0, 0, 1)
	src := mustArray(t, []string{"time", "y", "x"}, []int{2, 2, 2}, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	dst := domain.Full([]string{"time", "y", "x"}, []int{2, 3, 3}, 0)

	if err := ReprojectInto(src, x, y, dst, 0, 0, 1, DefaultDelta); err != nil {
		t.Fatalf("ReprojectInto: %v", err)
	}

	want := []float64{
		1, 2, math.NaN(),
		3, 4, math.NaN(),
		math.NaN(), math.NaN(), math.NaN(),
		5, 6, math.NaN(),
		7, 8, math.NaN(),
		math.NaN(), math.NaN(), math.NaN(),
	}
	for k := range want {
		if math.IsNaN(want[k]) != math.IsNaN(dst.Data[k]) || (!math.IsNaN(want[k]) && want[k] != dst.Data[k]) {
			t.Errorf("element %d: expected %v, got %v", k, want[k], dst.Data[k])
		}
	}
}

// TestReprojectInto_FirstWriteWins folds the second cell back over the first;
// the earlier cell must keep the pixels it already filled.
func TestReprojectInto_FirstWriteWins(t *testing.T) {
	x := mustArray(t, []string{"y", "x"}, []int{2, 3}, []float64{0, 1, 0, 0, 1, 0})
	y := mustArray(t, []string{"y", "x"}, []int{2, 3}, []float64{0, 0, 0, 1, 1, 1})
	src := mustArray(t, []string{"y", "x"}, []int{2, 3}, []float64{10, 20, 30, 40, 50, 60})
	dst := domain.Full([]string{"y", "x"}, []int{2, 2}, 0)

	if err := ReprojectInto(src, x, y, dst, 0, 0, 1, DefaultDelta); err != nil {
		t.Fatalf("ReprojectInto: %v", err)
	}
	want := []float64{10, 20, 40, 50}
	for k := range want {
		if dst.Data[k] != want[k] {
			t.Errorf("pixel %d: expected %v, got %v", k, want[k], dst.Data[k])
		}
	}
}

func TestReprojectInto_NaNCornersSkipped(t *testing.T) {
	x, y := regularGrid(t, 3, 3, 0, 0, 1)
	for k := range x.Data {
		x.Data[k] = math.NaN()
	}
	src := mustArray(t, []string{"y", "x"}, []int{3, 3}, seq(9))
	dst := domain.Full([]string{"y", "x"}, []int{3, 3}, 0)

	if err := ReprojectInto(src, x, y, dst, 0, 0, 1, DefaultDelta); err != nil {
		t.Fatalf("ReprojectInto: %v", err)
	}
	for k, v := range dst.Data {
		if !math.IsNaN(v) {
			t.Errorf("pixel %d: expected NaN, got %v", k, v)
		}
	}
}

func TestReprojectInto_Validation(t *testing.T) {
	x, y := regularGrid(t, 2, 2, 0, 0, 1)
	src := mustArray(t, []string{"y", "x"}, []int{2, 2}, seq(4))
	dst := domain.Full([]string{"y", "x"}, []int{2, 2}, 0)

	if err := ReprojectInto(src, x, y, dst, 0, 0, 0, DefaultDelta); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("zero resolution: expected ErrValidation, got %v", err)
	}
	if err := ReprojectInto(src, x, y, dst, 0, 0, 1, -1); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("negative delta: expected ErrValidation, got %v", err)
	}
	if err := ReprojectInto(src, x, y, dst, 0, 0, 1, 0); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("zero delta: expected ErrValidation, got %v", err)
	}
	if _, err := ComputeSourcePixels(x, y, domain.ImageGeom{Width: 2, Height: 2, Res: 1}, false, 0); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("zero delta: expected ErrValidation from ComputeSourcePixels, got %v", err)
	}

	narrow := mustArray(t, []string{"y", "x"}, []int{2, 1}, []float64{0, 1})
	if err := ReprojectInto(src, narrow, narrow, dst, 0, 0, 1, DefaultDelta); !errors.Is(err, domain.ErrShape) {
		t.Errorf("1-wide grid: expected ErrShape, got %v", err)
	}

	wrongDst := domain.Full([]string{"t", "y", "x"}, []int{2, 2, 2}, 0)
	if err := ReprojectInto(src, x, y, wrongDst, 0, 0, 1, DefaultDelta); !errors.Is(err, domain.ErrShape) {
		t.Errorf("extra leading dim: expected ErrShape, got %v", err)
	}
}

// TestComputeSourcePixels_MatchesDirect checks that both rasterizer modes
// fill the same pixels with the same values.
func TestComputeSourcePixels_MatchesDirect(t *testing.T) {
	// Slightly rotated and sheared grid.
	w, h := 6, 5
	xs := make([]float64, w*h)
	ys := make([]float64, w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			xs[j*w+i] = 10 + 0.9*float64(i) + 0.2*float64(j)
			ys[j*w+i] = 50 - 0.1*float64(i) + 0.8*float64(j)
		}
	}
	x := mustArray(t, []string{"y", "x"}, []int{h, w}, xs)
	y := mustArray(t, []string{"y", "x"}, []int{h, w}, ys)
	src := mustArray(t, []string{"y", "x"}, []int{h, w}, seq(w*h))

	geom := domain.ImageGeom{Width: 12, Height: 10, XMin: 10, YMin: 49.5, Res: 0.5}
	direct := domain.Full([]string{"y", "x"}, []int{geom.Height, geom.Width}, 0)
	if err := ReprojectInto(src, x, y, direct, geom.XMin, geom.YMin, geom.Res, DefaultDelta); err != nil {
		t.Fatalf("ReprojectInto: %v", err)
	}

	pm, err := ComputeSourcePixels(x, y, geom, false, DefaultDelta)
	if err != nil {
		t.Fatalf("ComputeSourcePixels: %v", err)
	}
	if pm.Coverage() == 0 {
		t.Fatal("expected some mapped pixels")
	}
	mapped, err := pm.Extract(src, math.NaN())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	for k := range direct.Data {
		a, b := direct.Data[k], mapped.Data[k]
		if math.IsNaN(a) != math.IsNaN(b) || (!math.IsNaN(a) && a != b) {
			t.Errorf("pixel %d: direct %v, mapped %v", k, a, b)
		}
	}
}

func TestComputeSourcePixels_Fractional(t *testing.T) {
	x, y := regularGrid(t, 3, 3, 0, 0, 2)
	geom := domain.ImageGeom{Width: 4, Height: 4, XMin: 0, YMin: 0, Res: 1}

	pm, err := ComputeSourcePixels(x, y, geom, true, DefaultDelta)
	if err != nil {
		t.Fatalf("ComputeSourcePixels: %v", err)
	}
	if !pm.Fractional {
		t.Error("expected fractional map")
	}

	// Pixel (1, 3) sits at x=1, y=3: half a cell right of column 0, one and
	// a half cells down from row 0.
	k := 3*geom.Width + 1
	if math.Abs(pm.SrcI[k]-0.5) > 1e-9 || math.Abs(pm.SrcJ[k]-1.5) > 1e-9 {
		t.Errorf("pixel (1,3): expected (0.5, 1.5), got (%v, %v)", pm.SrcI[k], pm.SrcJ[k])
	}
}

func TestComputeSourcePixels_InvalidGeom(t *testing.T) {
	x, y := regularGrid(t, 2, 2, 0, 0, 1)
	_, err := ComputeSourcePixels(x, y, domain.ImageGeom{Width: 0, Height: 2, Res: 1}, false, DefaultDelta)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestExtractSourcePixelsInto_RoundingAndClamping(t *testing.T) {
	src := mustArray(t, []string{"y", "x"}, []int{2, 2}, []float64{1, 2, 3, 4})
	pm := NewPixelMap(4, 1)
	copy(pm.SrcI, []float64{-0.7, 1.6, math.NaN(), 0.5})
	copy(pm.SrcJ, []float64{0, 0.4, 0, 0.6})
	dst := domain.Full([]string{"y", "x"}, []int{1, 4}, 0)

	if err := ExtractSourcePixelsInto(src, pm, dst, -1); err != nil {
		t.Fatalf("ExtractSourcePixelsInto: %v", err)
	}

	tests := []struct {
		name     string
		expected float64
	}{
		{"negative index clamps to 0", 1},
		{"index past the edge clamps to last column", 2},
		{"unmapped pixel gets fill", -1},
		{"exact half rounds down", 3},
	}
	for k, tt := range tests {
		if dst.Data[k] != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, dst.Data[k])
		}
	}
}

func TestExtractSourcePixelsInto_ShapeMismatch(t *testing.T) {
	src := mustArray(t, []string{"y", "x"}, []int{2, 2}, []float64{1, 2, 3, 4})
	pm := NewPixelMap(3, 3)
	dst := domain.Full([]string{"y", "x"}, []int{2, 2}, 0)
	if err := ExtractSourcePixelsInto(src, pm, dst, 0); !errors.Is(err, domain.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestExtractParallel(t *testing.T) {
	x, y := regularGrid(t, 8, 8, 0, 0, 1)
	src := mustArray(t, []string{"band", "y", "x"}, []int{2, 8, 8}, seq(128))
	pm, err := ComputeSourcePixels(x, y, domain.ImageGeom{Width: 16, Height: 16, XMin: 0, YMin: 0, Res: 0.5}, false, DefaultDelta)
	if err != nil {
		t.Fatalf("ComputeSourcePixels: %v", err)
	}

	serial, err := pm.Extract(src, -9)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	parallel := domain.Full(serial.Dims, serial.Shape, 0)
	if err := pm.ExtractParallel(context.Background(), src, parallel, -9, 3); err != nil {
		t.Fatalf("ExtractParallel: %v", err)
	}
	for k := range serial.Data {
		if serial.Data[k] != parallel.Data[k] {
			t.Fatalf("element %d: serial %v, parallel %v", k, serial.Data[k], parallel.Data[k])
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pm.ExtractParallel(ctx, src, parallel, -9, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: expected context.Canceled, got %v", err)
	}
}

func TestPixelMap_Translate(t *testing.T) {
	pm := NewPixelMap(2, 1)
	pm.SrcI[0], pm.SrcJ[0] = 0.5, 2

	got := pm.Translate(3, 4)
	if got.SrcI[0] != 3.5 || got.SrcJ[0] != 6 {
		t.Errorf("expected (3.5, 6), got (%v, %v)", got.SrcI[0], got.SrcJ[0])
	}
	if !math.IsNaN(got.SrcI[1]) || !math.IsNaN(got.SrcJ[1]) {
		t.Errorf("expected unmapped pixel to stay NaN, got (%v, %v)", got.SrcI[1], got.SrcJ[1])
	}
	if got.Width != 2 || got.Height != 1 || pm.SrcI[0] != 0.5 {
		t.Errorf("unexpected map %+v", got)
	}
}
