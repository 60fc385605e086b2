package store

import (
	"errors"
	"math"
	"strings"
	"testing"

	"go.ngs.io/rectify/internal/domain"
	"go.ngs.io/rectify/internal/rectify"
)

func TestEncodeDecodePixelMap(t *testing.T) {
	pm := rectify.NewPixelMap(3, 2)
	pm.SrcI[0], pm.SrcJ[0] = 1, 2
	pm.SrcI[4], pm.SrcJ[4] = 0.25, 0.75
	pm.Fractional = true

	b, err := EncodePixelMap(pm)
	if err != nil {
		t.Fatalf("EncodePixelMap: %v", err)
	}
	got, err := DecodePixelMap(b)
	if err != nil {
		t.Fatalf("DecodePixelMap: %v", err)
	}

	if got.Width != 3 || got.Height != 2 || !got.Fractional {
		t.Errorf("header mismatch: %+v", got)
	}
	if got.SrcI[0] != 1 || got.SrcJ[4] != 0.75 {
		t.Errorf("indices mismatch: %v %v", got.SrcI, got.SrcJ)
	}
	if !math.IsNaN(got.SrcI[1]) {
		t.Errorf("expected NaN to survive, got %v", got.SrcI[1])
	}
}

func TestDecodePixelMap_Garbage(t *testing.T) {
	if _, err := DecodePixelMap([]byte("not zstd")); err == nil {
		t.Error("expected error for garbage input")
	}

	bad := &rectify.PixelMap{Width: 2, Height: 2, SrcI: []float64{0}, SrcJ: []float64{0}}
	b, err := EncodePixelMap(bad)
	if err != nil {
		t.Fatalf("EncodePixelMap: %v", err)
	}
	if _, err := DecodePixelMap(b); !errors.Is(err, domain.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestPixelMapKey(t *testing.T) {
	x, _ := domain.NewArray([]string{"y", "x"}, []int{2, 2}, []float64{0, 1, 0, 1})
	y, _ := domain.NewArray([]string{"y", "x"}, []int{2, 2}, []float64{0, 0, 1, 1})
	gc := &rectify.GeoCoding{X: x, Y: y, XName: "x", YName: "y"}
	geom := domain.ImageGeom{Width: 2, Height: 2, Res: 1}

	k1 := PixelMapKey(gc, geom, 1e-3, false)
	if !strings.HasPrefix(k1, "pixelmap:") {
		t.Errorf("unexpected key %q", k1)
	}
	if k2 := PixelMapKey(gc, geom, 1e-3, false); k1 != k2 {
		t.Errorf("expected stable keys, got %q and %q", k1, k2)
	}

	variants := map[string]string{
		"fractional": PixelMapKey(gc, geom, 1e-3, true),
		"delta":      PixelMapKey(gc, geom, 1e-4, false),
		"geometry":   PixelMapKey(gc, domain.ImageGeom{Width: 2, Height: 2, Res: 0.5}, 1e-3, false),
	}
	for name, k := range variants {
		if k == k1 {
			t.Errorf("%s: expected a different key", name)
		}
	}
}

func TestResolveID(t *testing.T) {
	id, err := ResolveID("")
	if err != nil || len(id) != 36 {
		t.Errorf("expected generated uuid, got %q, %v", id, err)
	}
	if id, err := ResolveID("scenes/a"); err != nil || id != "scenes/a" {
		t.Errorf("expected id to be kept, got %q, %v", id, err)
	}
	if _, err := ResolveID("../escape"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
