package domain

import (
	"fmt"
	"math"
)

// BBox is a bounding box (XMin, YMin, XMax, YMax). XMin > XMax denotes a box
// crossing the antimeridian.
type BBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// CrossesAntimeridian reports whether the box wraps past 180°.
func (b BBox) CrossesAntimeridian() bool {
	return b.XMin > b.XMax
}

// Validate checks that all bounds are finite and YMin <= YMax.
func (b BBox) Validate() error {
	for _, v := range []float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bbox bounds must be finite, got %v", ErrValidation, b)
		}
	}
	if b.YMin > b.YMax {
		return fmt.Errorf("%w: bbox y_min %g exceeds y_max %g", ErrValidation, b.YMin, b.YMax)
	}
	return nil
}

// ImageGeom describes a regular destination grid: pixel (0,0) sits at
// (XMin, YMin) and every pixel is Res wide in both axes.
type ImageGeom struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	XMin   float64 `json:"x_min"`
	YMin   float64 `json:"y_min"`
	Res    float64 `json:"res"`
}

// XMax returns XMin + Res*Width, wrapped into [-180, 180] when it exceeds 180.
func (g ImageGeom) XMax() float64 {
	xMax := g.XMin + g.Res*float64(g.Width)
	if xMax > 180.0 {
		xMax -= 360.0
	}
	return xMax
}

// YMax returns YMin + Res*Height.
func (g ImageGeom) YMax() float64 {
	return g.YMin + g.Res*float64(g.Height)
}

// BBox returns the geometry's bounding box.
func (g ImageGeom) BBox() BBox {
	return BBox{XMin: g.XMin, YMin: g.YMin, XMax: g.XMax(), YMax: g.YMax()}
}

// CrossesAntimeridian reports whether the grid wraps past 180°.
func (g ImageGeom) CrossesAntimeridian() bool {
	return g.XMin > g.XMax()
}

// Validate checks for a positive size and a positive, finite resolution.
func (g ImageGeom) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: image size must be positive, got %dx%d", ErrValidation, g.Width, g.Height)
	}
	if !(g.Res > 0) || math.IsInf(g.Res, 0) {
		return fmt.Errorf("%w: resolution must be positive, got %g", ErrValidation, g.Res)
	}
	if math.IsNaN(g.XMin) || math.IsNaN(g.YMin) || math.IsInf(g.XMin, 0) || math.IsInf(g.YMin, 0) {
		return fmt.Errorf("%w: origin must be finite, got (%g, %g)", ErrValidation, g.XMin, g.YMin)
	}
	return nil
}

// XCoords returns XMin + i*Res for every column i.
func (g ImageGeom) XCoords() []float64 {
	xs := make([]float64, g.Width)
	for i := range xs {
		xs[i] = g.XMin + float64(i)*g.Res
	}
	return xs
}

// YCoords returns YMin + j*Res for every row j.
func (g ImageGeom) YCoords() []float64 {
	ys := make([]float64, g.Height)
	for j := range ys {
		ys[j] = g.YMin + float64(j)*g.Res
	}
	return ys
}

// GeomFromBBox builds the geometry covering b at resolution res.
// Crossing boxes are measured across the antimeridian.
func GeomFromBBox(b BBox, res float64) (ImageGeom, error) {
	if err := b.Validate(); err != nil {
		return ImageGeom{}, err
	}
	if !(res > 0) || math.IsInf(res, 0) {
		return ImageGeom{}, fmt.Errorf("%w: resolution must be positive, got %g", ErrValidation, res)
	}
	xMax := b.XMax
	if b.CrossesAntimeridian() {
		xMax += 360.0
	}
	width := int(math.Ceil((xMax - b.XMin) / res))
	height := int(math.Ceil((b.YMax - b.YMin) / res))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return ImageGeom{Width: width, Height: height, XMin: b.XMin, YMin: b.YMin, Res: res}, nil
}
