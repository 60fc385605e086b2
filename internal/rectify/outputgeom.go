package rectify

import (
	"fmt"
	"math"

	"go.ngs.io/rectify/internal/domain"
)

// GeomOptions tune ComputeOutputGeom.
type GeomOptions struct {
	// Oversampling > 1 yields a finer destination grid.
	Oversampling float64
	// DenomX and DenomY round the width and height up to a multiple,
	// e.g. the tile size.
	DenomX int
	DenomY int
	// Delta excludes neighbour distances at or below it as duplicates.
	Delta float64
}

// DefaultGeomOptions returns oversampling 1, denominators 1 and delta 1e-10.
func DefaultGeomOptions() GeomOptions {
	return GeomOptions{Oversampling: 1.0, DenomX: 1, DenomY: 1, Delta: 1e-10}
}

// WithDefaults fills zero oversampling and denominators with 1. The zero
// value yields DefaultGeomOptions.
func (o GeomOptions) WithDefaults() GeomOptions {
	if o == (GeomOptions{}) {
		return DefaultGeomOptions()
	}
	if o.Oversampling == 0 {
		o.Oversampling = 1.0
	}
	if o.DenomX == 0 {
		o.DenomX = 1
	}
	if o.DenomY == 0 {
		o.DenomY = 1
	}
	return o
}

// Validate rejects non-positive oversampling or denominators and negative deltas.
func (o GeomOptions) Validate() error {
	if !(o.Oversampling > 0) {
		return fmt.Errorf("%w: oversampling must be positive, got %g", domain.ErrValidation, o.Oversampling)
	}
	if o.DenomX < 1 || o.DenomY < 1 {
		return fmt.Errorf("%w: denominators must be at least 1, got %d, %d", domain.ErrValidation, o.DenomX, o.DenomY)
	}
	if !(o.Delta >= 0) {
		return fmt.Errorf("%w: delta must not be negative, got %g", domain.ErrValidation, o.Delta)
	}
	return nil
}

// ComputeOutputGeom returns a geometry that covers the bounding box of gc at
// a resolution no coarser than the source's finest neighbour spacing.
//
// The resolution is the smallest neighbour distance along either grid axis,
// divided by sqrt(2)*Oversampling. The origin is the coordinate minimum.
func ComputeOutputGeom(gc *GeoCoding, opts GeomOptions) (domain.ImageGeom, error) {
	if err := opts.Validate(); err != nil {
		return domain.ImageGeom{}, err
	}

	xRes, yRes := neighbourResolution(gc.X.Data, gc.Y.Data, gc.Height(), gc.Width(), opts.Delta)
	res := math.Min(xRes, yRes) / (math.Sqrt2 * opts.Oversampling)
	if math.IsInf(res, 0) || !(res > 0) {
		return domain.ImageGeom{}, fmt.Errorf("%w: cannot derive a resolution from %q and %q, all neighbour distances are degenerate",
			domain.ErrShape, gc.XName, gc.YName)
	}

	xMin, xMax, okX := gc.X.MinMax()
	yMin, yMax, okY := gc.Y.MinMax()
	if !okX || !okY {
		return domain.ImageGeom{}, fmt.Errorf("%w: coordinate variables %q and %q hold no valid values",
			domain.ErrShape, gc.XName, gc.YName)
	}

	width := 1 + int(math.Floor((xMax-xMin)/res))
	height := 1 + int(math.Floor((yMax-yMin)/res))
	return domain.ImageGeom{
		Width:  roundUp(width, opts.DenomX),
		Height: roundUp(height, opts.DenomY),
		XMin:   xMin,
		YMin:   yMin,
		Res:    res,
	}, nil
}

// BBoxGeom returns the geometry covering bbox at resolution res. A nil bbox
// selects the extent ComputeOutputGeom derives from gc with opts.
//
// When gc holds normalized longitudes, a western XMin is shifted into
// [180, 360) so that the box and the source share one longitude range.
func BBoxGeom(gc *GeoCoding, bbox *domain.BBox, res float64, opts GeomOptions) (domain.ImageGeom, error) {
	var b domain.BBox
	if bbox != nil {
		b = *bbox
		if gc.IsLonNormalized && b.XMin < 0 {
			b.XMin += 360.0
		}
	} else {
		inferred, err := ComputeOutputGeom(gc, opts.WithDefaults())
		if err != nil {
			return domain.ImageGeom{}, err
		}
		b = inferred.BBox()
	}
	return domain.GeomFromBBox(b, res)
}

// neighbourResolution returns the smallest distance > delta between
// horizontally adjacent samples and between vertically adjacent samples.
// NaN distances never qualify.
func neighbourResolution(xs, ys []float64, h, w int, delta float64) (xRes, yRes float64) {
	xRes, yRes = math.Inf(1), math.Inf(1)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			k := j*w + i
			if i+1 < w {
				if d := math.Hypot(xs[k+1]-xs[k], ys[k+1]-ys[k]); d > delta && d < xRes {
					xRes = d
				}
			}
			if j+1 < h {
				if d := math.Hypot(xs[k+w]-xs[k], ys[k+w]-ys[k]); d > delta && d < yRes {
					yRes = d
				}
			}
		}
	}
	return xRes, yRes
}

func roundUp(n, denom int) int {
	return denom * ((n + denom - 1) / denom)
}
