// Package rectify resamples rasters with curvilinear (per-pixel) x/y
// coordinates onto regular, axis-aligned grids.
//
// The source grid is traversed cell by cell. Each cell is the quadrilateral
// spanned by four neighbouring coordinate samples; destination pixels falling
// inside it receive the value of the nearest corner. Pixels can be filled
// directly (ReprojectInto) or through a reusable source-pixel map
// (ComputeSourcePixels followed by ExtractSourcePixelsInto).
package rectify

import (
	"fmt"
	"slices"

	"go.ngs.io/rectify/internal/domain"
)

// Recognized coordinate variable names, in lookup order.
var (
	LonNames = []string{"lon", "long", "longitude"}
	LatNames = []string{"lat", "latitude"}
	XNames   = append([]string{"x", "xc"}, LonNames...)
	YNames   = append([]string{"y", "yc"}, LatNames...)
)

// GeoCoding holds the 2-D x/y coordinates of a source raster.
// It is read-only once constructed.
type GeoCoding struct {
	X     *domain.Array
	Y     *domain.Array
	XName string
	YName string

	// IsLonNormalized is set when X holds longitudes shifted into [0, 360).
	IsLonNormalized bool
}

// Height returns the number of coordinate rows.
func (g *GeoCoding) Height() int { return g.X.Height() }

// Width returns the number of coordinate columns.
func (g *GeoCoding) Width() int { return g.X.Width() }

// Dims returns the row and column dimension names.
func (g *GeoCoding) Dims() (string, string) { return g.X.SpatialDims() }

// NewGeoCoding resolves the x/y coordinates of ds.
//
// Empty names are detected from XNames and YNames, preferring 2-D variables
// and falling back to 1-D ones, which are then expanded into a 2-D grid.
// Longitudes are normalized across the antimeridian when needed.
func NewGeoCoding(ds *domain.Dataset, xName, yName string) (*GeoCoding, error) {
	xName, err := coordVarName(ds, xName, XNames, "x")
	if err != nil {
		return nil, err
	}
	yName, err = coordVarName(ds, yName, YNames, "y")
	if err != nil {
		return nil, err
	}

	x, err := ds.Var(xName)
	if err != nil {
		return nil, fmt.Errorf("missing coordinate variable: %w", err)
	}
	y, err := ds.Var(yName)
	if err != nil {
		return nil, fmt.Errorf("missing coordinate variable: %w", err)
	}

	if x.NDim() == 1 && y.NDim() == 1 {
		x, y, err = expand1D(x, y)
		if err != nil {
			return nil, err
		}
	}
	if x.NDim() != 2 || y.NDim() != 2 {
		return nil, fmt.Errorf("%w: coordinate variables %q and %q must both have either one or two dimensions",
			domain.ErrShape, xName, yName)
	}
	if !slices.Equal(x.Shape, y.Shape) || !slices.Equal(x.Dims, y.Dims) {
		return nil, fmt.Errorf("%w: coordinate variables %q and %q must have same shape and dimensions",
			domain.ErrShape, xName, yName)
	}
	if x.Width() < 2 || x.Height() < 2 {
		return nil, fmt.Errorf("%w: size in each dimension of %q and %q must be at least two",
			domain.ErrShape, xName, yName)
	}

	gc := &GeoCoding{X: x, Y: y, XName: xName, YName: yName}
	if slices.Contains(LonNames, xName) {
		gc.X, gc.IsLonNormalized, err = NormalizeLon(x)
		if err != nil {
			return nil, err
		}
	}
	return gc, nil
}

func coordVarName(ds *domain.Dataset, name string, candidates []string, axis string) (string, error) {
	if name != "" {
		if !ds.Has(name) {
			return "", fmt.Errorf("%w: coordinate variable %q", domain.ErrNotFound, name)
		}
		return name, nil
	}
	for _, ndim := range []int{2, 1} {
		for _, candidate := range candidates {
			if a, err := ds.Var(candidate); err == nil && a.NDim() == ndim {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: cannot detect %q-coordinate variable (tried: %v)", domain.ErrNotFound, axis, candidates)
}

// expand1D turns 1-D x(dimX) and y(dimY) axes into 2-D grids over (dimY, dimX).
func expand1D(x, y *domain.Array) (*domain.Array, *domain.Array, error) {
	dimX, dimY := x.Dims[0], y.Dims[0]
	if dimX == dimY {
		return nil, nil, fmt.Errorf("%w: 1-D coordinate variables share dimension %q", domain.ErrShape, dimX)
	}
	w, h := x.Shape[0], y.Shape[0]
	xs := make([]float64, h*w)
	ys := make([]float64, h*w)
	for j := 0; j < h; j++ {
		copy(xs[j*w:(j+1)*w], x.Data)
		for i := 0; i < w; i++ {
			ys[j*w+i] = y.Data[j]
		}
	}
	dims := []string{dimY, dimX}
	shape := []int{h, w}
	return &domain.Array{Dims: dims, Shape: shape, Data: xs, Attrs: x.Attrs},
		&domain.Array{Dims: append([]string(nil), dims...), Shape: append([]int(nil), shape...), Data: ys, Attrs: y.Attrs},
		nil
}
