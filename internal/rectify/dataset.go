package rectify

import (
	"context"
	"fmt"
	"maps"
	"math"

	"go.ngs.io/rectify/internal/domain"
)

// Options control ReprojectDataset.
type Options struct {
	// VarNames selects the variables to rectify; nil selects all that fit.
	VarNames []string
	// GeoCoding overrides the coordinates found in the dataset.
	GeoCoding *GeoCoding
	// XName and YName name the coordinate variables. Ignored if GeoCoding is set.
	XName, YName string
	// OutputGeom fixes the destination grid. If nil it is derived from the
	// source with GeomOptions and covers the whole source.
	OutputGeom  *domain.ImageGeom
	GeomOptions GeomOptions
	// Delta is the point-in-triangle tolerance. Zero selects DefaultDelta.
	Delta float64

	// UsePixelMap rectifies through a source-pixel map instead of writing
	// values directly. Unmapped pixels then get FillValue instead of NaN.
	UsePixelMap bool
	FillValue   float64
	// Workers bounds the goroutines used for pixel map extraction.
	Workers int
}

func (o Options) delta() float64 {
	if o.Delta == 0 {
		return DefaultDelta
	}
	return o.Delta
}

// Prepared is a source dataset reduced to what a rectification needs.
type Prepared struct {
	GeoCoding *GeoCoding
	Geom      domain.ImageGeom
	Vars      []domain.Variable
	Attrs     map[string]any

	// window locates GeoCoding within the input grid.
	window  Window
	delta   float64
	fill    float64
	workers int
}

// Prepare resolves coordinates, variables and the destination grid of ds.
// If opts.OutputGeom is set the source is first cropped to it. A nil result
// with a nil error means the source does not intersect the output grid.
func Prepare(ds *domain.Dataset, opts Options) (*Prepared, error) {
	if !(opts.Delta >= 0) {
		return nil, fmt.Errorf("%w: delta must not be negative, got %g", domain.ErrValidation, opts.Delta)
	}

	gc := opts.GeoCoding
	if gc == nil {
		var err error
		gc, err = NewGeoCoding(ds, opts.XName, opts.YName)
		if err != nil {
			return nil, err
		}
	}

	vars, err := SelectVariables(ds, opts.VarNames, gc)
	if err != nil {
		return nil, err
	}

	var geom domain.ImageGeom
	window := Window{Row1: gc.Height(), Col1: gc.Width()}
	if opts.OutputGeom == nil {
		geom, err = ComputeOutputGeom(gc, opts.GeomOptions.WithDefaults())
		if err != nil {
			return nil, err
		}
	} else {
		geom = *opts.OutputGeom
		if err := geom.Validate(); err != nil {
			return nil, err
		}
		gc, vars, window, err = cropToGeom(gc, vars, geom)
		if err != nil {
			return nil, err
		}
		if gc == nil {
			return nil, nil
		}
	}

	return &Prepared{
		GeoCoding: gc,
		Geom:      geom,
		Vars:      vars,
		Attrs:     maps.Clone(ds.Attrs),
		window:    window,
		delta:     opts.delta(),
		fill:      opts.FillValue,
		workers:   max(opts.Workers, 1),
	}, nil
}

// cropToGeom restricts the coordinates and the selected variables to the
// part of the source covering geom, and returns that part's window. It
// returns a nil GeoCoding if nothing intersects.
func cropToGeom(gc *GeoCoding, vars []domain.Variable, geom domain.ImageGeom) (*GeoCoding, []domain.Variable, Window, error) {
	w, ok := SpatialWindow(gc, geom.BBox())
	if !ok {
		return nil, nil, Window{}, nil
	}
	if w.covers(gc) {
		return gc, vars, w, nil
	}

	src := domain.NewDataset()
	src.SetCoord(gc.XName, gc.X)
	src.SetCoord(gc.YName, gc.Y)
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		src.Set(v.Name, v.Array)
		names = append(names, v.Name)
	}
	subset := cropWindow(src, w, gc)

	x, err := subset.Var(gc.XName)
	if err != nil {
		return nil, nil, Window{}, err
	}
	y, err := subset.Var(gc.YName)
	if err != nil {
		return nil, nil, Window{}, err
	}
	cropped := &GeoCoding{X: x, Y: y, XName: gc.XName, YName: gc.YName, IsLonNormalized: gc.IsLonNormalized}
	croppedVars, err := SelectVariables(subset, names, cropped)
	if err != nil {
		return nil, nil, Window{}, err
	}
	return cropped, croppedVars, w, nil
}

// Offset returns the column and row of the input grid at which the prepared
// source starts. It is non-zero when Prepare cropped the source.
func (p *Prepared) Offset() (col, row int) { return p.window.Col0, p.window.Row0 }

// Delta returns the point-in-triangle tolerance in effect.
func (p *Prepared) Delta() float64 { return p.delta }

// PixelMap computes the source-pixel map of the prepared grid.
func (p *Prepared) PixelMap(fractional bool) (*PixelMap, error) {
	return ComputeSourcePixels(p.GeoCoding.X, p.GeoCoding.Y, p.Geom, fractional, p.delta)
}

// Rectify writes every selected variable directly onto the destination grid.
func (p *Prepared) Rectify(ctx context.Context) (*domain.Dataset, error) {
	out := p.NewOutput()
	for _, v := range p.Vars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dst := p.newVar(v.Array)
		if err := ReprojectInto(v.Array, p.GeoCoding.X, p.GeoCoding.Y, dst,
			p.Geom.XMin, p.Geom.YMin, p.Geom.Res, p.delta); err != nil {
			return nil, fmt.Errorf("rectify %q: %w", v.Name, err)
		}
		out.Set(v.Name, dst)
	}
	return out, nil
}

// RectifyWith samples every selected variable through pm, which must have
// been computed for the prepared grid.
func (p *Prepared) RectifyWith(ctx context.Context, pm *PixelMap) (*domain.Dataset, error) {
	if err := p.checkPixelMap(pm); err != nil {
		return nil, err
	}
	out := p.NewOutput()
	for _, v := range p.Vars {
		dst, err := p.ExtractVar(ctx, pm, v)
		if err != nil {
			return nil, err
		}
		out.Set(v.Name, dst)
	}
	return out, nil
}

// ExtractVar samples one variable through pm onto a new destination array.
func (p *Prepared) ExtractVar(ctx context.Context, pm *PixelMap, v domain.Variable) (*domain.Array, error) {
	if err := p.checkPixelMap(pm); err != nil {
		return nil, err
	}
	dst := p.newVar(v.Array)
	if err := pm.ExtractParallel(ctx, v.Array, dst, p.fill, p.workers); err != nil {
		return nil, fmt.Errorf("extract %q: %w", v.Name, err)
	}
	return dst, nil
}

func (p *Prepared) checkPixelMap(pm *PixelMap) error {
	if pm.Width != p.Geom.Width || pm.Height != p.Geom.Height {
		return fmt.Errorf("%w: pixel map of %dx%d does not fit output grid of %dx%d",
			domain.ErrShape, pm.Width, pm.Height, p.Geom.Width, p.Geom.Height)
	}
	return nil
}

// NewOutput returns an empty result dataset holding the source attributes
// and the 1-D coordinates of the output grid.
func (p *Prepared) NewOutput() *domain.Dataset {
	out := domain.NewDataset()
	maps.Copy(out.Attrs, p.Attrs)

	xs := p.Geom.XCoords()
	if p.GeoCoding.IsLonNormalized {
		DenormalizeLon(xs)
	}
	x, _ := domain.NewArray([]string{p.GeoCoding.XName}, []int{len(xs)}, xs)
	x.Attrs = p.GeoCoding.X.Attrs
	ys := p.Geom.YCoords()
	y, _ := domain.NewArray([]string{p.GeoCoding.YName}, []int{len(ys)}, ys)
	y.Attrs = p.GeoCoding.Y.Attrs

	out.SetCoord(p.GeoCoding.XName, x)
	out.SetCoord(p.GeoCoding.YName, y)
	return out
}

// newVar allocates a NaN-filled destination for src on the output grid.
func (p *Prepared) newVar(src *domain.Array) *domain.Array {
	n := src.NDim()
	dims := append(append([]string(nil), src.Dims[:n-2]...), p.GeoCoding.YName, p.GeoCoding.XName)
	shape := append(append([]int(nil), src.Shape[:n-2]...), p.Geom.Height, p.Geom.Width)
	dst := domain.Full(dims, shape, math.NaN())
	dst.Attrs = src.Attrs
	return dst
}

// ReprojectDataset rectifies ds onto a regular grid. It returns nil and no
// error if ds does not intersect opts.OutputGeom.
func ReprojectDataset(ctx context.Context, ds *domain.Dataset, opts Options) (*domain.Dataset, error) {
	p, err := Prepare(ds, opts)
	if err != nil || p == nil {
		return nil, err
	}
	if !opts.UsePixelMap {
		return p.Rectify(ctx)
	}
	pm, err := p.PixelMap(false)
	if err != nil {
		return nil, err
	}
	return p.RectifyWith(ctx, pm)
}
