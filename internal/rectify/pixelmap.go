package rectify

import (
	"context"
	"fmt"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"go.ngs.io/rectify/internal/domain"
)

// roundBias is added before truncation when turning source indices into
// array offsets. It rounds to nearest but keeps exact halves on the lower side.
const roundBias = 0.49999

// PixelMap records, for every destination pixel, the source column (SrcI) and
// row (SrcJ) it samples from. Unmapped pixels hold NaN in both.
type PixelMap struct {
	Width      int       `msgpack:"w" json:"width"`
	Height     int       `msgpack:"h" json:"height"`
	SrcI       []float64 `msgpack:"i" json:"-"`
	SrcJ       []float64 `msgpack:"j" json:"-"`
	Fractional bool      `msgpack:"f" json:"fractional"`
}

// NewPixelMap creates a width x height map with every pixel unmapped.
func NewPixelMap(width, height int) *PixelMap {
	pm := &PixelMap{
		Width:  width,
		Height: height,
		SrcI:   make([]float64, width*height),
		SrcJ:   make([]float64, width*height),
	}
	for k := range pm.SrcI {
		pm.SrcI[k] = math.NaN()
		pm.SrcJ[k] = math.NaN()
	}
	return pm
}

// Coverage returns the number of mapped pixels.
func (pm *PixelMap) Coverage() int {
	n := 0
	for k := range pm.SrcI {
		if !math.IsNaN(pm.SrcI[k]) && !math.IsNaN(pm.SrcJ[k]) {
			n++
		}
	}
	return n
}

// Translate returns a copy of pm with col added to every mapped column index
// and row to every mapped row index.
func (pm *PixelMap) Translate(col, row int) *PixelMap {
	out := &PixelMap{
		Width:      pm.Width,
		Height:     pm.Height,
		SrcI:       slices.Clone(pm.SrcI),
		SrcJ:       slices.Clone(pm.SrcJ),
		Fractional: pm.Fractional,
	}
	for k := range out.SrcI {
		if math.IsNaN(out.SrcI[k]) || math.IsNaN(out.SrcJ[k]) {
			continue
		}
		out.SrcI[k] += float64(col)
		out.SrcJ[k] += float64(row)
	}
	return out
}

func (pm *PixelMap) check(src, dst *domain.Array) error {
	if len(pm.SrcI) != pm.Width*pm.Height || len(pm.SrcJ) != pm.Width*pm.Height {
		return fmt.Errorf("%w: pixel map of %dx%d holds %d/%d indices",
			domain.ErrShape, pm.Width, pm.Height, len(pm.SrcI), len(pm.SrcJ))
	}
	if src.NDim() < 2 {
		return fmt.Errorf("%w: source must have at least two dimensions, got %v", domain.ErrShape, src.Shape)
	}
	if dst.NDim() != src.NDim() || dst.Layers() != src.Layers() ||
		dst.Width() != pm.Width || dst.Height() != pm.Height {
		return fmt.Errorf("%w: destination shape %v does not fit source %v and pixel map %dx%d",
			domain.ErrShape, dst.Shape, src.Shape, pm.Width, pm.Height)
	}
	return nil
}

// ExtractSourcePixelsInto samples src into dst through pm.
// Pixels without a mapping receive fill in every layer.
func ExtractSourcePixelsInto(src *domain.Array, pm *PixelMap, dst *domain.Array, fill float64) error {
	if err := pm.check(src, dst); err != nil {
		return err
	}
	pm.extractRows(src, dst, fill, 0, pm.Height)
	return nil
}

// extractRows fills destination rows [row0, row1).
func (pm *PixelMap) extractRows(src, dst *domain.Array, fill float64, row0, row1 int) {
	srcW, srcH := src.Width(), src.Height()
	srcPlane := srcW * srcH
	dstPlane := pm.Width * pm.Height
	layers := src.Layers()
	maxI, maxJ := float64(srcW-1), float64(srcH-1)

	for dj := row0; dj < row1; dj++ {
		for di := 0; di < pm.Width; di++ {
			d := dj*pm.Width + di
			fi, fj := pm.SrcI[d], pm.SrcJ[d]
			if math.IsNaN(fi) || math.IsNaN(fj) {
				for l := 0; l < layers; l++ {
					dst.Data[l*dstPlane+d] = fill
				}
				continue
			}
			si := clampIndex(fi+roundBias, maxI)
			sj := clampIndex(fj+roundBias, maxJ)
			s := sj*srcW + si
			for l := 0; l < layers; l++ {
				dst.Data[l*dstPlane+d] = src.Data[l*srcPlane+s]
			}
		}
	}
}

// clampIndex truncates f towards zero and clamps it into [0, hi].
func clampIndex(f, hi float64) int {
	f = math.Trunc(f)
	if f < 0 {
		return 0
	}
	if f > hi {
		return int(hi)
	}
	return int(f)
}

// Extract samples src through pm into a newly allocated array with src's
// leading dimensions and the map's height and width.
func (pm *PixelMap) Extract(src *domain.Array, fill float64) (*domain.Array, error) {
	dst := pm.newDestination(src)
	if err := ExtractSourcePixelsInto(src, pm, dst, fill); err != nil {
		return nil, err
	}
	return dst, nil
}

func (pm *PixelMap) newDestination(src *domain.Array) *domain.Array {
	shape := append([]int(nil), src.Shape...)
	if len(shape) >= 2 {
		shape[len(shape)-2] = pm.Height
		shape[len(shape)-1] = pm.Width
	}
	return &domain.Array{
		Dims:  append([]string(nil), src.Dims...),
		Shape: shape,
		Data:  make([]float64, src.Layers()*pm.Width*pm.Height),
		Attrs: src.Attrs,
	}
}

// ExtractParallel behaves like ExtractSourcePixelsInto but splits the
// destination into row bands processed by up to workers goroutines.
// It stops early when ctx is cancelled.
func (pm *PixelMap) ExtractParallel(ctx context.Context, src, dst *domain.Array, fill float64, workers int) error {
	if err := pm.check(src, dst); err != nil {
		return err
	}
	if workers < 1 {
		workers = 1
	}
	band := (pm.Height + workers - 1) / workers
	if band < 1 {
		band = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for row0 := 0; row0 < pm.Height; row0 += band {
		row1 := min(row0+band, pm.Height)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pm.extractRows(src, dst, fill, row0, row1)
			return nil
		})
	}
	return g.Wait()
}
