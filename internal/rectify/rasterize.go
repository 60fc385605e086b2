package rectify

import (
	"fmt"
	"math"

	"go.ngs.io/rectify/internal/domain"
)

// DefaultDelta is the default tolerance of the point-in-triangle test.
const DefaultDelta = 1e-3

// quadKernel walks the source cells of a curvilinear grid and locates the
// destination pixels each cell covers.
//
// Cell (i0, j0) has corners p0=(i0,j0), p1=(i0+1,j0), p2=(i0,j0+1) and
// p3=(i0+1,j0+1) and is split into triangles A=(p0,p1,p2) and B=(p3,p2,p1).
// Destination pixel (di, dj) is sampled at (x0 + di*res, y0 + dj*res).
// A pixel keeps the first source sample assigned to it.
type quadKernel struct {
	srcX, srcY []float64
	srcW, srcH int

	dstW, dstH int
	x0, y0     float64
	res        float64

	uMin, uvMax float64
	fractional  bool

	assigned []bool
}

func newQuadKernel(srcX, srcY *domain.Array, dstW, dstH int, x0, y0, res, delta float64, fractional bool) *quadKernel {
	return &quadKernel{
		srcX:       srcX.Data,
		srcY:       srcY.Data,
		srcW:       srcX.Width(),
		srcH:       srcX.Height(),
		dstW:       dstW,
		dstH:       dstH,
		x0:         x0,
		y0:         y0,
		res:        res,
		uMin:       -delta,
		uvMax:      1.0 + 2.0*delta,
		fractional: fractional,
		assigned:   make([]bool, dstW*dstH),
	}
}

func fdet(px0, py0, px1, py1, px2, py2 float64) float64 {
	return (px0-px1)*(py0-py2) - (px0-px2)*(py0-py1)
}

func fu(px, py, px0, py0, px2, py2 float64) float64 {
	return (px0-px)*(py0-py2) - (py0-py)*(px0-px2)
}

func fv(px, py, px0, py0, px1, py1 float64) float64 {
	return (py0-py)*(px0-px1) - (px0-px)*(py0-py1)
}

// run calls visit once for every destination pixel covered by a source cell,
// with the pixel's flat index and the resolved source column and row.
func (k *quadKernel) run(visit func(dst int, srcI, srcJ float64)) {
	var px, py [4]float64

	for j0 := 0; j0 < k.srcH-1; j0++ {
		j1 := j0 + 1
		for i0 := 0; i0 < k.srcW-1; i0++ {
			i1 := i0 + 1

			px[0], py[0] = k.srcX[j0*k.srcW+i0], k.srcY[j0*k.srcW+i0]
			px[1], py[1] = k.srcX[j0*k.srcW+i1], k.srcY[j0*k.srcW+i1]
			px[2], py[2] = k.srcX[j1*k.srcW+i0], k.srcY[j1*k.srcW+i0]
			px[3], py[3] = k.srcX[j1*k.srcW+i1], k.srcY[j1*k.srcW+i1]

			di0, di1, dj0, dj1, ok := k.cellBounds(&px, &py)
			if !ok {
				continue
			}

			// u from p0 right to p1, v from p0 down to p2.
			detA := fdet(px[0], py[0], px[1], py[1], px[2], py[2])
			// u from p3 left to p2, v from p3 up to p1.
			detB := fdet(px[3], py[3], px[2], py[2], px[1], py[1])
			if math.IsNaN(detA) && math.IsNaN(detB) {
				continue
			}

			for dj := dj0; dj <= dj1; dj++ {
				y := k.y0 + float64(dj)*k.res
				row := dj * k.dstW
				for di := di0; di <= di1; di++ {
					if k.assigned[row+di] {
						continue
					}
					x := k.x0 + float64(di)*k.res

					var srcI, srcJ float64
					found := false
					if detA != 0.0 {
						u := fu(x, y, px[0], py[0], px[2], py[2]) / detA
						v := fv(x, y, px[0], py[0], px[1], py[1]) / detA
						if u >= k.uMin && v >= k.uMin && u+v <= k.uvMax {
							found = true
							switch {
							case k.fractional:
								srcI, srcJ = float64(i0)+u, float64(j0)+v
							default:
								srcI, srcJ = nearest(u, i0, i1), nearest(v, j0, j1)
							}
						}
					}
					if !found && detB != 0.0 {
						u := fu(x, y, px[3], py[3], px[1], py[1]) / detB
						v := fv(x, y, px[3], py[3], px[2], py[2]) / detB
						if u >= k.uMin && v >= k.uMin && u+v <= k.uvMax {
							found = true
							switch {
							case k.fractional:
								srcI, srcJ = float64(i1)-u, float64(j1)-v
							default:
								srcI, srcJ = nearest(u, i1, i0), nearest(v, j1, j0)
							}
						}
					}
					if found {
						k.assigned[row+di] = true
						visit(row+di, srcI, srcJ)
					}
				}
			}
		}
	}
}

// nearest picks the corner a parameter t in [0, 1] runs from or towards.
func nearest(t float64, from, to int) float64 {
	if t < 0.5 {
		return float64(from)
	}
	return float64(to)
}

// cellBounds returns the clamped destination index range covered by the
// cell's finite corners. ok is false if the cell has no finite corner or
// lies entirely outside the destination grid.
func (k *quadKernel) cellBounds(px, py *[4]float64) (i0, i1, j0, j1 int, ok bool) {
	xMin, yMin := math.Inf(1), math.Inf(1)
	xMax, yMax := math.Inf(-1), math.Inf(-1)
	for n := 0; n < 4; n++ {
		if !math.IsNaN(px[n]) {
			xMin = math.Min(xMin, px[n])
			xMax = math.Max(xMax, px[n])
		}
		if !math.IsNaN(py[n]) {
			yMin = math.Min(yMin, py[n])
			yMax = math.Max(yMax, py[n])
		}
	}
	if xMin > xMax || yMin > yMax {
		return 0, 0, 0, 0, false
	}

	fi0 := math.Floor((xMin - k.x0) / k.res)
	fi1 := math.Floor((xMax - k.x0) / k.res)
	fj0 := math.Floor((yMin - k.y0) / k.res)
	fj1 := math.Floor((yMax - k.y0) / k.res)
	if fi1 < 0 || fj1 < 0 || fi0 >= float64(k.dstW) || fj0 >= float64(k.dstH) {
		return 0, 0, 0, 0, false
	}

	i0 = int(math.Max(fi0, 0))
	i1 = int(math.Min(fi1, float64(k.dstW-1)))
	j0 = int(math.Max(fj0, 0))
	j1 = int(math.Min(fj1, float64(k.dstH-1)))
	return i0, i1, j0, j1, true
}

// checkKernelArgs front-loads the validation of rasterizer inputs.
func checkKernelArgs(srcX, srcY *domain.Array, res, delta float64) error {
	if srcX.NDim() != 2 || srcY.NDim() != 2 || srcX.Height() != srcY.Height() || srcX.Width() != srcY.Width() {
		return fmt.Errorf("%w: source coordinates must be 2-D arrays of equal shape, got %v and %v",
			domain.ErrShape, srcX.Shape, srcY.Shape)
	}
	if srcX.Height() < 2 || srcX.Width() < 2 {
		return fmt.Errorf("%w: source grid must be at least 2x2, got %v", domain.ErrShape, srcX.Shape)
	}
	if !(res > 0) || math.IsInf(res, 0) {
		return fmt.Errorf("%w: resolution must be positive, got %g", domain.ErrValidation, res)
	}
	if !(delta > 0) || math.IsInf(delta, 0) {
		return fmt.Errorf("%w: delta must be positive, got %g", domain.ErrValidation, delta)
	}
	return nil
}

// ReprojectInto rectifies src onto dst in a single pass.
//
// srcX and srcY give the 2-D coordinates of src's trailing two dimensions;
// dst must have src's leading dimensions. Pixel (0,0) of dst sits at
// (x0, y0) and pixels are res apart. Every dst element is first set to NaN,
// so pixels outside the source footprint stay NaN. delta must be positive;
// callers wanting the usual tolerance pass DefaultDelta.
func ReprojectInto(src, srcX, srcY, dst *domain.Array, x0, y0, res, delta float64) error {
	if err := checkKernelArgs(srcX, srcY, res, delta); err != nil {
		return err
	}
	if src.NDim() < 2 || src.Height() != srcX.Height() || src.Width() != srcX.Width() {
		return fmt.Errorf("%w: source shape %v does not match coordinate shape %v", domain.ErrShape, src.Shape, srcX.Shape)
	}
	if dst.NDim() != src.NDim() || dst.Layers() != src.Layers() {
		return fmt.Errorf("%w: destination shape %v does not carry the leading dimensions of %v", domain.ErrShape, dst.Shape, src.Shape)
	}

	for i := range dst.Data {
		dst.Data[i] = math.NaN()
	}

	layers := src.Layers()
	srcW, srcPlane := src.Width(), src.Width()*src.Height()
	dstPlane := dst.Width() * dst.Height()
	k := newQuadKernel(srcX, srcY, dst.Width(), dst.Height(), x0, y0, res, delta, false)
	k.run(func(d int, srcI, srcJ float64) {
		s := int(srcJ)*srcW + int(srcI)
		for l := 0; l < layers; l++ {
			dst.Data[l*dstPlane+d] = src.Data[l*srcPlane+s]
		}
	})
	return nil
}

// ComputeSourcePixels maps every pixel of geom to a source column and row.
//
// Indices are the nearest cell corners, or the exact fractional position
// within the cell if fractional is set. Unmapped pixels hold NaN. delta
// must be positive.
func ComputeSourcePixels(srcX, srcY *domain.Array, geom domain.ImageGeom, fractional bool, delta float64) (*PixelMap, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if err := checkKernelArgs(srcX, srcY, geom.Res, delta); err != nil {
		return nil, err
	}

	pm := NewPixelMap(geom.Width, geom.Height)
	pm.Fractional = fractional
	k := newQuadKernel(srcX, srcY, geom.Width, geom.Height, geom.XMin, geom.YMin, geom.Res, delta, fractional)
	k.run(func(d int, srcI, srcJ float64) {
		pm.SrcI[d] = srcI
		pm.SrcJ[d] = srcJ
	})
	return pm, nil
}
