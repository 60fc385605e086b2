package rectify

import (
	"go.ngs.io/rectify/internal/domain"
)

// Window is a half-open index range [Row0, Row1) x [Col0, Col1) over a source grid.
type Window struct {
	Row0, Row1 int
	Col0, Col1 int
}

// Height returns the number of rows in the window.
func (w Window) Height() int { return w.Row1 - w.Row0 }

// Width returns the number of columns in the window.
func (w Window) Width() int { return w.Col1 - w.Col0 }

// SpatialWindow returns the smallest window enclosing every source sample
// inside bbox, grown by one sample on each side where the grid allows, so
// that cells only partly overlapping the box are kept.
// ok is false if no sample lies inside bbox.
func SpatialWindow(gc *GeoCoding, bbox domain.BBox) (w Window, ok bool) {
	xMin, yMin, xMax, yMax := bbox.XMin, bbox.YMin, bbox.XMax, bbox.YMax
	if bbox.CrossesAntimeridian() {
		xMax += 360.0
	}

	height, width := gc.Height(), gc.Width()
	iMin, jMin := width, height
	iMax, jMax := -1, -1
	xs, ys := gc.X.Data, gc.Y.Data
	for j := 0; j < height; j++ {
		for i := 0; i < width; i++ {
			k := j*width + i
			x, y := xs[k], ys[k]
			if x >= xMin && x <= xMax && y >= yMin && y <= yMax {
				iMin = min(iMin, i)
				iMax = max(iMax, i)
				jMin = min(jMin, j)
				jMax = max(jMax, j)
			}
		}
	}
	if iMax < 0 || jMax < 0 {
		return Window{}, false
	}

	w = Window{Row0: jMin, Row1: jMax + 1, Col0: iMin, Col1: iMax + 1}
	if w.Col0 > 0 {
		w.Col0--
	}
	if w.Col1 < width {
		w.Col1++
	}
	if w.Row0 > 0 {
		w.Row0--
	}
	if w.Row1 < height {
		w.Row1++
	}
	return w, true
}

// SelectSpatialSubset crops ds to the part of the source grid covering bbox.
//
// It returns nil if no sample lies inside bbox, and ds itself if the window
// spans the whole grid. Otherwise the result holds the cropped variables
// whose trailing two dimensions match the coordinate grid; other variables
// are dropped.
func SelectSpatialSubset(ds *domain.Dataset, bbox domain.BBox, gc *GeoCoding) *domain.Dataset {
	w, ok := SpatialWindow(gc, bbox)
	if !ok {
		return nil
	}
	return cropWindow(ds, w, gc)
}

func (w Window) covers(gc *GeoCoding) bool {
	return w.Row0 == 0 && w.Col0 == 0 && w.Row1 == gc.Height() && w.Col1 == gc.Width()
}

func cropWindow(ds *domain.Dataset, w Window, gc *GeoCoding) *domain.Dataset {
	if w.covers(gc) {
		return ds
	}

	subset := domain.NewDataset()
	for k, v := range ds.Attrs {
		subset.Attrs[k] = v
	}
	for _, name := range ds.Names() {
		a, _ := ds.Var(name)
		if !a.MatchesGrid(gc.X) {
			continue
		}
		cropped := a.Crop(w.Row0, w.Row1, w.Col0, w.Col1)
		if ds.IsCoord(name) {
			subset.SetCoord(name, cropped)
		} else {
			subset.Set(name, cropped)
		}
	}
	return subset
}
