package domain

import (
	"fmt"
	"math"
)

// Array is an N-dimensional float64 array stored row-major in a flat buffer.
// The trailing two dimensions are the spatial (row, column) axes; leading
// dimensions such as time or band are carried along untouched.
// Missing values are NaN.
type Array struct {
	Dims  []string
	Shape []int
	Data  []float64
	Attrs map[string]any
}

// NewArray creates an array over data, checking that dims, shape and the
// buffer length agree.
func NewArray(dims []string, shape []int, data []float64) (*Array, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("%w: %d dimension names for %d-D shape", ErrShape, len(dims), len(shape))
	}
	size := 1
	for i, n := range shape {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative length %d for dimension %q", ErrShape, n, dims[i])
		}
		size *= n
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: buffer holds %d values, shape %v needs %d", ErrShape, len(data), shape, size)
	}
	return &Array{
		Dims:  append([]string(nil), dims...),
		Shape: append([]int(nil), shape...),
		Data:  data,
	}, nil
}

// Full creates an array of the given shape with every element set to value.
func Full(dims []string, shape []int, value float64) *Array {
	size := 1
	for _, n := range shape {
		size *= n
	}
	data := make([]float64, size)
	for i := range data {
		data[i] = value
	}
	return &Array{
		Dims:  append([]string(nil), dims...),
		Shape: append([]int(nil), shape...),
		Data:  data,
	}
}

// NDim returns the number of dimensions.
func (a *Array) NDim() int { return len(a.Shape) }

// Len returns the total number of elements.
func (a *Array) Len() int { return len(a.Data) }

// Height returns the length of the row axis (second to last dimension).
func (a *Array) Height() int {
	if len(a.Shape) < 2 {
		return 1
	}
	return a.Shape[len(a.Shape)-2]
}

// Width returns the length of the column axis (last dimension).
func (a *Array) Width() int {
	if len(a.Shape) == 0 {
		return 1
	}
	return a.Shape[len(a.Shape)-1]
}

// Layers returns the number of 2-D planes, i.e. the product of the leading dimensions.
func (a *Array) Layers() int {
	n := 1
	for i := 0; i < len(a.Shape)-2; i++ {
		n *= a.Shape[i]
	}
	return n
}

// SpatialDims returns the names of the row and column dimensions.
func (a *Array) SpatialDims() (string, string) {
	if len(a.Dims) < 2 {
		return "", ""
	}
	return a.Dims[len(a.Dims)-2], a.Dims[len(a.Dims)-1]
}

// At returns the element at row j, column i of the first plane.
func (a *Array) At(j, i int) float64 {
	return a.Data[j*a.Width()+i]
}

// MatchesGrid reports whether the trailing two dimensions of a have the
// same lengths and names as the 2-D array grid.
func (a *Array) MatchesGrid(grid *Array) bool {
	if a.NDim() < 2 || grid.NDim() != 2 {
		return false
	}
	dimY, dimX := a.SpatialDims()
	gridY, gridX := grid.SpatialDims()
	return a.Height() == grid.Height() && a.Width() == grid.Width() &&
		dimY == gridY && dimX == gridX
}

// Crop returns a copy restricted to rows [row0, row1) and columns [col0, col1)
// of every plane.
func (a *Array) Crop(row0, row1, col0, col1 int) *Array {
	w := a.Width()
	h := a.Height()
	cw := col1 - col0
	ch := row1 - row0
	layers := a.Layers()

	data := make([]float64, layers*ch*cw)
	for l := 0; l < layers; l++ {
		src := a.Data[l*h*w:]
		dst := data[l*ch*cw:]
		for j := 0; j < ch; j++ {
			copy(dst[j*cw:(j+1)*cw], src[(row0+j)*w+col0:(row0+j)*w+col1])
		}
	}

	shape := append([]int(nil), a.Shape...)
	shape[len(shape)-2] = ch
	shape[len(shape)-1] = cw
	return &Array{
		Dims:  append([]string(nil), a.Dims...),
		Shape: shape,
		Data:  data,
		Attrs: a.Attrs,
	}
}

// Clone returns a deep copy of the data buffer; attributes are shared.
func (a *Array) Clone() *Array {
	return &Array{
		Dims:  append([]string(nil), a.Dims...),
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]float64(nil), a.Data...),
		Attrs: a.Attrs,
	}
}

// MinMax returns the smallest and largest non-NaN values.
// ok is false if every element is NaN.
func (a *Array) MinMax() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range a.Data {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, lo <= hi
}
