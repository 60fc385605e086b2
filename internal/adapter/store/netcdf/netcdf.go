// Package netcdf reads and writes datasets as NetCDF files and serves a
// directory of them as a dataset store.
package netcdf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	nc "github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/rectify/internal/domain"
)

// Extension is the file extension of NetCDF datasets.
const Extension = ".nc"

// Text attributes carried between files and datasets.
var (
	varAttrNames    = []string{"units", "long_name", "standard_name"}
	globalAttrNames = []string{"title", "history", "source", "institution", "Conventions"}
)

var errUnsupportedType = errors.New("unsupported var type")

// ReadFile reads every numeric variable of a NetCDF file.
//
// Values are converted to float64. _FillValue and missing_value become NaN,
// then scale_factor and add_offset are applied. One-dimensional variables
// named after their dimension, and variables listed in a "coordinates"
// attribute, are marked as coordinates. Scalars and text variables are skipped.
//
//nolint:gocyclo // One pass over heterogeneous variables.
func ReadFile(path string) (*domain.Dataset, error) {
	f, err := nc.OpenFile(path, nc.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	n, err := f.NVars()
	if err != nil {
		return nil, fmt.Errorf("failed to count variables: %w", err)
	}

	ds := domain.NewDataset()
	coordNames := make(map[string]bool)
	for id := 0; id < n; id++ {
		v := f.VarN(id)
		name, err := v.Name()
		if err != nil {
			return nil, fmt.Errorf("failed to get variable name: %w", err)
		}

		dimNames, shape, err := varShape(v)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		if len(shape) == 0 {
			continue
		}
		total := 1
		for _, s := range shape {
			total *= s
		}

		data, err := readFloat64s(v, total)
		if errors.Is(err, errUnsupportedType) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		unpack(v, data)

		a, err := domain.NewArray(dimNames, shape, data)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		a.Attrs = readTextAttrs(v.Attr, varAttrNames)

		if coords, ok := readText(v.Attr("coordinates")); ok {
			for _, c := range strings.Fields(coords) {
				coordNames[c] = true
			}
		}
		if len(dimNames) == 1 && dimNames[0] == name {
			coordNames[name] = true
		}
		ds.Set(name, a)
	}

	for _, name := range ds.Names() {
		if coordNames[name] {
			a, _ := ds.Var(name)
			ds.SetCoord(name, a)
		}
	}
	for k, v := range readTextAttrs(f.Attr, globalAttrNames) {
		ds.Attrs[k] = v
	}
	return ds, nil
}

func varShape(v nc.Var) ([]string, []int, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	names := make([]string, len(dims))
	shape := make([]int, len(dims))
	for i, d := range dims {
		if names[i], err = d.Name(); err != nil {
			return nil, nil, fmt.Errorf("failed to get dimension name: %w", err)
		}
		n, err := d.Len()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get dimension length: %w", err)
		}
		shape[i] = int(n)
	}
	return names, shape, nil
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~float32
}

func widen[T number](src []T) []float64 {
	out := make([]float64, len(src))
	for i, val := range src {
		out[i] = float64(val)
	}
	return out
}

// readFloat64s reads the n values of a numeric variable as float64.
func readFloat64s(v nc.Var, n int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case nc.DOUBLE:
		data := make([]float64, n)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case nc.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case nc.INT64:
		tmp := make([]int64, n)
		if err := v.ReadInt64s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case nc.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case nc.UINT:
		tmp := make([]uint32, n)
		if err := v.ReadUint32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case nc.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case nc.USHORT:
		tmp := make([]uint16, n)
		if err := v.ReadUint16s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case nc.BYTE:
		tmp := make([]int8, n)
		if err := v.ReadInt8s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case nc.UBYTE:
		tmp := make([]uint8, n)
		if err := v.ReadUint8s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	default:
		return nil, fmt.Errorf("%w: %v", errUnsupportedType, t)
	}
}

// unpack masks fill values with NaN and applies CF packing attributes.
func unpack(v nc.Var, data []float64) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		fv, ok := readNumber(v.Attr(name))
		if !ok || math.IsNaN(fv) {
			continue
		}
		for i := range data {
			if data[i] == fv {
				data[i] = math.NaN()
			}
		}
	}

	scale, hasScale := readNumber(v.Attr("scale_factor"))
	offset, hasOffset := readNumber(v.Attr("add_offset"))
	if !hasScale && !hasOffset {
		return
	}
	if !hasScale {
		scale = 1
	}
	for i := range data {
		data[i] = data[i]*scale + offset
	}
}

// readNumber returns the first value of a numeric attribute.
func readNumber(a nc.Attr) (float64, bool) {
	if n, err := a.Len(); err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, 1)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, 1)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi := make([]int32, 1)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	bufs := make([]int16, 1)
	if err := a.ReadInt16s(bufs); err == nil {
		return float64(bufs[0]), true
	}
	return 0, false
}

func readText(a nc.Attr) (string, bool) {
	n, err := a.Len()
	if err != nil || n == 0 {
		return "", false
	}
	if t, err := a.Type(); err != nil || t != nc.CHAR {
		return "", false
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", false
	}
	return strings.TrimRight(string(buf), "\x00"), true
}

func readTextAttrs(attr func(string) nc.Attr, names []string) map[string]any {
	attrs := make(map[string]any)
	for _, name := range names {
		if s, ok := readText(attr(name)); ok {
			attrs[name] = s
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// WriteFile writes ds to path as a NETCDF4 file, replacing any existing file.
//
// All variables are stored as doubles. Data variables get a NaN _FillValue
// and list the dataset's multi-dimensional coordinates in "coordinates".
func WriteFile(path string, ds *domain.Dataset) (err error) {
	dimNames, lengths, err := ds.Dims()
	if err != nil {
		return err
	}

	f, err := nc.CreateFile(path, nc.CLOBBER|nc.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	// NETCDF4 data reaches disk on close.
	defer closeInto(f, &err)

	dims := make(map[string]nc.Dim, len(dimNames))
	for _, name := range dimNames {
		d, err := f.AddDim(name, uint64(lengths[name]))
		if err != nil {
			return fmt.Errorf("failed to add dimension %s: %w", name, err)
		}
		dims[name] = d
	}

	var auxCoords []string
	for _, name := range ds.Names() {
		a, _ := ds.Var(name)
		if ds.IsCoord(name) && !(a.NDim() == 1 && a.Dims[0] == name) {
			auxCoords = append(auxCoords, name)
		}
	}

	names := ds.Names()
	vars := make([]nc.Var, len(names))
	for i, name := range names {
		a, _ := ds.Var(name)
		varDims := make([]nc.Dim, len(a.Dims))
		for k, dn := range a.Dims {
			varDims[k] = dims[dn]
		}
		v, err := f.AddVar(name, nc.DOUBLE, varDims)
		if err != nil {
			return fmt.Errorf("failed to add variable %s: %w", name, err)
		}
		if !ds.IsCoord(name) {
			if err := v.Attr("_FillValue").WriteFloat64s([]float64{math.NaN()}); err != nil {
				return fmt.Errorf("failed to write _FillValue of %s: %w", name, err)
			}
			if coords := relatedCoords(a, auxCoords, ds); coords != "" {
				if err := v.Attr("coordinates").WriteBytes([]byte(coords)); err != nil {
					return fmt.Errorf("failed to write coordinates of %s: %w", name, err)
				}
			}
		}
		if err := writeTextAttrs(v.Attr, a.Attrs); err != nil {
			return fmt.Errorf("failed to write attributes of %s: %w", name, err)
		}
		vars[i] = v
	}
	if err := writeTextAttrs(f.Attr, ds.Attrs); err != nil {
		return fmt.Errorf("failed to write global attributes: %w", err)
	}

	if err := f.EndDef(); err != nil {
		return fmt.Errorf("failed to leave define mode: %w", err)
	}
	for i, name := range names {
		a, _ := ds.Var(name)
		if err := vars[i].WriteFloat64s(a.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// relatedCoords lists the auxiliary coordinates whose dimensions a also uses.
func relatedCoords(a *domain.Array, auxCoords []string, ds *domain.Dataset) string {
	var related []string
	for _, name := range auxCoords {
		c, _ := ds.Var(name)
		shared := true
		for _, d := range c.Dims {
			if !slices.Contains(a.Dims, d) {
				shared = false
				break
			}
		}
		if shared {
			related = append(related, name)
		}
	}
	return strings.Join(related, " ")
}

func writeTextAttrs(attr func(string) nc.Attr, attrs map[string]any) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		switch val := attrs[k].(type) {
		case string:
			if err := attr(k).WriteBytes([]byte(val)); err != nil {
				return err
			}
		case float64:
			if err := attr(k).WriteFloat64s([]float64{val}); err != nil {
				return err
			}
		}
	}
	return nil
}

// closeInto closes c and reports its error through errp unless an earlier
// error is already set.
func closeInto(c io.Closer, errp *error) {
	if cerr := c.Close(); cerr != nil && *errp == nil {
		*errp = fmt.Errorf("failed to close file: %w", cerr)
	}
}
