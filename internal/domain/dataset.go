package domain

import (
	"fmt"
	"sort"
)

// Variable is a named array.
type Variable struct {
	Name  string
	Array *Array
}

// Dataset maps variable names to arrays. Variables keep their insertion order.
// Coordinate variables are flagged so that automatic selection can skip them.
type Dataset struct {
	Attrs map[string]any

	vars   map[string]*Array
	coords map[string]bool
	names  []string
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Attrs:  make(map[string]any),
		vars:   make(map[string]*Array),
		coords: make(map[string]bool),
	}
}

// Set adds or replaces a data variable.
func (d *Dataset) Set(name string, a *Array) {
	if _, ok := d.vars[name]; !ok {
		d.names = append(d.names, name)
	}
	d.vars[name] = a
	delete(d.coords, name)
}

// SetCoord adds or replaces a coordinate variable.
func (d *Dataset) SetCoord(name string, a *Array) {
	d.Set(name, a)
	d.coords[name] = true
}

// Var returns the variable called name.
func (d *Dataset) Var(name string) (*Array, error) {
	a, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: variable %q", ErrNotFound, name)
	}
	return a, nil
}

// Has reports whether the dataset holds a variable called name.
func (d *Dataset) Has(name string) bool {
	_, ok := d.vars[name]
	return ok
}

// IsCoord reports whether name is a coordinate variable.
func (d *Dataset) IsCoord(name string) bool {
	return d.coords[name]
}

// Names returns all variable names in insertion order.
func (d *Dataset) Names() []string {
	return append([]string(nil), d.names...)
}

// DataNames returns the names of the non-coordinate variables in insertion order.
func (d *Dataset) DataNames() []string {
	names := make([]string, 0, len(d.names))
	for _, name := range d.names {
		if !d.coords[name] {
			names = append(names, name)
		}
	}
	return names
}

// Len returns the number of variables.
func (d *Dataset) Len() int { return len(d.names) }

// Dims returns the length of every dimension used by the dataset's variables,
// sorted by name. Conflicting lengths for the same name are reported as ErrShape.
func (d *Dataset) Dims() ([]string, map[string]int, error) {
	lengths := make(map[string]int)
	for _, name := range d.names {
		a := d.vars[name]
		for i, dim := range a.Dims {
			if n, ok := lengths[dim]; ok && n != a.Shape[i] {
				return nil, nil, fmt.Errorf("%w: dimension %q has length %d in %q but %d elsewhere",
					ErrShape, dim, a.Shape[i], name, n)
			}
			lengths[dim] = a.Shape[i]
		}
	}
	dims := make([]string, 0, len(lengths))
	for dim := range lengths {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	return dims, lengths, nil
}
