// Package files reads and writes datasets as single files, choosing the
// format from the file extension.
package files

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.ngs.io/rectify/internal/adapter/store/csv"
	"go.ngs.io/rectify/internal/adapter/store/netcdf"
	"go.ngs.io/rectify/internal/domain"
)

// Format reads and writes one file type.
type Format struct {
	Name  string
	Read  func(path string) (*domain.Dataset, error)
	Write func(path string, ds *domain.Dataset) error
}

var formats = map[string]Format{
	netcdf.Extension: {Name: "netcdf", Read: netcdf.ReadFile, Write: netcdf.WriteFile},
	csv.Extension:    {Name: "csv", Read: csv.ReadFile, Write: csv.WriteFile},
}

// Extensions returns the supported file extensions in lexical order.
func Extensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// FormatOf returns the format of path, or domain.ErrUnsupported.
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := formats[ext]
	if !ok {
		return Format{}, fmt.Errorf("%w: file type %q of %s (supported: %v)", domain.ErrUnsupported, ext, path, Extensions())
	}
	return f, nil
}

// Read reads the dataset at path.
func Read(path string) (*domain.Dataset, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	return f.Read(path)
}

// Write writes ds to path, replacing any existing file.
func Write(path string, ds *domain.Dataset) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	return f.Write(path, ds)
}
