// Package store defines the persistence ports of the rectifier: dataset
// stores that source and receive rasters, and caches for pixel maps.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"go.ngs.io/rectify/internal/domain"
	"go.ngs.io/rectify/internal/rectify"
)

// ErrExists is returned when writing to an id that is taken and replace is false.
var ErrExists = errors.New("already exists")

// DataStore is the interface for reading and writing datasets by id.
type DataStore interface {
	// List returns the ids of all stored datasets in lexical order.
	List(ctx context.Context) ([]string, error)

	// Open returns the dataset stored under id, or domain.ErrNotFound.
	Open(ctx context.Context, id string) (*domain.Dataset, error)

	// Write stores ds under id and returns the id used. An empty id is
	// replaced by a generated one.
	Write(ctx context.Context, id string, ds *domain.Dataset, replace bool) (string, error)

	// Delete removes the dataset stored under id, or returns domain.ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// PixelMapCache is the interface for sharing pixel maps between rectifications
// of sources with identical coordinates.
type PixelMapCache interface {
	// Get returns the map stored under key. ok is false on a miss.
	Get(ctx context.Context, key string) (pm *rectify.PixelMap, ok bool, err error)

	// Put stores pm under key.
	Put(ctx context.Context, key string, pm *rectify.PixelMap) error
}

// ResolveID returns id, or a new random id if id is empty. Ids must be local
// slash-separated paths so that file-backed stores can use them directly.
func ResolveID(id string) (string, error) {
	if id == "" {
		return uuid.NewString(), nil
	}
	if !filepath.IsLocal(id) {
		return "", fmt.Errorf("%w: invalid dataset id %q", domain.ErrValidation, id)
	}
	return id, nil
}
