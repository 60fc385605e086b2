package netcdf

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.ngs.io/rectify/internal/adapter/store"
	"go.ngs.io/rectify/internal/domain"
)

// Store serves the NetCDF files below a directory. A dataset's id is its
// slash-separated path relative to the directory, without extension.
type Store struct {
	dataDir string
	cache   map[string]*domain.Dataset // Cache opened datasets.
	mu      sync.RWMutex               // Protect cache.
}

// NewStore creates a store over dataDir.
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		cache:   make(map[string]*domain.Dataset),
	}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dataDir, filepath.FromSlash(id)+Extension)
}

// List returns the ids of all NetCDF files below the data directory.
func (s *Store) List(_ context.Context) ([]string, error) {
	if _, err := os.Stat(s.dataDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: data directory %s", domain.ErrNotFound, s.dataDir)
	}

	var ids []string
	err := filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), Extension) {
			return nil
		}
		rel, err := filepath.Rel(s.dataDir, path)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.ToSlash(strings.TrimSuffix(rel, Extension)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk data directory: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Open reads the dataset stored under id. Datasets are cached after the
// first read; callers must not modify them.
func (s *Store) Open(_ context.Context, id string) (*domain.Dataset, error) {
	s.mu.RLock()
	if ds, ok := s.cache[id]; ok {
		s.mu.RUnlock()
		return ds, nil
	}
	s.mu.RUnlock()

	if !filepath.IsLocal(id) {
		return nil, fmt.Errorf("%w: invalid dataset id %q", domain.ErrValidation, id)
	}
	path := s.path(id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: dataset %q", domain.ErrNotFound, id)
	}
	ds, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", id, err)
	}

	s.mu.Lock()
	s.cache[id] = ds
	s.mu.Unlock()

	return ds, nil
}

// Write stores ds as a NetCDF file.
func (s *Store) Write(_ context.Context, id string, ds *domain.Dataset, replace bool) (string, error) {
	id, err := store.ResolveID(id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(id)
	if _, err := os.Stat(path); err == nil && !replace {
		return "", fmt.Errorf("dataset %q: %w", id, store.ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := WriteFile(path, ds); err != nil {
		return "", fmt.Errorf("failed to write dataset %s: %w", id, err)
	}
	s.cache[id] = ds
	return id, nil
}

// Delete removes the file of dataset id.
func (s *Store) Delete(_ context.Context, id string) error {
	if !filepath.IsLocal(id) {
		return fmt.Errorf("%w: invalid dataset id %q", domain.ErrValidation, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: dataset %q", domain.ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete dataset %s: %w", id, err)
	}
	delete(s.cache, id)
	return nil
}
