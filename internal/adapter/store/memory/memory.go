// Package memory provides an in-process dataset store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.ngs.io/rectify/internal/adapter/store"
	"go.ngs.io/rectify/internal/domain"
)

// Store keeps datasets in a map. The zero value is not usable; use NewStore.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*domain.Dataset
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{datasets: make(map[string]*domain.Dataset)}
}

// List returns the stored ids in lexical order.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.datasets))
	for id := range s.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Open returns the dataset stored under id. The dataset is shared, not copied.
func (s *Store) Open(_ context.Context, id string) (*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[id]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q", domain.ErrNotFound, id)
	}
	return ds, nil
}

// Write stores ds under id.
func (s *Store) Write(_ context.Context, id string, ds *domain.Dataset, replace bool) (string, error) {
	id, err := store.ResolveID(id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasets[id]; ok && !replace {
		return "", fmt.Errorf("dataset %q: %w", id, store.ErrExists)
	}
	s.datasets[id] = ds
	return id, nil
}

// Delete removes the dataset stored under id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasets[id]; !ok {
		return fmt.Errorf("%w: dataset %q", domain.ErrNotFound, id)
	}
	delete(s.datasets, id)
	return nil
}

// Load copies every dataset of src into the store, replacing entries with
// the same id, and returns the number copied.
func (s *Store) Load(ctx context.Context, src store.DataStore) (int, error) {
	ids, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	for n, id := range ids {
		ds, err := src.Open(ctx, id)
		if err != nil {
			return n, fmt.Errorf("load %q: %w", id, err)
		}
		if _, err := s.Write(ctx, id, ds, true); err != nil {
			return n, err
		}
	}
	return len(ids), nil
}
