package memory

import (
	"context"
	"errors"
	"testing"

	"go.ngs.io/rectify/internal/adapter/store"
	"go.ngs.io/rectify/internal/domain"
)

var _ store.DataStore = (*Store)(nil)

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ds := domain.NewDataset()

	id, err := s.Write(ctx, "b", ds, false)
	if err != nil || id != "b" {
		t.Fatalf("Write: %q, %v", id, err)
	}
	generated, err := s.Write(ctx, "", ds, false)
	if err != nil || generated == "" {
		t.Fatalf("Write with empty id: %q, %v", generated, err)
	}
	if _, err := s.Write(ctx, "b", ds, false); !errors.Is(err, store.ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
	if _, err := s.Write(ctx, "b", domain.NewDataset(), true); err != nil {
		t.Errorf("replace: %v", err)
	}

	ids, err := s.List(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("List: %v, %v", ids, err)
	}

	if got, err := s.Open(ctx, "b"); err != nil || got == ds {
		t.Errorf("expected replaced dataset, got %p, %v", got, err)
	}
	if _, err := s.Open(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.Delete(ctx, "b"); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Load(t *testing.T) {
	ctx := context.Background()
	src := NewStore()
	for _, id := range []string{"a", "scenes/b"} {
		if _, err := src.Write(ctx, id, domain.NewDataset(), false); err != nil {
			t.Fatalf("Write %s: %v", id, err)
		}
	}

	s := NewStore()
	if _, err := s.Write(ctx, "a", domain.NewDataset(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, err := s.Load(ctx, src)
	if err != nil || n != 2 {
		t.Fatalf("Load: %d, %v", n, err)
	}
	ids, _ := s.List(ctx)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "scenes/b" {
		t.Errorf("unexpected ids %v", ids)
	}

	if _, err := s.Load(ctx, failingStore{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected the source error, got %v", err)
	}
}

type failingStore struct{ store.DataStore }

func (failingStore) List(context.Context) ([]string, error) {
	return nil, domain.ErrNotFound
}
