package lru

import (
	"context"
	"testing"
	"time"

	"go.ngs.io/rectify/internal/adapter/store"
	"go.ngs.io/rectify/internal/rectify"
)

var _ store.PixelMapCache = (*Cache)(nil)

func TestCache(t *testing.T) {
	ctx := context.Background()
	c := New(8, time.Minute)
	defer c.Close()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("expected a miss, got ok=%v err=%v", ok, err)
	}

	pm := rectify.NewPixelMap(2, 2)
	pm.SrcI[3], pm.SrcJ[3] = 1, 1
	if err := c.Put(ctx, "k", pm); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got != pm {
		t.Error("expected the stored map")
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := New(8, time.Millisecond)
	defer c.Close()

	if err := c.Put(ctx, "k", rectify.NewPixelMap(1, 1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected the entry to expire")
	}
}
