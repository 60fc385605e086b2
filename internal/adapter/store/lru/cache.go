// Package lru provides an in-process pixel map cache bounded by entry count.
package lru

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"

	"go.ngs.io/rectify/internal/rectify"
)

// Cache keeps the most recently used pixel maps in memory.
type Cache struct {
	items *ccache.Cache[*rectify.PixelMap]
	ttl   time.Duration
}

// New creates a cache holding at most maxEntries maps, each for at most ttl.
// A non-positive ttl keeps entries until they are evicted.
func New(maxEntries int64, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 100 * 365 * 24 * time.Hour
	}
	prune := max(maxEntries/10, 1)
	return &Cache{
		items: ccache.New(ccache.Configure[*rectify.PixelMap]().MaxSize(maxEntries).ItemsToPrune(uint32(prune))),
		ttl:   ttl,
	}
}

// Get returns the map stored under key. Expired entries are misses.
func (c *Cache) Get(_ context.Context, key string) (*rectify.PixelMap, bool, error) {
	item := c.items.Get(key)
	if item == nil || item.Expired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

// Put stores pm under key. The map is shared with later readers and must
// not be modified.
func (c *Cache) Put(_ context.Context, key string, pm *rectify.PixelMap) error {
	c.items.Set(key, pm, c.ttl)
	return nil
}

// Close stops the cache's background worker.
func (c *Cache) Close() {
	c.items.Stop()
}
