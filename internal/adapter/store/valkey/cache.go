package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"go.ngs.io/rectify/internal/adapter/store"
	"go.ngs.io/rectify/internal/rectify"
)

// Cache implements store.PixelMapCache using Valkey (Redis-compatible).
type Cache struct {
	client valkey.Client
	ttl    time.Duration
}

// New creates a new Valkey cache client. Entries expire after ttl; zero keeps
// them until evicted.
func New(addr string, ttl time.Duration) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// Get retrieves a pixel map by key.
func (c *Cache) Get(ctx context.Context, key string) (*rectify.PixelMap, bool, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("valkey get %s: %w", key, err)
	}
	pm, err := store.DecodePixelMap(b)
	if err != nil {
		return nil, false, err
	}
	return pm, true, nil
}

// Put stores a pixel map under key.
func (c *Cache) Put(ctx context.Context, key string, pm *rectify.PixelMap) error {
	b, err := store.EncodePixelMap(pm)
	if err != nil {
		return err
	}
	set := c.client.B().Set().Key(key).Value(valkey.BinaryString(b))
	var cmd valkey.Completed
	if c.ttl > 0 {
		cmd = set.Ex(c.ttl).Build()
	} else {
		cmd = set.Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	return nil
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
