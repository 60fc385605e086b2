// Package sqlite provides a file-backed pixel map cache.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"go.ngs.io/rectify/internal/adapter/store"
	"go.ngs.io/rectify/internal/rectify"
)

const initSQL = `
CREATE TABLE IF NOT EXISTS pixel_maps (
	key TEXT NOT NULL,
	data BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS pixel_maps_key ON pixel_maps (key);
`

// Cache stores encoded pixel maps in a SQLite database.
type Cache struct {
	pool *sqlitex.Pool
}

// New opens or creates the cache database at path with a pool of poolSize
// connections.
func New(path string, poolSize int) (*Cache, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := sqlitex.Open(path, sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_READWRITE|sqlite.SQLITE_OPEN_NOMUTEX|sqlite.SQLITE_OPEN_WAL, poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open pixel map cache: %w", err)
	}
	c := &Cache{pool: pool}

	con, err := c.conn(context.Background())
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	err = sqlitex.ExecScript(con, initSQL)
	c.pool.Put(con)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("could not initialize database: %w", err)
	}
	return c, nil
}

// conn gets a connection from the pool; it must be returned with pool.Put.
func (c *Cache) conn(ctx context.Context) (*sqlite.Conn, error) {
	con := c.pool.Get(ctx)
	if con == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("connection could not be opened")
	}
	return con, nil
}

// Get returns the pixel map stored under key.
func (c *Cache) Get(ctx context.Context, key string) (*rectify.PixelMap, bool, error) {
	con, err := c.conn(ctx)
	if err != nil {
		return nil, false, err
	}
	defer c.pool.Put(con)

	var data []byte
	err = sqlitex.Exec(con, "SELECT data FROM pixel_maps WHERE key = ?", func(stmt *sqlite.Stmt) error {
		data = make([]byte, stmt.ColumnLen(0))
		stmt.ColumnBytes(0, data)
		return nil
	}, key)
	if err != nil {
		return nil, false, fmt.Errorf("could not read pixel map %s: %w", key, err)
	}
	if data == nil {
		return nil, false, nil
	}

	pm, err := store.DecodePixelMap(data)
	if err != nil {
		return nil, false, err
	}
	return pm, true, nil
}

// Put stores pm under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, pm *rectify.PixelMap) (err error) {
	data, err := store.EncodePixelMap(pm)
	if err != nil {
		return err
	}

	con, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Put(con)

	defer sqlitex.Save(con)(&err)

	err = sqlitex.Exec(con, "INSERT OR REPLACE INTO pixel_maps (key, data, created_at) VALUES (?, ?, ?)",
		nil, key, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("could not write pixel map %s: %w", key, err)
	}
	return nil
}

// Close flushes the WAL and closes all connections.
func (c *Cache) Close() error {
	if c.pool == nil {
		return nil
	}
	if con := c.pool.Get(context.Background()); con != nil {
		err := sqlitex.Exec(con, "PRAGMA wal_checkpoint;", nil)
		c.pool.Put(con)
		if err != nil {
			_ = c.pool.Close()
			return fmt.Errorf("could not flush WAL: %w", err)
		}
	}
	return c.pool.Close()
}
