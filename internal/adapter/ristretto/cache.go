// Package ristretto implements the cache port using dgraph-io/ristretto as an
// in-process memo cache.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache wraps a ristretto cache holding values of type V. Every entry costs 1,
// so maxEntries bounds the number of cached values.
type Cache[V any] struct {
	c *ristretto.Cache[string, V]
}

// New creates a ristretto-backed cache holding at most maxEntries values.
func New[V any](maxEntries int64) (*Cache[V], error) {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxEntries * 10, // ~10x expected items
		MaxCost:     maxEntries,
		BufferItems: 64,

		// Cost counts entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache[V]{c: c}, nil
}

// Get retrieves a value from the cache.
func (c *Cache[V]) Get(_ context.Context, key string) (value V, ok bool, err error) {
	value, ok = c.c.Get(key)
	return value, ok, nil
}

// Set stores a value with the given TTL (0 means no expiry). It blocks until
// the write is visible to Get. The admission policy may still drop the value
// when the cache is full.
func (c *Cache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, 1, ttl)
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *Cache[V]) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close shuts down the cache and releases resources.
func (c *Cache[V]) Close() {
	c.c.Close()
}
