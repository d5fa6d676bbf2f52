// Package tiered layers an in-process cache over a remote one.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/lspkit/internal/port/cache"
)

// Cache reads L1 then L2, backfilling L1 on an L2 hit. The remote level is
// optional for correctness: its read errors degrade to a miss and its write
// errors are returned only after L1 has been updated.
type Cache[V any] struct {
	l1       cache.Cache[V]
	l2       cache.Cache[V]
	l1Expire time.Duration
}

// New creates a tiered cache. l1Expire bounds how long backfilled entries
// live in L1.
func New[V any](l1, l2 cache.Cache[V], l1Expire time.Duration) *Cache[V] {
	return &Cache[V]{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get implements cache.Cache.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		slog.DebugContext(ctx, "remote cache get failed", "key", key, "error", err)
		return zero, false, nil
	}
	if !found {
		return zero, false, nil
	}
	if err := c.l1.Set(ctx, key, val, c.l1Expire); err != nil {
		slog.DebugContext(ctx, "cache backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

// Set implements cache.Cache.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.l2.Set(ctx, key, value, ttl)
}

// Delete implements cache.Cache.
func (c *Cache[V]) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, key)
}
