// Package cache defines the port interface for in-process memo caches.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching of typed values.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
