// Package cache provides the TTL key-value store backing the triage
// pipeline's two cache slots. The store is an injected dependency so tests
// can substitute the in-memory implementation for Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or its entry has expired.
// Callers treat any other error the same way (proceed as a miss) but should
// log it.
var ErrMiss = errors.New("cache miss")

// Store is a TTL key-value store. Values are opaque bytes; callers handle
// serialization. Writes always carry a TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
