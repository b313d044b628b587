package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value store with per-key expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key.
	// Returns nil, nil on cache miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetNX stores value under key only if the key is absent.
	// It reports whether the value was written.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Type names the backend for metrics.
	Type() string
}
