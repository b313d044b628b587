// Package cache memoizes expensive per-resource work in fixed time buckets.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/infrastructure/metrics"
)

const keyPrefix = "session"

// DefaultComputeTimeout bounds a shared compute once its first caller is gone.
const DefaultComputeTimeout = 30 * time.Minute

// ErrInvalidWindow is returned for bucket windows shorter than one second.
var ErrInvalidWindow = errors.New("bucket window must be at least one second")

// errFlightAbandoned is the cancel cause of a compute whose waiters all left.
var errFlightAbandoned = errors.New("shared compute abandoned by all callers")

// maxAbandonedRetries bounds how often a caller re-joins after landing on an
// abandoned compute.
const maxAbandonedRetries = 3

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SessionCache is a get-or-compute cache whose keys embed a time bucket,
// so an entry is never consulted after its bucket has passed.
type SessionCache struct {
	store          Store
	clock          Clock
	computeTimeout time.Duration
	sfGroup        singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of one shared compute. It is cancelled when its last
// waiter leaves, so no single caller's cancellation reaches the others.
type flight struct {
	ctx     context.Context
	stop    func()
	waiters int
}

// Option configures a SessionCache.
type Option func(*SessionCache)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *SessionCache) { s.clock = c }
}

// WithComputeTimeout bounds every shared compute.
func WithComputeTimeout(d time.Duration) Option {
	return func(s *SessionCache) {
		if d > 0 {
			s.computeTimeout = d
		}
	}
}

// NewSessionCache creates a cache over store.
func NewSessionCache(store Store, opts ...Option) *SessionCache {
	c := &SessionCache{
		store:          store,
		clock:          realClock{},
		computeTimeout: DefaultComputeTimeout,
		flights:        make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key composes session:<operation>:<resource id>:<bucket>.
func Key(operation string, resourceID model.ResourceID, bucket int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", keyPrefix, operation, resourceID, bucket)
}

// Bucket returns floor(unix(now) / window).
func (c *SessionCache) Bucket(window time.Duration) int64 {
	return c.clock.Now().Unix() / int64(window/time.Second)
}

// GetOrCompute returns the payload cached for the current bucket, running
// compute on a miss. Concurrent callers for one key share a single compute.
// Store failures are logged and fall through to compute.
func (c *SessionCache) GetOrCompute(
	ctx context.Context,
	operation string,
	resourceID model.ResourceID,
	window time.Duration,
	compute func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	if window < time.Second {
		return nil, ErrInvalidWindow
	}

	key := Key(operation, resourceID, c.Bucket(window))

	for attempt := 0; ; attempt++ {
		data, err := c.await(ctx, key, window, compute)
		if errors.Is(err, errFlightAbandoned) && ctx.Err() == nil && attempt < maxAbandonedRetries {
			continue
		}
		return data, err
	}
}

// await joins the shared compute for key and waits for it or for ctx,
// whichever ends first. Leaving early never cancels the compute for others.
func (c *SessionCache) await(
	ctx context.Context,
	key string,
	window time.Duration,
	compute func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	f := c.join(ctx, key)
	defer c.leave(key, f)

	ch := c.sfGroup.DoChan(key, func() (any, error) {
		data, err := c.getOrCompute(f.ctx, key, window, compute)
		if err != nil && errors.Is(context.Cause(f.ctx), errFlightAbandoned) {
			return nil, errFlightAbandoned
		}
		return data, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
		} else {
			metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// join registers a waiter on the flight for key, creating it if needed.
// The flight keeps ctx's values but not its cancellation.
func (c *SessionCache) join(ctx context.Context, key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[key]
	if !ok {
		timeoutCtx, cancelTimeout := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		flightCtx, cancel := context.WithCancelCause(timeoutCtx)
		f = &flight{
			ctx: flightCtx,
			stop: func() {
				cancel(errFlightAbandoned)
				cancelTimeout()
			},
		}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter and stops the flight once nobody is waiting on it.
func (c *SessionCache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.stop()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
}

func (c *SessionCache) getOrCompute(
	ctx context.Context,
	key string,
	window time.Duration,
	compute func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	storeType := c.store.Type()

	data, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, storeType).Inc()
		slog.Warn("session cache get failed, computing directly", "key", key, "error", err)
	case data != nil:
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, storeType).Inc()
		return data, nil
	default:
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, storeType).Inc()
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	written, err := c.store.SetNX(ctx, key, value, window)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError, storeType).Inc()
		slog.Warn("session cache set failed", "key", key, "error", err)
		return value, nil
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, storeType).Inc()

	if !written {
		// Another process filled the bucket first; its payload wins.
		if existing, err := c.store.Get(ctx, key); err == nil && existing != nil {
			return existing, nil
		}
	}
	return value, nil
}

// GetOrComputeJSON is GetOrCompute for JSON-encodable values.
func GetOrComputeJSON[T any](
	ctx context.Context,
	c *SessionCache,
	operation string,
	resourceID model.ResourceID,
	window time.Duration,
	compute func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	data, err := c.GetOrCompute(ctx, operation, resourceID, window, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("decode cached %s: %w", operation, err)
	}
	return out, nil
}
