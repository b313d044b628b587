package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hszk-dev/clipstream/internal/domain/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newBucketAlignedClock starts exactly at a bucket boundary for 60s windows.
func newBucketAlignedClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_040, 0)}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingStore) Type() string { return "failing" }

func countingCompute(calls *atomic.Int32, payload string) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(payload), nil
	}
}

func TestKey(t *testing.T) {
	got := Key("highlights-15s-x3", "abc123", 28333334)
	want := "session:highlights-15s-x3:abc123:28333334"
	if got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestSessionCache_BucketExpiry(t *testing.T) {
	clock := newBucketAlignedClock()
	c := NewSessionCache(NewMemoryStore(clock), WithClock(clock))
	ctx := context.Background()

	var calls atomic.Int32
	compute := countingCompute(&calls, "payload")

	for i := 0; i < 3; i++ {
		got, err := c.GetOrCompute(ctx, "metadata", "abc123", time.Minute, compute)
		if err != nil {
			t.Fatalf("GetOrCompute() error = %v", err)
		}
		if string(got) != "payload" {
			t.Errorf("GetOrCompute() = %q", got)
		}
		clock.Advance(10 * time.Second)
	}
	if calls.Load() != 1 {
		t.Fatalf("compute called %d times within one bucket, want 1", calls.Load())
	}

	clock.Advance(40 * time.Second)
	if _, err := c.GetOrCompute(ctx, "metadata", "abc123", time.Minute, compute); err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("compute called %d times across two buckets, want 2", calls.Load())
	}
}

func TestSessionCache_KeysAreIndependent(t *testing.T) {
	clock := newBucketAlignedClock()
	c := NewSessionCache(NewMemoryStore(clock), WithClock(clock))
	ctx := context.Background()

	var calls atomic.Int32
	c.GetOrCompute(ctx, "metadata", "abc123", time.Minute, countingCompute(&calls, "a"))
	c.GetOrCompute(ctx, "video", "abc123", time.Minute, countingCompute(&calls, "b"))
	c.GetOrCompute(ctx, "metadata", "xyz789", time.Minute, countingCompute(&calls, "c"))

	if calls.Load() != 3 {
		t.Errorf("compute called %d times, want 3", calls.Load())
	}
}

func TestSessionCache_CoalescesConcurrentCalls(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(nil))

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.GetOrCompute(context.Background(), "highlights-15s-x3", "abc123", time.Hour, compute)
			if err != nil || string(got) != "shared" {
				t.Errorf("GetOrCompute() = %q, %v", got, err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
}

func waitForWaiters(t *testing.T, c *SessionCache, key string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		f := c.flights[key]
		got := 0
		if f != nil {
			got = f.waiters
		}
		c.mu.Unlock()
		if got == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("waiters on %s never reached %d", key, n)
}

func TestSessionCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(nil), WithClock(newBucketAlignedClock()))
	key := Key("video", "abc123", c.Bucket(time.Hour))

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return []byte("payload"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctxA, "video", "abc123", time.Hour, compute)
		errA <- err
	}()
	<-started

	type result struct {
		data []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		data, err := c.GetOrCompute(context.Background(), "video", "abc123", time.Hour, compute)
		resB <- result{data, err}
	}()
	waitForWaiters(t, c, key, 2)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller error = %v, want %v", err, context.Canceled)
	}

	close(release)
	got := <-resB
	if got.err != nil || string(got.data) != "payload" {
		t.Errorf("other caller = %q, %v; want payload", got.data, got.err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
}

func TestSessionCache_LastCallerLeavingStopsCompute(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(nil))

	started := make(chan struct{})
	stopped := make(chan struct{})
	compute := func(ctx context.Context) ([]byte, error) {
		close(started)
		<-ctx.Done()
		close(stopped)
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "video", "abc123", time.Hour, compute)
		errCh <- err
	}()
	<-started
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("GetOrCompute() error = %v, want %v", err, context.Canceled)
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("compute kept running after its only caller left")
	}
}

func TestSessionCache_ComputeTimeout(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(nil), WithComputeTimeout(20*time.Millisecond))

	_, err := c.GetOrCompute(context.Background(), "video", "abc123", time.Hour, func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetOrCompute() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestSessionCache_ComputeErrorIsNotCached(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(nil))
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.GetOrCompute(ctx, "metadata", "abc123", time.Hour, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrCompute() error = %v, want %v", err, boom)
	}

	got, err := c.GetOrCompute(ctx, "metadata", "abc123", time.Hour, func(context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	if err != nil || string(got) != "ok" {
		t.Errorf("GetOrCompute() after error = %q, %v", got, err)
	}
}

func TestSessionCache_StoreFailureDegradesToCompute(t *testing.T) {
	c := NewSessionCache(failingStore{})

	var calls atomic.Int32
	for i := 0; i < 2; i++ {
		got, err := c.GetOrCompute(context.Background(), "metadata", "abc123", time.Hour, countingCompute(&calls, "direct"))
		if err != nil || string(got) != "direct" {
			t.Fatalf("GetOrCompute() = %q, %v", got, err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("compute called %d times, want 2", calls.Load())
	}
}

func TestSessionCache_InvalidWindow(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(nil))
	_, err := c.GetOrCompute(context.Background(), "metadata", "abc123", 500*time.Millisecond, countingCompute(new(atomic.Int32), "x"))
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("GetOrCompute() error = %v, want %v", err, ErrInvalidWindow)
	}
}

func TestSessionCache_RedisBackend(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	clock := newBucketAlignedClock()
	c := NewSessionCache(NewRedisStore(client), WithClock(clock))
	ctx := context.Background()

	var calls atomic.Int32
	c.GetOrCompute(ctx, "audio", "abc123", time.Minute, countingCompute(&calls, "a"))
	c.GetOrCompute(ctx, "audio", "abc123", time.Minute, countingCompute(&calls, "a"))
	if calls.Load() != 1 {
		t.Fatalf("compute called %d times, want 1", calls.Load())
	}

	key := Key("audio", "abc123", c.Bucket(time.Minute))
	if !mr.Exists(key) {
		t.Errorf("expected redis key %s", key)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("TTL = %v, want bucket width", ttl)
	}
}

type windowsPayload struct {
	Windows []model.HighlightWindow `json:"windows"`
}

func TestGetOrComputeJSON(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(nil))
	ctx := context.Background()

	var calls atomic.Int32
	compute := func(context.Context) (windowsPayload, error) {
		calls.Add(1)
		return windowsPayload{Windows: []model.HighlightWindow{{Index: 0, Start: 12.5, End: 27.5, Strategy: "early_hook"}}}, nil
	}

	first, err := GetOrComputeJSON(ctx, c, "highlights-15s-x1", "abc123", time.Hour, compute)
	if err != nil {
		t.Fatalf("GetOrComputeJSON() error = %v", err)
	}
	second, err := GetOrComputeJSON(ctx, c, "highlights-15s-x1", "abc123", time.Hour, compute)
	if err != nil {
		t.Fatalf("GetOrComputeJSON() error = %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
	if second.Windows[0].Start != first.Windows[0].Start || second.Windows[0].Strategy != "early_hook" {
		t.Errorf("cached value = %+v, want %+v", second, first)
	}
}
