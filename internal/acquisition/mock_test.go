package acquisition

import (
	"context"
	"sync"
	"time"

	"github.com/hszk-dev/clipstream/internal/domain/model"
)

type mockAcquirer struct {
	mu    sync.Mutex
	calls []string

	AcquireWithFunc func(ctx context.Context, req AcquireRequest, s Strategy) (*model.MediaAsset, error)
}

func (m *mockAcquirer) AcquireWith(ctx context.Context, req AcquireRequest, s Strategy) (*model.MediaAsset, error) {
	m.mu.Lock()
	m.calls = append(m.calls, s.Name)
	m.mu.Unlock()

	if m.AcquireWithFunc != nil {
		return m.AcquireWithFunc(ctx, req, s)
	}
	return &model.MediaAsset{ResourceID: req.ResourceID, Kind: req.Kind}, nil
}

func (m *mockAcquirer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockTracker struct {
	mu     sync.Mutex
	blocks int
	resets int
	delay  time.Duration
}

func (m *mockTracker) RecordBlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks++
}

func (m *mockTracker) RecommendedDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay
}

func (m *mockTracker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

// recordingSleep returns immediately and remembers every requested wait.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func testStrategies(names ...string) []Strategy {
	out := make([]Strategy, len(names))
	for i, n := range names {
		out[i] = Strategy{Name: n, UserAgent: "ua-" + n, PlayerClient: "web", AcceptLanguage: "en-US"}
	}
	return out
}

func toolFailure(stderr string) error {
	return &ToolError{Tool: "yt-dlp", ExitCode: 1, Stderr: stderr}
}
