// Package cooldown tracks blocking events from the media source and
// recommends how long acquisition callers should wait before trying again.
package cooldown

import (
	"sync"
	"time"

	"github.com/hszk-dev/clipstream/internal/infrastructure/metrics"
)

// State is the tracker's position in its state machine.
type State string

const (
	StateNormal      State = "normal"
	StateDegraded    State = "degraded"
	StateCoolingDown State = "cooling_down"
)

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds the backoff parameters.
type Config struct {
	// Threshold is the number of blocks inside Window that makes the source degraded.
	Threshold int
	// Window is the trailing period over which blocks are counted.
	Window time.Duration
	// BaseDelay and MaxDelay bound the exponential cooldown.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MinSpacing is recommended while the last block is younger than RecentBlockWindow.
	MinSpacing        time.Duration
	RecentBlockWindow time.Duration
}

// DefaultConfig returns the production backoff parameters.
func DefaultConfig() Config {
	return Config{
		Threshold:         3,
		Window:            5 * time.Minute,
		BaseDelay:         15 * time.Second,
		MaxDelay:          5 * time.Minute,
		MinSpacing:        5 * time.Second,
		RecentBlockWindow: 60 * time.Second,
	}
}

// Snapshot is a point-in-time copy of the cooldown state.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	RecentBlocks        int
	TotalBlocks         int64
	LastBlockAt         time.Time
	CooldownUntil       time.Time
}

// Tracker is the process-wide cooldown state machine.
// It never blocks callers; it only reports a recommended delay.
type Tracker struct {
	mu    sync.Mutex
	cfg   Config
	clock Clock

	consecutive   int
	total         int64
	blocks        []time.Time
	lastBlock     time.Time
	cooldownUntil time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// NewTracker creates a tracker in the normal state.
func NewTracker(cfg Config, opts ...Option) *Tracker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.RecentBlockWindow <= 0 {
		cfg.RecentBlockWindow = def.RecentBlockWindow
	}

	t := &Tracker{
		cfg:   cfg,
		clock: realClock{},
	}
	for _, opt := range opts {
		opt(t)
	}

	metrics.SetCooldownState(string(StateNormal))
	return t
}

// RecordBlock registers one blocking or rate-limiting event.
func (t *Tracker) RecordBlock() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.prune(now)

	t.consecutive++
	t.total++
	t.lastBlock = now
	t.blocks = append(t.blocks, now)

	if len(t.blocks) >= t.cfg.Threshold {
		until := now.Add(t.backoff())
		if until.After(t.cooldownUntil) {
			t.cooldownUntil = until
		}
	}

	metrics.CooldownBlocksTotal.Inc()
	metrics.SetCooldownState(string(t.stateLocked(now)))
}

// RecommendedDelay returns how long the next acquisition should wait.
func (t *Tracker) RecommendedDelay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var delay time.Duration

	if remaining := t.cooldownUntil.Sub(now); remaining > 0 {
		delay = remaining
	}
	if !t.lastBlock.IsZero() && now.Sub(t.lastBlock) < t.cfg.RecentBlockWindow && t.cfg.MinSpacing > delay {
		delay = t.cfg.MinSpacing
	}
	return delay
}

// Reset is called after a successful acquisition.
// The trailing block history is kept for diagnostics.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.consecutive = 0
	t.cooldownUntil = time.Time{}
	metrics.SetCooldownState(string(t.stateLocked(t.clock.Now())))
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked(t.clock.Now())
}

// Snapshot returns a copy of the current cooldown state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	return Snapshot{
		State:               t.stateLocked(now),
		ConsecutiveFailures: t.consecutive,
		RecentBlocks:        t.recentLocked(now),
		TotalBlocks:         t.total,
		LastBlockAt:         t.lastBlock,
		CooldownUntil:       t.cooldownUntil,
	}
}

// backoff computes min(base * 2^(consecutive-2), max). Caller holds mu.
func (t *Tracker) backoff() time.Duration {
	exp := t.consecutive - 2
	if exp < 0 {
		exp = 0
	}
	delay := t.cfg.BaseDelay
	for i := 0; i < exp; i++ {
		delay *= 2
		if delay >= t.cfg.MaxDelay {
			return t.cfg.MaxDelay
		}
	}
	if delay > t.cfg.MaxDelay {
		return t.cfg.MaxDelay
	}
	return delay
}

func (t *Tracker) stateLocked(now time.Time) State {
	if now.Before(t.cooldownUntil) {
		return StateCoolingDown
	}
	if t.recentLocked(now) >= t.cfg.Threshold {
		return StateDegraded
	}
	return StateNormal
}

func (t *Tracker) recentLocked(now time.Time) int {
	cutoff := now.Add(-t.cfg.Window)
	n := 0
	for _, b := range t.blocks {
		if b.After(cutoff) {
			n++
		}
	}
	return n
}

// prune drops blocks older than the trailing window. Caller holds mu.
func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-t.cfg.Window)
	kept := t.blocks[:0]
	for _, b := range t.blocks {
		if b.After(cutoff) {
			kept = append(kept, b)
		}
	}
	t.blocks = kept
}
