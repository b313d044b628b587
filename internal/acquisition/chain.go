package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/infrastructure/metrics"
)

// BlockTracker is the cooldown collaborator of the chain.
type BlockTracker interface {
	RecordBlock()
	RecommendedDelay() time.Duration
	Reset()
}

// ChainConfig holds the timing parameters of the chain.
type ChainConfig struct {
	// AttemptTimeout bounds a single attempt including subprocess teardown.
	AttemptTimeout time.Duration
	// InterAttemptDelay is multiplied by the attempt index and added to the cooldown delay.
	InterAttemptDelay time.Duration
}

// DefaultChainConfig returns the production timing parameters.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		AttemptTimeout:    3 * time.Minute,
		InterAttemptDelay: 2 * time.Second,
	}
}

// Chain tries strategies in order, starting from the last one that worked.
type Chain struct {
	acquirer   MediaAcquirer
	strategies []Strategy
	tracker    BlockTracker
	classifier *Classifier
	config     ChainConfig
	sleep      func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	cursor int

	// resource id -> chan struct{} with capacity 1
	resourceLocks sync.Map
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithSleep replaces the cancellable wait used between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ChainOption {
	return func(c *Chain) { c.sleep = fn }
}

// WithClassifier replaces the default classifier.
func WithClassifier(cl *Classifier) ChainOption {
	return func(c *Chain) { c.classifier = cl }
}

// NewChain creates a strategy chain.
func NewChain(acquirer MediaAcquirer, strategies []Strategy, tracker BlockTracker, cfg ChainConfig, opts ...ChainOption) (*Chain, error) {
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultChainConfig().AttemptTimeout
	}

	c := &Chain{
		acquirer:   acquirer,
		strategies: append([]Strategy(nil), strategies...),
		tracker:    tracker,
		classifier: NewClassifier(),
		config:     cfg,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Cursor returns the index of the strategy that succeeded most recently.
func (c *Chain) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Strategies returns the configured strategies in their fixed order.
func (c *Chain) Strategies() []Strategy {
	return append([]Strategy(nil), c.strategies...)
}

// Acquire fetches req through the chain. Attempts for one resource id are
// serialized across callers.
func (c *Chain) Acquire(ctx context.Context, req AcquireRequest) (*model.MediaAsset, error) {
	if req.ResourceID == "" || !req.Kind.IsValid() {
		return nil, fmt.Errorf("resource %q kind %q: %w", req.ResourceID, req.Kind, ErrInvalidRequest)
	}
	if req.Kind != model.KindMetadata && req.OutputDir == "" {
		return nil, fmt.Errorf("%s acquisition without output directory: %w", req.Kind, ErrInvalidRequest)
	}

	unlock, err := c.lockResource(ctx, req.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("wait for resource lock: %w", err)
	}
	defer unlock()

	var (
		history []model.AcquisitionAttempt
		last    error
		reason  model.FailureReason
	)

	for i, idx := range c.order() {
		wait := c.tracker.RecommendedDelay() + c.config.InterAttemptDelay*time.Duration(i)
		if wait > 0 {
			metrics.AcquisitionWaitSeconds.Observe(wait.Seconds())
			slog.Info("waiting before acquisition attempt",
				"resource_id", req.ResourceID,
				"kind", req.Kind,
				"attempt", i+1,
				"wait", wait,
			)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("acquire %s: %w", req.Kind, err)
			}
		}

		s := c.strategies[idx]
		attempt, asset, err := c.try(ctx, req, s)
		history = append(history, attempt)

		if err == nil {
			c.tracker.Reset()
			c.setCursor(idx)
			asset.Strategy = s.Name
			return asset, nil
		}

		c.removePartial(req)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire %s: %w", req.Kind, ctx.Err())
		}

		if attempt.Reason == model.ReasonRateLimited {
			c.tracker.RecordBlock()
		}

		attemptErr := &AttemptError{
			Strategy: s.Name,
			Reason:   attempt.Reason,
			Terminal: attempt.Terminal,
			Err:      err,
		}
		if attempt.Terminal {
			slog.Error("terminal acquisition failure",
				"resource_id", req.ResourceID,
				"kind", req.Kind,
				"strategy", s.Name,
				"reason", attempt.Reason.String(),
				"error", err,
			)
			return nil, attemptErr
		}

		last = attemptErr
		reason = attempt.Reason
	}

	slog.Error("acquisition strategies exhausted",
		"resource_id", req.ResourceID,
		"kind", req.Kind,
		"attempts", len(history),
		"last_reason", reason.String(),
	)
	return nil, &ExhaustedError{
		LastReason: reason,
		Attempts:   len(history),
		History:    history,
		Last:       last,
	}
}

// try runs one bounded attempt and classifies its outcome.
func (c *Chain) try(ctx context.Context, req AcquireRequest, s Strategy) (model.AcquisitionAttempt, *model.MediaAsset, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.AttemptTimeout)
	defer cancel()

	attempt := model.AcquisitionAttempt{
		Strategy:  s.Name,
		Kind:      req.Kind,
		StartedAt: time.Now(),
	}

	asset, err := c.acquirer.AcquireWith(attemptCtx, req, s)
	attempt.Duration = time.Since(attempt.StartedAt)

	switch {
	case err == nil && asset == nil:
		err = fmt.Errorf("strategy %s returned no asset: %w", s.Name, ErrTransport)
		fallthrough
	case err != nil:
		attempt.Outcome = model.OutcomeFailure
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			attempt.Outcome = model.OutcomeTimeout
			attempt.Reason = model.ReasonTransport
		} else {
			class := c.classifier.Classify(err)
			attempt.Reason = class.Reason
			attempt.Terminal = class.Terminal
		}
	default:
		attempt.Outcome = model.OutcomeSuccess
	}

	metrics.AcquisitionAttemptsTotal.WithLabelValues(
		s.Name, string(req.Kind), string(attempt.Outcome), attempt.Reason.String(),
	).Inc()

	if err != nil {
		slog.Warn("acquisition attempt failed",
			"resource_id", req.ResourceID,
			"kind", req.Kind,
			"strategy", s.Name,
			"outcome", attempt.Outcome,
			"reason", attempt.Reason.String(),
			"terminal", attempt.Terminal,
			"duration", attempt.Duration,
			"error", err,
		)
		return attempt, nil, err
	}

	slog.Info("acquisition attempt succeeded",
		"resource_id", req.ResourceID,
		"kind", req.Kind,
		"strategy", s.Name,
		"duration", attempt.Duration,
	)
	return attempt, asset, nil
}

// order returns strategy indices starting at the cursor, wrapping around.
func (c *Chain) order() []int {
	c.mu.Lock()
	start := c.cursor
	c.mu.Unlock()

	n := len(c.strategies)
	out := make([]int, n)
	for i := range out {
		out[i] = (start + i) % n
	}
	return out
}

func (c *Chain) setCursor(idx int) {
	c.mu.Lock()
	c.cursor = idx
	c.mu.Unlock()
}

// lockResource blocks until no other Acquire runs for id, or ctx ends.
func (c *Chain) lockResource(ctx context.Context, id model.ResourceID) (func(), error) {
	v, _ := c.resourceLocks.LoadOrStore(id, make(chan struct{}, 1))
	sem := v.(chan struct{})

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// removePartial deletes whatever a failed attempt left under the output prefix.
func (c *Chain) removePartial(req AcquireRequest) {
	if req.Kind == model.KindMetadata {
		return
	}
	matches, err := filepath.Glob(req.OutputBase() + ".*")
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			slog.Warn("failed to remove partial download", "path", m, "error", err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
