package transcoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/infrastructure/metrics"
)

var (
	// ErrNoClipsProduced is returned when no window yielded a valid clip.
	ErrNoClipsProduced = errors.New("no clips produced")

	// ErrOutputTooSmall marks an encode whose output is below the size floor.
	ErrOutputTooSmall = errors.New("clip output below minimum size")

	// ErrNoSource is returned when the source asset has no local file.
	ErrNoSource = errors.New("source media has no local file")
)

// ClipperConfig holds configuration for the Clipper.
type ClipperConfig struct {
	// Parallelism bounds concurrent encodes within one Build.
	Parallelism int
	// MinOutputBytes is the size floor; an output must be larger to count as a clip.
	MinOutputBytes int64
	// ClipTimeout bounds a single encode.
	ClipTimeout time.Duration
	// WatermarkText is drawn on tiers that require a watermark.
	WatermarkText string
}

// DefaultClipperConfig returns a ClipperConfig with production-ready defaults.
func DefaultClipperConfig() ClipperConfig {
	return ClipperConfig{
		Parallelism:    2,
		MinOutputBytes: 10 * 1024,
		ClipTimeout:    5 * time.Minute,
		WatermarkText:  DefaultWatermarkText,
	}
}

// Clipper turns highlight windows into validated vertical clips.
type Clipper struct {
	transcoder Transcoder
	config     ClipperConfig
	buildChain func(spec model.TierSpec) FilterChain
}

// ClipperOption configures a Clipper.
type ClipperOption func(*Clipper)

// WithFilterBuilder replaces how the filter chain is assembled for a tier.
// The result is still validated before use.
func WithFilterBuilder(fn func(spec model.TierSpec) FilterChain) ClipperOption {
	return func(c *Clipper) { c.buildChain = fn }
}

// NewClipper creates a clipper on top of t.
func NewClipper(t Transcoder, cfg ClipperConfig, opts ...ClipperOption) *Clipper {
	def := DefaultClipperConfig()
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	if cfg.MinOutputBytes <= 0 {
		cfg.MinOutputBytes = def.MinOutputBytes
	}
	if cfg.ClipTimeout <= 0 {
		cfg.ClipTimeout = def.ClipTimeout
	}
	if cfg.WatermarkText == "" {
		cfg.WatermarkText = def.WatermarkText
	}

	c := &Clipper{
		transcoder: t,
		config:     cfg,
	}
	c.buildChain = func(spec model.TierSpec) FilterChain {
		return CanonicalChain(spec, c.config.WatermarkText)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build encodes one clip per usable window. Failed or out-of-range windows are
// dropped; the result keeps window order. It fails only when nothing was produced.
func (c *Clipper) Build(ctx context.Context, windows []model.HighlightWindow, asset *model.MediaAsset, tier model.Tier, outputDir string) ([]model.OutputClip, error) {
	spec, ok := tier.Spec()
	if !ok {
		return nil, fmt.Errorf("build clips: %w", model.ErrInvalidTier)
	}
	if asset == nil || asset.Path == "" {
		return nil, fmt.Errorf("build clips: %w", ErrNoSource)
	}

	chain, corrected := c.validatedChain(spec)
	filter := chain.String()

	results := make([]*model.OutputClip, len(windows))

	var g errgroup.Group
	g.SetLimit(c.config.Parallelism)

	for i, w := range windows {
		duration := w.Duration()
		if duration <= 0 || duration > spec.MaxClipSeconds {
			slog.Warn("skipping window outside clip bounds",
				"resource_id", asset.ResourceID,
				"window", w.Index,
				"duration", duration,
				"max", spec.MaxClipSeconds,
			)
			metrics.ClipsTotal.WithLabelValues(string(tier), metrics.ClipResultSkipped).Inc()
			continue
		}
		if duration < 1 {
			duration = 1
		}

		req := ClipRequest{
			InputPath:   asset.Path,
			OutputPath:  filepath.Join(outputDir, fmt.Sprintf("%s_clip%02d_%s.mp4", asset.ResourceID, w.Index, tier)),
			Start:       w.Start,
			Duration:    duration,
			FilterChain: filter,
			Spec:        spec,
		}

		g.Go(func() error {
			size, err := c.encode(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				result := metrics.ClipResultFailed
				if errors.Is(err, ErrOutputTooSmall) {
					result = metrics.ClipResultUndersized
				}
				metrics.ClipsTotal.WithLabelValues(string(tier), result).Inc()
				slog.Warn("dropping window after failed encode",
					"resource_id", asset.ResourceID,
					"window", w.Index,
					"error", err,
				)
				return nil
			}

			metrics.ClipsTotal.WithLabelValues(string(tier), metrics.ClipResultProduced).Inc()
			results[i] = &model.OutputClip{
				Window:         w,
				Path:           req.OutputPath,
				Tier:           tier,
				Resolution:     spec.Resolution(),
				Watermarked:    spec.Watermark,
				FilterChain:    filter,
				ChainCorrected: corrected,
				SizeBytes:      size,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r == nil {
				continue
			}
			if rmErr := os.Remove(r.Path); rmErr != nil && !os.IsNotExist(rmErr) {
				slog.Warn("failed to remove clip from interrupted build", "path", r.Path, "error", rmErr)
			}
		}
		return nil, fmt.Errorf("build clips: %w", err)
	}

	clips := make([]model.OutputClip, 0, len(windows))
	for _, r := range results {
		if r != nil {
			clips = append(clips, *r)
		}
	}
	if len(clips) == 0 {
		return nil, ErrNoClipsProduced
	}
	return clips, nil
}

// validatedChain returns the chain to use and whether it had to be replaced.
func (c *Clipper) validatedChain(spec model.TierSpec) (FilterChain, bool) {
	chain := c.buildChain(spec)
	err := chain.Validate(spec)
	if err == nil {
		return chain, false
	}

	canonical := CanonicalChain(spec, c.config.WatermarkText)
	slog.Error("filter chain failed validation, substituting canonical chain",
		"tier", spec.Tier,
		"rejected", chain.String(),
		"canonical", canonical.String(),
		"error", err,
	)
	metrics.FilterValidationFailuresTotal.WithLabelValues(string(spec.Tier)).Inc()
	return canonical, true
}

// encode runs one bounded encode and enforces the size floor.
func (c *Clipper) encode(ctx context.Context, req ClipRequest) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ClipTimeout)
	defer cancel()

	if err := c.transcoder.TranscodeClip(ctx, req); err != nil {
		_ = os.Remove(req.OutputPath)
		return 0, err
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return 0, fmt.Errorf("stat clip output: %w", err)
	}
	if info.Size() <= c.config.MinOutputBytes {
		_ = os.Remove(req.OutputPath)
		return 0, fmt.Errorf("%w: %d bytes", ErrOutputTooSmall, info.Size())
	}
	return info.Size(), nil
}
