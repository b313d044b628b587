package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/clipstream/internal/acquisition"
	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/infrastructure/cache"
	"github.com/hszk-dev/clipstream/internal/infrastructure/metrics"
	"github.com/hszk-dev/clipstream/internal/transcoder"
)

// Session cache operation names.
const (
	CacheOpMetadata = "metadata"
	CacheOpVideo    = "video"
)

// HighlightCacheOp names the cached highlight result for one window shape.
func HighlightCacheOp(clipLength, windowCount int) string {
	return fmt.Sprintf("highlights-%ds-x%d", clipLength, windowCount)
}

// MediaSource acquires metadata and media for a resource.
// *acquisition.Chain is the production implementation.
type MediaSource interface {
	Acquire(ctx context.Context, req acquisition.AcquireRequest) (*model.MediaAsset, error)
}

// HighlightSelector picks candidate windows once the media duration is known.
// The seeded hotspot generator is the default; a transcript-driven service
// can be substituted here.
type HighlightSelector interface {
	SelectWindows(ctx context.Context, resourceID model.ResourceID, windowLength, mediaDuration float64, windowCount int) ([]model.HighlightWindow, error)
}

// ClipBuilder turns selected windows into validated output clips.
type ClipBuilder interface {
	Build(ctx context.Context, windows []model.HighlightWindow, asset *model.MediaAsset, tier model.Tier, outputDir string) ([]model.OutputClip, error)
}

// PipelineRequest is one end-to-end run.
type PipelineRequest struct {
	Reference  string
	ClipLength int
	Tier       string
	// OutputDir receives the finished clips. It outlives the run.
	OutputDir string
}

// PipelineConfig holds configuration for Pipeline.
type PipelineConfig struct {
	// ScratchDir is the parent of the per-run working directories.
	ScratchDir string
	// WindowCount is the number of highlight windows requested per run.
	WindowCount int

	MetadataWindow  time.Duration
	MediaWindow     time.Duration
	HighlightWindow time.Duration
}

// DefaultPipelineConfig returns the default configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ScratchDir:      os.TempDir(),
		WindowCount:     3,
		MetadataWindow:  10 * time.Minute,
		MediaWindow:     30 * time.Minute,
		HighlightWindow: time.Hour,
	}
}

// Pipeline runs resolve, acquire, select, transcode and finalize for one reference.
type Pipeline struct {
	source   MediaSource
	selector HighlightSelector
	builder  ClipBuilder
	cache    *cache.SessionCache
	cfg      PipelineConfig
}

// NewPipeline creates a Pipeline. sessions may be nil to disable caching.
func NewPipeline(source MediaSource, selector HighlightSelector, builder ClipBuilder, sessions *cache.SessionCache, cfg PipelineConfig) *Pipeline {
	def := DefaultPipelineConfig()
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = def.ScratchDir
	}
	if cfg.WindowCount <= 0 {
		cfg.WindowCount = def.WindowCount
	}
	if cfg.MetadataWindow < time.Second {
		cfg.MetadataWindow = def.MetadataWindow
	}
	if cfg.MediaWindow < time.Second {
		cfg.MediaWindow = def.MediaWindow
	}
	if cfg.HighlightWindow < time.Second {
		cfg.HighlightWindow = def.HighlightWindow
	}

	return &Pipeline{
		source:   source,
		selector: selector,
		builder:  builder,
		cache:    sessions,
		cfg:      cfg,
	}
}

// run tracks one pipeline execution.
type run struct {
	id     string
	log    *slog.Logger
	result *model.PipelineResult
}

func (r *run) enter(next model.RunStage) error {
	if !r.result.Stage.CanTransitionTo(next) {
		return fmt.Errorf("%s -> %s: %w", r.result.Stage, next, model.ErrInvalidStageTransition)
	}
	r.log.Debug("pipeline stage", "from", r.result.Stage, "to", next)
	r.result.Stage = next
	return nil
}

// RunPipeline executes one run and always returns a result; failures are
// reported through Status, Reason and Error rather than a Go error.
func (p *Pipeline) RunPipeline(ctx context.Context, req PipelineRequest) *model.PipelineResult {
	started := time.Now()
	r := &run{
		id:     uuid.NewString(),
		result: &model.PipelineResult{Stage: model.StageStarting},
	}
	r.log = slog.With("run_id", r.id)

	err := p.execute(ctx, r, req)
	if err != nil {
		p.fail(ctx, r, err)
	} else {
		r.result.Status = model.RunCompleted
	}

	reason := "none"
	if r.result.Reason != model.FailureNone {
		reason = string(r.result.Reason)
	}
	metrics.PipelineRunsTotal.WithLabelValues(string(r.result.Status), reason).Inc()
	metrics.PipelineDurationSeconds.WithLabelValues(string(r.result.Status)).Observe(time.Since(started).Seconds())

	r.log.Info("pipeline finished",
		"resource_id", r.result.ResourceID,
		"status", r.result.Status,
		"stage", r.result.Stage,
		"reason", reason,
		"clips", len(r.result.Clips),
		"duration", time.Since(started),
	)
	return r.result
}

func (p *Pipeline) execute(ctx context.Context, r *run, req PipelineRequest) error {
	id, err := model.ParseReference(req.Reference)
	if err != nil {
		return err
	}
	r.result.ResourceID = id
	r.log = r.log.With("resource_id", id)

	tier, err := model.ParseTier(req.Tier)
	if err != nil {
		return err
	}
	spec, _ := tier.Spec()
	if req.ClipLength < 1 || float64(req.ClipLength) > spec.MaxClipSeconds {
		return fmt.Errorf("clip length %ds outside [1, %.0f]: %w", req.ClipLength, spec.MaxClipSeconds, model.ErrInvalidClipLength)
	}
	if req.OutputDir == "" {
		return fmt.Errorf("output directory: %w", acquisition.ErrInvalidRequest)
	}
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	scratch := filepath.Join(p.cfg.ScratchDir, "run-"+r.id)
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			r.log.Warn("failed to remove scratch directory", "path", scratch, "error", err)
		}
	}()

	if err := r.enter(model.StageAcquiringMetadata); err != nil {
		return err
	}
	meta, err := p.metadata(ctx, id)
	if err != nil {
		return fmt.Errorf("acquire metadata: %w", err)
	}

	if err := r.enter(model.StageAcquiringMedia); err != nil {
		return err
	}
	video, err := p.video(ctx, r, id, scratch)
	if err != nil {
		return fmt.Errorf("acquire video: %w", err)
	}

	duration := meta.DurationSeconds
	if duration <= 0 {
		duration = video.DurationSeconds
	}

	if err := r.enter(model.StageSelectingWindows); err != nil {
		return err
	}
	windows, err := p.windows(ctx, id, req.ClipLength, duration)
	if err != nil {
		return fmt.Errorf("select windows: %w", err)
	}
	if len(windows) == 0 {
		return fmt.Errorf("select windows: %w", transcoder.ErrNoClipsProduced)
	}
	r.log.Info("highlight windows selected", "count", len(windows), "media_duration", duration)

	if err := r.enter(model.StageTranscoding); err != nil {
		return err
	}
	clips, err := p.builder.Build(ctx, windows, video, tier, req.OutputDir)
	if err != nil {
		return fmt.Errorf("build clips: %w", err)
	}

	if err := r.enter(model.StageFinalizing); err != nil {
		return err
	}
	r.result.Clips = clips
	if len(clips) < len(windows) {
		r.log.Warn("partial clip set", "produced", len(clips), "requested", len(windows))
	}

	return r.enter(model.StageCompleted)
}

func (p *Pipeline) fail(ctx context.Context, r *run, err error) {
	r.result.Status = model.RunFailed
	r.result.Reason = failureReason(ctx, err)
	r.result.Error = err.Error()
	r.result.Clips = nil

	if r.result.Stage.CanTransitionTo(model.StageFailed) {
		r.result.Stage = model.StageFailed
	}

	r.log.Error("pipeline failed",
		"resource_id", r.result.ResourceID,
		"reason", r.result.Reason,
		"error", err,
	)
}

// metadata returns the cached or freshly acquired metadata for id.
func (p *Pipeline) metadata(ctx context.Context, id model.ResourceID) (*model.MediaAsset, error) {
	acquire := func(ctx context.Context) (*model.MediaAsset, error) {
		return p.source.Acquire(ctx, acquisition.AcquireRequest{ResourceID: id, Kind: model.KindMetadata})
	}
	if p.cache == nil {
		return acquire(ctx)
	}
	return cache.GetOrComputeJSON(ctx, p.cache, CacheOpMetadata, id, p.cfg.MetadataWindow, acquire)
}

// video returns a media handle that lives inside this run's scratch directory.
// Cached handles point into another run's scratch directory, so they are
// hard-linked in; a handle whose file is gone falls back to direct acquisition.
func (p *Pipeline) video(ctx context.Context, r *run, id model.ResourceID, scratch string) (*model.MediaAsset, error) {
	acquire := func(ctx context.Context) (*model.MediaAsset, error) {
		return p.source.Acquire(ctx, acquisition.AcquireRequest{ResourceID: id, Kind: model.KindVideo, OutputDir: scratch})
	}
	if p.cache == nil {
		return acquire(ctx)
	}

	asset, err := cache.GetOrComputeJSON(ctx, p.cache, CacheOpVideo, id, p.cfg.MediaWindow, acquire)
	if err != nil {
		return nil, err
	}

	linked, err := linkInto(asset, scratch)
	if err == nil {
		return linked, nil
	}

	r.log.Info("cached media handle is stale, acquiring directly", "path", asset.Path, "error", err)
	return acquire(ctx)
}

func (p *Pipeline) windows(ctx context.Context, id model.ResourceID, clipLength int, duration float64) ([]model.HighlightWindow, error) {
	count := p.cfg.WindowCount
	selectWindows := func(ctx context.Context) ([]model.HighlightWindow, error) {
		return p.selector.SelectWindows(ctx, id, float64(clipLength), duration, count)
	}
	if p.cache == nil {
		return selectWindows(ctx)
	}
	return cache.GetOrComputeJSON(ctx, p.cache, HighlightCacheOp(clipLength, count), id, p.cfg.HighlightWindow, selectWindows)
}

// linkInto returns a copy of asset whose Path is inside dir.
func linkInto(asset *model.MediaAsset, dir string) (*model.MediaAsset, error) {
	if asset == nil || asset.Path == "" {
		return nil, errors.New("media handle has no path")
	}
	if filepath.Dir(asset.Path) == filepath.Clean(dir) {
		if _, err := os.Stat(asset.Path); err != nil {
			return nil, err
		}
		return asset, nil
	}

	target := filepath.Join(dir, filepath.Base(asset.Path))
	if err := os.Link(asset.Path, target); err != nil {
		return nil, fmt.Errorf("link media handle: %w", err)
	}

	linked := *asset
	linked.Path = target
	return &linked, nil
}

// failureReason classifies err for callers. Cancellation of the run context
// wins over whatever the interrupted component reported.
func failureReason(ctx context.Context, err error) model.RunFailure {
	switch {
	case ctx.Err() != nil:
		return model.FailureCancelled
	case errors.Is(err, model.ErrInvalidReference):
		return model.FailureInvalidReference
	case errors.Is(err, model.ErrInvalidTier):
		return model.FailureInvalidTier
	case errors.Is(err, model.ErrInvalidClipLength), errors.Is(err, acquisition.ErrInvalidRequest):
		return model.FailureInvalidRequest
	case errors.Is(err, acquisition.ErrUnavailable):
		return model.FailureUnavailable
	case errors.Is(err, acquisition.ErrBlocked):
		return model.FailureBlocked
	case errors.Is(err, acquisition.ErrAllStrategiesExhausted):
		return model.FailureStrategiesExhausted
	case errors.Is(err, transcoder.ErrNoClipsProduced):
		return model.FailureNoClips
	default:
		return model.FailureInternal
	}
}
