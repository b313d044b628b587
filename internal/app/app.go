// Package app assembles the clip pipeline from configuration for the worker
// and the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/clipstream/internal/acquisition"
	"github.com/hszk-dev/clipstream/internal/config"
	"github.com/hszk-dev/clipstream/internal/cooldown"
	"github.com/hszk-dev/clipstream/internal/hotspot"
	"github.com/hszk-dev/clipstream/internal/infrastructure/cache"
	"github.com/hszk-dev/clipstream/internal/transcoder"
	"github.com/hszk-dev/clipstream/internal/usecase"
)

// Cache backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewSessionCache builds the session cache for cfg.Cache.Backend.
// The returned closer releases the Redis client, if any.
func NewSessionCache(ctx context.Context, cfg *config.Config) (*cache.SessionCache, io.Closer, error) {
	timeout := cache.WithComputeTimeout(cfg.Cache.ComputeTimeout)

	switch cfg.Cache.Backend {
	case BackendMemory:
		return cache.NewSessionCache(cache.NewMemoryStore(nil), timeout), nopCloser{}, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return cache.NewSessionCache(cache.NewRedisStore(client), timeout), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// NewChain builds the acquisition chain with its own cooldown tracker.
func NewChain(cfg *config.Config) (*acquisition.Chain, error) {
	rules, err := acquisition.ParseRules(cfg.Acquisition.ExtraRules)
	if err != nil {
		return nil, fmt.Errorf("classifier rules: %w", err)
	}

	ytCfg := acquisition.DefaultYtDlpConfig()
	ytCfg.BinaryPath = cfg.Acquisition.BinaryPath
	ytCfg.BaseURL = cfg.Acquisition.BaseURL
	ytCfg.SocketTimeout = cfg.Acquisition.SocketTimeout
	ytCfg.KillGrace = cfg.Acquisition.KillGrace

	strategies := acquisition.FilterStrategies(acquisition.DefaultStrategies(), cfg.Acquisition.Strategies)

	tracker := cooldown.NewTracker(cooldown.Config{
		Threshold:         cfg.Cooldown.Threshold,
		Window:            cfg.Cooldown.Window,
		BaseDelay:         cfg.Cooldown.BaseDelay,
		MaxDelay:          cfg.Cooldown.MaxDelay,
		MinSpacing:        cfg.Cooldown.MinSpacing,
		RecentBlockWindow: cfg.Cooldown.RecentBlockWindow,
	})

	chain, err := acquisition.NewChain(
		acquisition.NewYtDlpAcquirer(ytCfg),
		strategies,
		tracker,
		acquisition.ChainConfig{
			AttemptTimeout:    cfg.Acquisition.AttemptTimeout,
			InterAttemptDelay: cfg.Acquisition.InterAttemptDelay,
		},
		acquisition.WithClassifier(acquisition.NewClassifier(rules...)),
	)
	if err != nil {
		return nil, fmt.Errorf("acquisition chain: %w", err)
	}
	return chain, nil
}

// NewGenerator builds the hotspot generator.
func NewGenerator(cfg *config.Config) *hotspot.Generator {
	hcfg := hotspot.DefaultConfig()
	hcfg.MinGap = cfg.Clip.MinGap
	return hotspot.NewGenerator(hcfg)
}

// NewClipper builds the ffmpeg-backed clip builder.
func NewClipper(cfg *config.Config) *transcoder.Clipper {
	ffCfg := transcoder.DefaultFFmpegConfig()
	ffCfg.FFmpegPath = cfg.Clip.FFmpegPath
	ffCfg.VideoPreset = cfg.Clip.VideoPreset
	ffCfg.KillGrace = cfg.Acquisition.KillGrace

	return transcoder.NewClipper(transcoder.NewFFmpegTranscoder(ffCfg), transcoder.ClipperConfig{
		Parallelism:    cfg.Clip.Parallelism,
		MinOutputBytes: cfg.Clip.MinOutputBytes,
		ClipTimeout:    cfg.Clip.Timeout,
		WatermarkText:  cfg.Clip.WatermarkText,
	})
}

// NewPipeline wires chain, generator and clipper into a pipeline.
// sessions may be nil to run without caching.
func NewPipeline(cfg *config.Config, sessions *cache.SessionCache) (*usecase.Pipeline, error) {
	chain, err := NewChain(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("pipeline configured",
		"strategies", len(chain.Strategies()),
		"window_count", cfg.Clip.WindowCount,
		"cache", sessions != nil,
	)

	return usecase.NewPipeline(chain, NewGenerator(cfg), NewClipper(cfg), sessions, usecase.PipelineConfig{
		ScratchDir:      cfg.Worker.TempDir,
		WindowCount:     cfg.Clip.WindowCount,
		MetadataWindow:  cfg.Cache.MetadataWindow,
		MediaWindow:     cfg.Cache.MediaWindow,
		HighlightWindow: cfg.Cache.HighlightWindow,
	}), nil
}
