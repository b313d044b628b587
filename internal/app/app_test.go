package app

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hszk-dev/clipstream/internal/acquisition"
	"github.com/hszk-dev/clipstream/internal/config"
	"github.com/hszk-dev/clipstream/internal/domain/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Worker.TempDir = t.TempDir()
	cfg.Cache.Backend = BackendMemory
	return cfg
}

func TestNewSessionCache(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse miniredis port: %v", err)
	}

	tests := []struct {
		name    string
		backend string
		host    string
		port    int
		wantErr bool
	}{
		{name: "memory", backend: BackendMemory},
		{name: "redis", backend: BackendRedis, host: mr.Host(), port: port},
		{name: "redis unreachable", backend: BackendRedis, host: "127.0.0.1", port: 1, wantErr: true},
		{name: "unknown backend", backend: "memcached", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Cache.Backend = tt.backend
			cfg.Redis.Host = tt.host
			cfg.Redis.Port = tt.port

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			sessions, closer, err := NewSessionCache(ctx, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewSessionCache() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSessionCache() error = %v", err)
			}
			defer func() { _ = closer.Close() }()

			calls := 0
			compute := func(ctx context.Context) ([]byte, error) {
				calls++
				return []byte(`{}`), nil
			}
			for i := 0; i < 2; i++ {
				if _, err := sessions.GetOrCompute(ctx, "metadata", model.ResourceID("dQw4w9WgXcQ"), time.Hour, compute); err != nil {
					t.Fatalf("GetOrCompute() error = %v", err)
				}
			}
			if calls != 1 {
				t.Errorf("compute calls = %d, want 1", calls)
			}
		})
	}
}

func TestNewChain(t *testing.T) {
	tests := []struct {
		name       string
		strategies []string
		rules      []string
		wantCount  int
		wantErr    error
	}{
		{name: "all strategies", wantCount: len(acquisition.DefaultStrategies())},
		{name: "filtered strategies", strategies: []string{"tv_embedded", "desktop_web"}, wantCount: 2},
		{name: "extra rules", rules: []string{"blocked=not made this video available in your country"}, wantCount: len(acquisition.DefaultStrategies())},
		{name: "no known strategies", strategies: []string{"nope"}, wantErr: acquisition.ErrNoStrategies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Acquisition.Strategies = tt.strategies
			cfg.Acquisition.ExtraRules = tt.rules

			chain, err := NewChain(cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewChain() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewChain() error = %v", err)
			}
			if got := len(chain.Strategies()); got != tt.wantCount {
				t.Errorf("len(Strategies()) = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestNewChain_InvalidRule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Acquisition.ExtraRules = []string{"no separator"}

	if _, err := NewChain(cfg); err == nil {
		t.Error("NewChain() expected error for malformed rule, got nil")
	}
}

func TestNewGenerator(t *testing.T) {
	cfg := testConfig(t)
	cfg.Clip.MinGap = 45

	windows, err := NewGenerator(cfg).Generate("dQw4w9WgXcQ", 15, 600, 3)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(windows) == 0 {
		t.Fatal("Generate() returned no windows")
	}
	for i := range windows {
		for j := i + 1; j < len(windows); j++ {
			if windows[i].Overlaps(windows[j]) {
				t.Errorf("windows %d and %d overlap", i, j)
			}
		}
	}
}

func TestNewPipeline(t *testing.T) {
	cfg := testConfig(t)

	p, err := NewPipeline(cfg, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if p == nil {
		t.Fatal("NewPipeline() returned nil")
	}
}
