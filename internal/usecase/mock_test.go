package usecase

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/clipstream/internal/acquisition"
	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/domain/repository"
)

// mockClipJobRepository provides a configurable mock for ClipJobRepository.
type mockClipJobRepository struct {
	createFn  func(ctx context.Context, job *model.ClipJob) error
	getByIDFn func(ctx context.Context, id uuid.UUID) (*model.ClipJob, error)
	updateFn  func(ctx context.Context, job *model.ClipJob) error
}

func (m *mockClipJobRepository) Create(ctx context.Context, job *model.ClipJob) error {
	if m.createFn != nil {
		return m.createFn(ctx, job)
	}
	return nil
}

func (m *mockClipJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ClipJob, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrJobNotFound
}

func (m *mockClipJobRepository) Update(ctx context.Context, job *model.ClipJob) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, job)
	}
	return nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	generatePresignedDownloadURLFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
	uploadFn                       func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	deleteFn                       func(ctx context.Context, key string) error
	existsFn                       func(ctx context.Context, key string) (bool, error)
}

func (m *mockObjectStorage) GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.generatePresignedDownloadURLFn != nil {
		return m.generatePresignedDownloadURLFn(ctx, key, expiry)
	}
	return "http://example.com/download/" + key, nil
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, reader, size, contentType)
	}
	return nil
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishClipTaskFn  func(ctx context.Context, task repository.ClipTask) error
	consumeClipTasksFn func(ctx context.Context, handler func(task repository.ClipTask) error) error
	closeFn            func() error
}

func (m *mockMessageQueue) PublishClipTask(ctx context.Context, task repository.ClipTask) error {
	if m.publishClipTaskFn != nil {
		return m.publishClipTaskFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumeClipTasks(ctx context.Context, handler func(task repository.ClipTask) error) error {
	if m.consumeClipTasksFn != nil {
		return m.consumeClipTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	return nil
}

// mockMediaSource records acquisition requests.
type mockMediaSource struct {
	mu       sync.Mutex
	requests []acquisition.AcquireRequest

	acquireFn func(ctx context.Context, req acquisition.AcquireRequest) (*model.MediaAsset, error)
}

func (m *mockMediaSource) Acquire(ctx context.Context, req acquisition.AcquireRequest) (*model.MediaAsset, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.acquireFn != nil {
		return m.acquireFn(ctx, req)
	}
	return fakeAcquire(req)
}

func (m *mockMediaSource) count(kind model.MediaKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// fakeAcquire returns metadata, or writes a small video file into req.OutputDir.
func fakeAcquire(req acquisition.AcquireRequest) (*model.MediaAsset, error) {
	asset := &model.MediaAsset{
		ResourceID:      req.ResourceID,
		Kind:            req.Kind,
		DurationSeconds: 600,
		Title:           "test video",
		Strategy:        "default",
	}
	if req.Kind == model.KindMetadata {
		return asset, nil
	}

	path := filepath.Join(req.OutputDir, string(req.ResourceID)+".mp4")
	if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
		return nil, err
	}
	asset.Path = path
	asset.SizeBytes = 5
	asset.Container = "mp4"
	return asset, nil
}

// mockSelector provides a configurable mock for HighlightSelector.
type mockSelector struct {
	mu    sync.Mutex
	calls int

	selectFn func(ctx context.Context, id model.ResourceID, length, duration float64, count int) ([]model.HighlightWindow, error)
}

func (m *mockSelector) SelectWindows(ctx context.Context, id model.ResourceID, length, duration float64, count int) ([]model.HighlightWindow, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.selectFn != nil {
		return m.selectFn(ctx, id, length, duration, count)
	}
	windows := make([]model.HighlightWindow, count)
	for i := range windows {
		start := float64(i) * (length + 30)
		windows[i] = model.HighlightWindow{Index: i, Start: start, End: start + length, Category: "hook", Score: 0.9}
	}
	return windows, nil
}

// mockBuilder provides a configurable mock for ClipBuilder.
// By default it writes one file per window and reports the source path it saw.
type mockBuilder struct {
	mu         sync.Mutex
	sourcePath string

	buildFn func(ctx context.Context, windows []model.HighlightWindow, asset *model.MediaAsset, tier model.Tier, outputDir string) ([]model.OutputClip, error)
}

func (m *mockBuilder) Build(ctx context.Context, windows []model.HighlightWindow, asset *model.MediaAsset, tier model.Tier, outputDir string) ([]model.OutputClip, error) {
	m.mu.Lock()
	m.sourcePath = asset.Path
	m.mu.Unlock()

	if m.buildFn != nil {
		return m.buildFn(ctx, windows, asset, tier, outputDir)
	}
	return writeClips(windows, tier, outputDir)
}

func writeClips(windows []model.HighlightWindow, tier model.Tier, outputDir string) ([]model.OutputClip, error) {
	clips := make([]model.OutputClip, 0, len(windows))
	for _, w := range windows {
		path := filepath.Join(outputDir, "clip_"+string(rune('a'+w.Index))+".mp4")
		if err := os.WriteFile(path, []byte("clip"), 0644); err != nil {
			return nil, err
		}
		clips = append(clips, model.OutputClip{
			Window:     w,
			Path:       path,
			Tier:       tier,
			Resolution: "720x1280",
			SizeBytes:  4,
		})
	}
	return clips, nil
}

// mockPipelineRunner provides a configurable mock for PipelineRunner.
type mockPipelineRunner struct {
	runFn func(ctx context.Context, req PipelineRequest) *model.PipelineResult
}

func (m *mockPipelineRunner) RunPipeline(ctx context.Context, req PipelineRequest) *model.PipelineResult {
	if m.runFn != nil {
		return m.runFn(ctx, req)
	}
	return &model.PipelineResult{Status: model.RunCompleted, Stage: model.StageCompleted}
}
