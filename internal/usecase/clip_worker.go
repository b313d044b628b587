package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/domain/repository"
)

const (
	// DefaultMaxRetries is the default maximum number of retry attempts before marking as failed.
	DefaultMaxRetries = 3

	clipContentType = "video/mp4"
)

// ClipWorkerConfig holds configuration for ClipWorker.
type ClipWorkerConfig struct {
	// TempDir is the base directory for per-job working directories.
	TempDir string
	// MaxRetries is the maximum number of retry attempts before marking the job as failed.
	MaxRetries int
}

// DefaultClipWorkerConfig returns the default configuration.
func DefaultClipWorkerConfig() ClipWorkerConfig {
	return ClipWorkerConfig{
		TempDir:    os.TempDir(),
		MaxRetries: DefaultMaxRetries,
	}
}

// PipelineRunner runs one pipeline. *Pipeline is the production implementation.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, req PipelineRequest) *model.PipelineResult
}

// ClipWorker defines the interface for clip job processing.
type ClipWorker interface {
	// ProcessTask handles a clip task from the message queue.
	// Returns nil on success or permanent failure (terminal reason or max retries exceeded).
	// Returns error for transient failures that should trigger a retry.
	ProcessTask(ctx context.Context, task repository.ClipTask) error
}

type clipWorker struct {
	repo     repository.ClipJobRepository
	storage  repository.ObjectStorage
	pipeline PipelineRunner

	tempDir    string
	maxRetries int
}

// NewClipWorker creates a new ClipWorker instance.
func NewClipWorker(
	repo repository.ClipJobRepository,
	storage repository.ObjectStorage,
	pipeline PipelineRunner,
	cfg ClipWorkerConfig,
) ClipWorker {
	return &clipWorker{
		repo:       repo,
		storage:    storage,
		pipeline:   pipeline,
		tempDir:    cfg.TempDir,
		maxRetries: cfg.MaxRetries,
	}
}

// ProcessTask runs the pipeline for the job, uploads the clips under the
// task's output prefix and records the outcome.
func (w *clipWorker) ProcessTask(ctx context.Context, task repository.ClipTask) error {
	job, err := w.repo.GetByID(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			slog.Warn("dropping task for unknown job", "job_id", task.JobID)
			return nil
		}
		return fmt.Errorf("get job: %w", err)
	}

	if job.Status.IsTerminal() {
		return nil
	}

	if task.RetryCount >= w.maxRetries {
		reason := job.FailureReason
		if reason == model.FailureNone {
			reason = model.FailureInternal
		}
		if err := w.markFailed(ctx, job, reason); err != nil {
			// The job remains PROCESSING; ack anyway so the task cannot loop.
			slog.Error("failed to mark job as failed",
				"job_id", job.ID,
				"retry_count", task.RetryCount,
				"error", err,
			)
		}
		return nil
	}

	if job.Status == model.StatusPending {
		if err := job.TransitionTo(model.StatusProcessing); err != nil {
			return fmt.Errorf("transition to processing: %w", err)
		}
		if err := w.repo.Update(ctx, job); err != nil {
			return fmt.Errorf("update job: %w", err)
		}
	}

	workDir := filepath.Join(w.tempDir, "clipstream", job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer w.cleanup(workDir)

	result := w.pipeline.RunPipeline(ctx, PipelineRequest{
		Reference:  job.Reference,
		ClipLength: job.ClipLength,
		Tier:       job.Tier.String(),
		OutputDir:  filepath.Join(workDir, "out"),
	})

	if !result.Succeeded() {
		return w.handleFailure(ctx, job, result)
	}

	records, err := w.uploadClips(ctx, task.OutputKey, result.Clips)
	if err != nil {
		return fmt.Errorf("upload clips: %w", err)
	}

	if err := job.Complete(records); err != nil {
		return fmt.Errorf("transition to completed: %w", err)
	}
	if err := w.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	slog.Info("clip job completed", "job_id", job.ID, "clips", len(records))
	return nil
}

// handleFailure fails the job for terminal reasons and asks for a retry otherwise.
func (w *clipWorker) handleFailure(ctx context.Context, job *model.ClipJob, result *model.PipelineResult) error {
	if !result.Reason.IsTransient() {
		if err := w.markFailed(ctx, job, result.Reason); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return nil
	}

	// Remember the reason so the final retry can report it.
	job.FailureReason = result.Reason
	if err := w.repo.Update(ctx, job); err != nil {
		slog.Warn("failed to record transient failure", "job_id", job.ID, "error", err)
	}
	return fmt.Errorf("pipeline %s at %s: %s", result.Reason, result.Stage, result.Error)
}

// uploadClips stores every clip under prefix. Objects already present from an
// earlier attempt are not uploaded again. On error, objects written by this
// call are removed.
func (w *clipWorker) uploadClips(ctx context.Context, prefix string, clips []model.OutputClip) ([]model.ClipRecord, error) {
	records := make([]model.ClipRecord, 0, len(clips))
	var written []string

	rollback := func() {
		for _, key := range written {
			if err := w.storage.Delete(ctx, key); err != nil {
				slog.Warn("failed to remove uploaded clip", "key", key, "error", err)
			}
		}
	}

	for _, clip := range clips {
		key := clipKey(prefix, clip.Path)

		exists, err := w.storage.Exists(ctx, key)
		if err != nil {
			rollback()
			return nil, fmt.Errorf("check %s: %w", key, err)
		}
		if !exists {
			if err := w.uploadFile(ctx, clip.Path, key); err != nil {
				rollback()
				return nil, err
			}
			written = append(written, key)
		}

		records = append(records, model.ClipRecord{
			Index:       clip.Window.Index,
			Start:       clip.Window.Start,
			End:         clip.Window.End,
			Category:    clip.Window.Category,
			Score:       clip.Window.Score,
			Captions:    clip.Window.Captions,
			ObjectKey:   key,
			Resolution:  clip.Resolution,
			Watermarked: clip.Watermarked,
			SizeBytes:   clip.SizeBytes,
		})
	}

	return records, nil
}

func (w *clipWorker) uploadFile(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	if err := w.storage.Upload(ctx, key, file, info.Size(), clipContentType); err != nil {
		return fmt.Errorf("storage upload %s: %w", key, err)
	}
	return nil
}

func (w *clipWorker) markFailed(ctx context.Context, job *model.ClipJob, reason model.RunFailure) error {
	if job.Status.IsTerminal() {
		return nil
	}
	if err := job.Fail(reason); err != nil {
		return fmt.Errorf("transition to failed: %w", err)
	}
	if err := w.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	slog.Info("clip job failed", "job_id", job.ID, "reason", reason)
	return nil
}

func (w *clipWorker) cleanup(workDir string) {
	_ = os.RemoveAll(workDir)
}

// ClipOutputKey is the object key prefix for a job's clips.
// Format: clips/{job_id}/
func ClipOutputKey(jobID uuid.UUID) string {
	return "clips/" + jobID.String() + "/"
}

// clipKey is the object key of a produced clip under prefix.
func clipKey(prefix, localPath string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + filepath.Base(localPath)
}
