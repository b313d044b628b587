package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/domain/repository"
)

// CreateClipJobInput contains the input parameters for creating a clip job.
type CreateClipJobInput struct {
	Reference  string
	ClipLength int
	Tier       string
}

// ClipDownload pairs a clip record with a presigned download URL.
type ClipDownload struct {
	model.ClipRecord
	DownloadURL string
}

// ClipJobOutput is a job as returned to API callers.
type ClipJobOutput struct {
	Job       *model.ClipJob
	Downloads []ClipDownload
}

// ClipJobService defines the interface for clip job business logic operations.
type ClipJobService interface {
	// CreateJob validates the request, persists a PENDING job and enqueues it.
	CreateJob(ctx context.Context, input CreateClipJobInput) (*model.ClipJob, error)

	// GetJob retrieves a job; completed jobs carry presigned download URLs.
	GetJob(ctx context.Context, jobID uuid.UUID) (*ClipJobOutput, error)
}

// ClipJobServiceConfig holds configuration for ClipJobService.
type ClipJobServiceConfig struct {
	DownloadURLExpiry time.Duration
}

// DefaultClipJobServiceConfig returns the default configuration.
func DefaultClipJobServiceConfig() ClipJobServiceConfig {
	return ClipJobServiceConfig{
		DownloadURLExpiry: time.Hour,
	}
}

type clipJobService struct {
	repo    repository.ClipJobRepository
	storage repository.ObjectStorage
	queue   repository.MessageQueue

	downloadURLExpiry time.Duration
}

// NewClipJobService creates a new ClipJobService instance.
func NewClipJobService(
	repo repository.ClipJobRepository,
	storage repository.ObjectStorage,
	queue repository.MessageQueue,
	cfg ClipJobServiceConfig,
) ClipJobService {
	return &clipJobService{
		repo:              repo,
		storage:           storage,
		queue:             queue,
		downloadURLExpiry: cfg.DownloadURLExpiry,
	}
}

func (s *clipJobService) CreateJob(ctx context.Context, input CreateClipJobInput) (*model.ClipJob, error) {
	tier, err := model.ParseTier(input.Tier)
	if err != nil {
		return nil, err
	}

	job, err := model.NewClipJob(input.Reference, input.ClipLength, tier)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	task := repository.ClipTask{
		JobID:     job.ID,
		OutputKey: ClipOutputKey(job.ID),
	}
	if err := s.queue.PublishClipTask(ctx, task); err != nil {
		// Nothing will ever pick the job up; close it out.
		if failErr := job.Fail(model.FailureInternal); failErr == nil {
			if updErr := s.repo.Update(ctx, job); updErr != nil {
				slog.Error("failed to mark unqueued job as failed", "job_id", job.ID, "error", updErr)
			}
		}
		return nil, fmt.Errorf("publish clip task: %w", err)
	}

	return job, nil
}

func (s *clipJobService) GetJob(ctx context.Context, jobID uuid.UUID) (*ClipJobOutput, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	out := &ClipJobOutput{Job: job}
	if job.Status != model.StatusCompleted {
		return out, nil
	}

	out.Downloads = make([]ClipDownload, 0, len(job.Clips))
	for _, clip := range job.Clips {
		url, err := s.storage.GeneratePresignedDownloadURL(ctx, clip.ObjectKey, s.downloadURLExpiry)
		if err != nil {
			return nil, fmt.Errorf("generate download URL: %w", err)
		}
		out.Downloads = append(out.Downloads, ClipDownload{ClipRecord: clip, DownloadURL: url})
	}
	return out, nil
}
