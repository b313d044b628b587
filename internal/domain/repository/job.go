package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/clipstream/internal/domain/model"
)

// ClipJobRepository defines the interface for clip job persistence.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type ClipJobRepository interface {
	// Create persists a new clip job.
	// Returns ErrDuplicateJob if a job with the same ID already exists.
	Create(ctx context.Context, job *model.ClipJob) error

	// GetByID retrieves a clip job by its unique identifier.
	// Returns nil and ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.ClipJob, error)

	// Update persists status, failure reason and clip records of an existing job.
	// Returns ErrJobNotFound if the job does not exist.
	Update(ctx context.Context, job *model.ClipJob) error
}
