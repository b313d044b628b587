package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/domain/repository"
	"github.com/hszk-dev/clipstream/internal/infrastructure/metrics"
)

const uniqueViolation = "23505"

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ClipJobRepository implements repository.ClipJobRepository using PostgreSQL.
type ClipJobRepository struct {
	db DBTX
}

// NewClipJobRepository creates a new ClipJobRepository instance.
func NewClipJobRepository(db DBTX) *ClipJobRepository {
	return &ClipJobRepository{db: db}
}

// Create persists a new clip job.
func (r *ClipJobRepository) Create(ctx context.Context, job *model.ClipJob) error {
	const query = `
		INSERT INTO clip_jobs (id, reference, resource_id, clip_length, tier, status, failure_reason, clips, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	clips, err := encodeClips(job.Clips)
	if err != nil {
		return err
	}

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableClipJobs).Inc()
	_, err = r.db.Exec(ctx, query,
		job.ID,
		job.Reference,
		string(job.ResourceID),
		job.ClipLength,
		job.Tier.String(),
		job.Status.String(),
		nullString(string(job.FailureReason)),
		clips,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicateJob
		}
		return fmt.Errorf("failed to create clip job: %w", err)
	}

	return nil
}

// GetByID retrieves a clip job by its unique identifier.
func (r *ClipJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ClipJob, error) {
	const query = `
		SELECT id, reference, resource_id, clip_length, tier, status, failure_reason, clips, created_at, updated_at
		FROM clip_jobs
		WHERE id = $1
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableClipJobs).Inc()

	var (
		job        model.ClipJob
		resourceID string
		tier       string
		status     string
		reason     *string
		clips      []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.Reference,
		&resourceID,
		&job.ClipLength,
		&tier,
		&status,
		&reason,
		&clips,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get clip job by ID: %w", err)
	}

	job.ResourceID = model.ResourceID(resourceID)
	job.Tier = model.Tier(tier)
	job.Status = model.Status(status)
	if reason != nil {
		job.FailureReason = model.RunFailure(*reason)
	}
	if len(clips) > 0 {
		if err := json.Unmarshal(clips, &job.Clips); err != nil {
			return nil, fmt.Errorf("failed to decode clip records: %w", err)
		}
	}

	return &job, nil
}

// Update persists status, failure reason and clip records.
func (r *ClipJobRepository) Update(ctx context.Context, job *model.ClipJob) error {
	const query = `
		UPDATE clip_jobs
		SET status = $2, failure_reason = $3, clips = $4, updated_at = $5
		WHERE id = $1
	`

	clips, err := encodeClips(job.Clips)
	if err != nil {
		return err
	}

	job.UpdatedAt = time.Now()

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableClipJobs).Inc()
	tag, err := r.db.Exec(ctx, query,
		job.ID,
		job.Status.String(),
		nullString(string(job.FailureReason)),
		clips,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update clip job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrJobNotFound
	}

	return nil
}

// encodeClips stores a nil slice as an empty JSON array.
func encodeClips(clips []model.ClipRecord) ([]byte, error) {
	if clips == nil {
		clips = []model.ClipRecord{}
	}
	data, err := json.Marshal(clips)
	if err != nil {
		return nil, fmt.Errorf("failed to encode clip records: %w", err)
	}
	return data, nil
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that ClipJobRepository implements repository.ClipJobRepository.
var _ repository.ClipJobRepository = (*ClipJobRepository)(nil)
