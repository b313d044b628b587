package repository

import (
	"context"

	"github.com/google/uuid"
)

// ClipTask represents a clip job message handed from the API to a worker.
type ClipTask struct {
	JobID      uuid.UUID `json:"job_id"`
	OutputKey  string    `json:"output_key"`
	RetryCount int       `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishClipTask sends a clip task to the queue.
	PublishClipTask(ctx context.Context, task ClipTask) error

	// ConsumeClipTasks consumes clip tasks until ctx is cancelled.
	// The handler function is called for each received task; a non-nil
	// error schedules a retry with an incremented RetryCount.
	ConsumeClipTasks(ctx context.Context, handler func(task ClipTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
