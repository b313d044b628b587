package repository

import (
	"context"
	"io"
	"time"
)

// ObjectStorage defines the interface for storing finished clips.
// Implementations should be provided by the infrastructure layer (e.g., MinIO, S3).
type ObjectStorage interface {
	// GeneratePresignedDownloadURL creates a presigned URL for downloading an object.
	// The URL is valid for the specified duration.
	GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Upload stores an object of the given size (-1 if unknown).
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Delete removes an object from the storage.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists in the storage.
	Exists(ctx context.Context, key string) (bool, error)
}
