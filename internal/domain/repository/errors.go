package repository

import "errors"

var (
	// ErrJobNotFound is returned when a clip job cannot be found.
	ErrJobNotFound = errors.New("clip job not found")

	// ErrDuplicateJob is returned when attempting to create a clip job that already exists.
	ErrDuplicateJob = errors.New("clip job already exists")

	// ErrObjectNotFound is returned when an object does not exist in storage.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)
