package acquisition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hszk-dev/clipstream/internal/domain/model"
)

var (
	// ErrBlocked is a terminal refusal such as a geo restriction.
	ErrBlocked = errors.New("media blocked")

	// ErrUnavailable is a terminal absence: private, removed or age gated media.
	ErrUnavailable = errors.New("media unavailable")

	// ErrRateLimited is a transient throttling response.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransport is any other transient failure.
	ErrTransport = errors.New("transport error")

	// ErrAllStrategiesExhausted is returned after every strategy failed transiently.
	ErrAllStrategiesExhausted = errors.New("all acquisition strategies exhausted")

	// ErrInvalidRequest is returned for a request that cannot be attempted.
	ErrInvalidRequest = errors.New("invalid acquisition request")

	// ErrNoStrategies is returned when a chain is built without strategies.
	ErrNoStrategies = errors.New("no acquisition strategies configured")
)

func sentinelFor(reason model.FailureReason) error {
	switch reason {
	case model.ReasonBlocked:
		return ErrBlocked
	case model.ReasonUnavailable:
		return ErrUnavailable
	case model.ReasonRateLimited:
		return ErrRateLimited
	default:
		return ErrTransport
	}
}

// ToolError carries the exit status and error text of a failed subprocess.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, msg)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// AttemptError is one classified attempt failure.
// It matches the sentinel of its reason with errors.Is.
type AttemptError struct {
	Strategy string
	Reason   model.FailureReason
	Terminal bool
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("strategy %s: %s: %v", e.Strategy, e.Reason, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

func (e *AttemptError) Is(target error) bool {
	return target == sentinelFor(e.Reason)
}

// ExhaustedError is returned when every strategy failed transiently.
// It matches ErrAllStrategiesExhausted with errors.Is.
type ExhaustedError struct {
	LastReason model.FailureReason
	Attempts   int
	History    []model.AcquisitionAttempt
	Last       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts (last reason: %s)", ErrAllStrategiesExhausted, e.Attempts, e.LastReason)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllStrategiesExhausted
}
