package model

import "time"

// MediaKind selects what an acquisition produces.
type MediaKind string

const (
	KindMetadata MediaKind = "metadata"
	KindAudio    MediaKind = "audio"
	KindVideo    MediaKind = "video"
)

func (k MediaKind) IsValid() bool {
	switch k {
	case KindMetadata, KindAudio, KindVideo:
		return true
	default:
		return false
	}
}

func (k MediaKind) String() string {
	return string(k)
}

// MediaAsset is a local handle to acquired media.
// Metadata assets carry no Path.
type MediaAsset struct {
	ResourceID      ResourceID `json:"resource_id"`
	Kind            MediaKind  `json:"kind"`
	Path            string     `json:"path,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`
	SizeBytes       int64      `json:"size_bytes"`
	Container       string     `json:"container,omitempty"`
	Title           string     `json:"title,omitempty"`
	Strategy        string     `json:"strategy,omitempty"`
}

// AttemptOutcome is the result class of one acquisition attempt.
type AttemptOutcome string

const (
	OutcomeSuccess AttemptOutcome = "success"
	OutcomeFailure AttemptOutcome = "failure"
	OutcomeTimeout AttemptOutcome = "timeout"
)

// FailureReason classifies why an attempt failed.
type FailureReason string

const (
	ReasonNone        FailureReason = ""
	ReasonBlocked     FailureReason = "blocked"
	ReasonRateLimited FailureReason = "rate_limited"
	ReasonUnavailable FailureReason = "unavailable"
	ReasonTransport   FailureReason = "transport"
)

func (r FailureReason) String() string {
	if r == ReasonNone {
		return "none"
	}
	return string(r)
}

// AcquisitionAttempt records one try of one strategy.
type AcquisitionAttempt struct {
	Strategy  string
	Kind      MediaKind
	StartedAt time.Time
	Duration  time.Duration
	Outcome   AttemptOutcome
	Reason    FailureReason
	Terminal  bool
}
