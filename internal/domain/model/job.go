package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of a clip job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Valid status transitions:
// PENDING -> PROCESSING -> COMPLETED
//
//	\            \-> FAILED
//	 \-> FAILED
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) CanTransitionTo(next Status) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// ClipRecord is the persisted descriptor of one delivered clip.
type ClipRecord struct {
	Index       int                 `json:"index"`
	Start       float64             `json:"start"`
	End         float64             `json:"end"`
	Category    string              `json:"category"`
	Score       float64             `json:"score"`
	Captions    map[Platform]string `json:"captions"`
	ObjectKey   string              `json:"object_key"`
	Resolution  string              `json:"resolution"`
	Watermarked bool                `json:"watermarked"`
	SizeBytes   int64               `json:"size_bytes"`
}

// ClipJob is a request to turn one reference into highlight clips.
type ClipJob struct {
	ID            uuid.UUID
	Reference     string
	ResourceID    ResourceID
	ClipLength    int
	Tier          Tier
	Status        Status
	FailureReason RunFailure
	Clips         []ClipRecord
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidClipLength = errors.New("clip length out of range for tier")
)

// NewClipJob validates the request and creates a PENDING job.
func NewClipJob(reference string, clipLength int, tier Tier) (*ClipJob, error) {
	id, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}
	spec, ok := tier.Spec()
	if !ok {
		return nil, ErrInvalidTier
	}
	if clipLength < 1 || float64(clipLength) > spec.MaxClipSeconds {
		return nil, ErrInvalidClipLength
	}

	now := time.Now()
	return &ClipJob{
		ID:         uuid.New(),
		Reference:  reference,
		ResourceID: id,
		ClipLength: clipLength,
		Tier:       tier,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// TransitionTo attempts to change the job status.
// Returns error if the transition is not allowed.
func (j *ClipJob) TransitionTo(next Status) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !j.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	j.Status = next
	j.UpdatedAt = time.Now()
	return nil
}

// Complete records the delivered clips and moves the job to COMPLETED.
func (j *ClipJob) Complete(clips []ClipRecord) error {
	if err := j.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	j.Clips = clips
	j.FailureReason = FailureNone
	return nil
}

// Fail records the reason and moves the job to FAILED.
func (j *ClipJob) Fail(reason RunFailure) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.FailureReason = reason
	return nil
}
