package model

import "errors"

// RunStage is the position of a pipeline run in its state machine.
type RunStage string

const (
	StageStarting          RunStage = "STARTING"
	StageAcquiringMetadata RunStage = "ACQUIRING_METADATA"
	StageAcquiringMedia    RunStage = "ACQUIRING_MEDIA"
	StageSelectingWindows  RunStage = "SELECTING_WINDOWS"
	StageTranscoding       RunStage = "TRANSCODING"
	StageFinalizing        RunStage = "FINALIZING"
	StageCompleted         RunStage = "COMPLETED"
	StageFailed            RunStage = "FAILED"
)

// Valid stage transitions (strictly forward):
// STARTING -> ACQUIRING_METADATA -> ACQUIRING_MEDIA -> SELECTING_WINDOWS
//
//	-> TRANSCODING -> FINALIZING -> COMPLETED
//
// FAILED is reachable from every stage that can observe a fatal error.
var validStageTransitions = map[RunStage][]RunStage{
	StageStarting:          {StageAcquiringMetadata, StageFailed},
	StageAcquiringMetadata: {StageAcquiringMedia, StageFailed},
	StageAcquiringMedia:    {StageSelectingWindows, StageFailed},
	StageSelectingWindows:  {StageTranscoding, StageFailed},
	StageTranscoding:       {StageFinalizing, StageFailed},
	StageFinalizing:        {StageCompleted, StageFailed},
	StageCompleted:         {},
	StageFailed:            {},
}

// ErrInvalidStageTransition is returned when a run tries to move backwards or skip a stage.
var ErrInvalidStageTransition = errors.New("invalid pipeline stage transition")

func (s RunStage) CanTransitionTo(next RunStage) bool {
	for _, allowed := range validStageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s RunStage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

func (s RunStage) String() string {
	return string(s)
}

// RunFailure is the classified reason a pipeline run failed.
type RunFailure string

const (
	FailureNone                RunFailure = ""
	FailureInvalidReference    RunFailure = "invalid_reference"
	FailureInvalidTier         RunFailure = "invalid_tier"
	FailureInvalidRequest      RunFailure = "invalid_request"
	FailureUnavailable         RunFailure = "unavailable"
	FailureBlocked             RunFailure = "blocked"
	FailureStrategiesExhausted RunFailure = "strategies_exhausted"
	FailureNoClips             RunFailure = "no_clips"
	FailureCancelled           RunFailure = "cancelled"
	FailureInternal            RunFailure = "internal"
)

// IsTransient reports whether retrying the whole run later may succeed.
func (f RunFailure) IsTransient() bool {
	switch f {
	case FailureStrategiesExhausted, FailureCancelled, FailureInternal:
		return true
	default:
		return false
	}
}

// RunStatus is the externally visible outcome of a run.
type RunStatus string

const (
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// PipelineResult is the unit returned to callers of a pipeline run.
type PipelineResult struct {
	ResourceID ResourceID   `json:"resource_id,omitempty"`
	Status     RunStatus    `json:"status"`
	Stage      RunStage     `json:"stage"`
	Clips      []OutputClip `json:"clips"`
	Reason     RunFailure   `json:"reason,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Succeeded reports whether the run completed with at least one clip.
func (r *PipelineResult) Succeeded() bool {
	return r.Status == RunCompleted
}
