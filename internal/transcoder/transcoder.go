package transcoder

import (
	"context"

	"github.com/hszk-dev/clipstream/internal/domain/model"
)

// ClipRequest describes one clip encode.
type ClipRequest struct {
	// InputPath is the absolute path to the source media.
	InputPath string
	// OutputPath is where the encoded clip is written.
	OutputPath string
	// Start is the offset into the source in seconds.
	Start float64
	// Duration is the clip length in seconds.
	Duration float64
	// FilterChain is the validated -vf argument.
	FilterChain string
	// Spec supplies bitrates for the tier.
	Spec model.TierSpec
}

// Transcoder encodes a single clip.
// Implementations must not leave a partial file behind on failure.
type Transcoder interface {
	TranscodeClip(ctx context.Context, req ClipRequest) error
}
