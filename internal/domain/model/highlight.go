package model

// Platform names a short-form destination that receives its own caption.
type Platform string

const (
	PlatformTikTok         Platform = "tiktok"
	PlatformYouTubeShorts  Platform = "youtube_shorts"
	PlatformInstagramReels Platform = "instagram_reels"
)

// Platforms lists every caption target in a stable order.
var Platforms = []Platform{PlatformTikTok, PlatformYouTubeShorts, PlatformInstagramReels}

// HighlightWindow is a candidate time range inside the source media.
type HighlightWindow struct {
	Index    int                 `json:"index"`
	Start    float64             `json:"start"`
	End      float64             `json:"end"`
	Category string              `json:"category"`
	Strategy string              `json:"strategy"`
	Score    float64             `json:"score"`
	Captions map[Platform]string `json:"captions"`
}

// Duration returns End - Start in seconds.
func (w HighlightWindow) Duration() float64 {
	return w.End - w.Start
}

// Overlaps reports whether w and other share any instant.
func (w HighlightWindow) Overlaps(other HighlightWindow) bool {
	return w.Start < other.End && other.Start < w.End
}
