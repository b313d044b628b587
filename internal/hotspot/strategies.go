package hotspot

// Strategy is a named rule for where in the media a highlight tends to sit.
// Ranges are fractions of the media duration.
type Strategy struct {
	Name      string
	Category  string
	StartFrac float64
	EndFrac   float64
	Weight    float64
}

// Library is the fixed strategy set, in canonical order.
var Library = []Strategy{
	{Name: "early_hook", Category: "hook", StartFrac: 0.00, EndFrac: 0.20, Weight: 0.82},
	{Name: "rising_action", Category: "build_up", StartFrac: 0.15, EndFrac: 0.35, Weight: 0.74},
	{Name: "mid_peak", Category: "peak", StartFrac: 0.30, EndFrac: 0.60, Weight: 0.88},
	{Name: "quotable_moment", Category: "quote", StartFrac: 0.40, EndFrac: 0.55, Weight: 0.79},
	{Name: "second_act", Category: "turn", StartFrac: 0.55, EndFrac: 0.75, Weight: 0.71},
	{Name: "climax", Category: "climax", StartFrac: 0.75, EndFrac: 0.90, Weight: 0.90},
}

// fullStrategy is used when no library entry fits the media.
var fullStrategy = Strategy{Name: "full", Category: "full", StartFrac: 0, EndFrac: 1, Weight: 0.5}

// bounds returns the strategy range in seconds.
func (s Strategy) bounds(duration float64) (float64, float64) {
	return s.StartFrac * duration, s.EndFrac * duration
}

// disjoint reports whether the ranges of s and o share no instant.
func (s Strategy) disjoint(o Strategy) bool {
	return s.EndFrac <= o.StartFrac || o.EndFrac <= s.StartFrac
}
