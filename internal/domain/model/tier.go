package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTier is returned for an unknown service tier name.
var ErrInvalidTier = errors.New("invalid service tier")

// Tier is a named service level.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// TierSpec is the output policy mandated for a tier.
type TierSpec struct {
	Tier           Tier
	Width          int
	Height         int
	VideoBitrate   int // bits per second
	AudioBitrate   int // bits per second
	MaxClipSeconds float64
	Watermark      bool
}

// Resolution returns the target frame size as "WxH".
func (s TierSpec) Resolution() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// tierTable is static; output geometry is never computed from the source.
var tierTable = map[Tier]TierSpec{
	TierStandard: {
		Tier:           TierStandard,
		Width:          720,
		Height:         1280,
		VideoBitrate:   2_500_000,
		AudioBitrate:   128_000,
		MaxClipSeconds: 60,
		Watermark:      true,
	},
	TierPremium: {
		Tier:           TierPremium,
		Width:          1080,
		Height:         1920,
		VideoBitrate:   6_000_000,
		AudioBitrate:   192_000,
		MaxClipSeconds: 90,
		Watermark:      false,
	},
}

// ParseTier resolves a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierTable[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	return t, nil
}

func (t Tier) IsValid() bool {
	_, ok := tierTable[t]
	return ok
}

// Spec returns the output policy for t. Unknown tiers yield ok=false.
func (t Tier) Spec() (TierSpec, bool) {
	spec, ok := tierTable[t]
	return spec, ok
}

func (t Tier) String() string {
	return string(t)
}
