package transcoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hszk-dev/clipstream/internal/domain/model"
)

// ErrValidationFailed is returned when a filter chain would not produce a
// crop-to-fill frame at the tier resolution.
var ErrValidationFailed = errors.New("filter chain validation failed")

// DefaultWatermarkText is drawn on tiers that require a watermark.
const DefaultWatermarkText = "clipstream"

// Filter is one ffmpeg video filter.
type Filter struct {
	Name string
	Args string
}

func (f Filter) String() string {
	if f.Args == "" {
		return f.Name
	}
	return f.Name + "=" + f.Args
}

// FilterChain is an ordered -vf filter graph without branches.
type FilterChain []Filter

// String renders the chain as an ffmpeg -vf argument.
func (c FilterChain) String() string {
	parts := make([]string, len(c))
	for i, f := range c {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}

// ParseChain splits a -vf argument into filters. Escaped commas stay inside a filter.
func ParseChain(s string) FilterChain {
	var (
		chain FilterChain
		cur   strings.Builder
	)
	flush := func() {
		part := strings.TrimSpace(cur.String())
		cur.Reset()
		if part == "" {
			return
		}
		name, args, _ := strings.Cut(part, "=")
		chain = append(chain, Filter{Name: strings.TrimSpace(name), Args: args})
	}

	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			cur.WriteByte(s[i])
			cur.WriteByte(s[i+1])
			i++
		case s[i] == ',':
			flush()
		default:
			cur.WriteByte(s[i])
		}
	}
	flush()
	return chain
}

// ScaleIncrease scales so both dimensions meet or exceed the target.
func ScaleIncrease(w, h int) Filter {
	return Filter{Name: "scale", Args: fmt.Sprintf("%d:%d:force_original_aspect_ratio=increase", w, h)}
}

// CenterCrop crops the center of the frame to exactly w by h.
func CenterCrop(w, h int) Filter {
	return Filter{Name: "crop", Args: fmt.Sprintf("%d:%d:(iw-%d)/2:(ih-%d)/2", w, h, w, h)}
}

// SquarePixels normalizes the sample aspect ratio.
func SquarePixels() Filter {
	return Filter{Name: "setsar", Args: "1"}
}

// Watermark draws text in the lower right corner.
func Watermark(text string) Filter {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `,`, `\,`).Replace(text)
	return Filter{
		Name: "drawtext",
		Args: fmt.Sprintf("text='%s':fontcolor=white@0.6:fontsize=h/28:x=w-tw-24:y=h-th-48", escaped),
	}
}

// CanonicalChain is the known-correct chain for a tier.
func CanonicalChain(spec model.TierSpec, watermarkText string) FilterChain {
	chain := FilterChain{
		ScaleIncrease(spec.Width, spec.Height),
		CenterCrop(spec.Width, spec.Height),
		SquarePixels(),
	}
	if spec.Watermark {
		if watermarkText == "" {
			watermarkText = DefaultWatermarkText
		}
		chain = append(chain, Watermark(watermarkText))
	}
	return chain
}

// ValidationError lists every rule a chain broke.
type ValidationError struct {
	Tier       model.Tier
	Chain      string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v for tier %s: %s", ErrValidationFailed, e.Tier, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// frameNeutral filters never change the frame size or aspect.
var frameNeutral = map[string]bool{
	"drawtext": true,
	"setsar":   true,
	"format":   true,
	"fps":      true,
	"eq":       true,
}

// Validate statically checks that c fills the tier frame without letterboxing:
// one increase scale, then one exact crop to the tier size, then setsar=1,
// with nothing after setsar but a watermark. A pad, a decrease scale, any
// other scale or crop, and unknown filters are rejected. A watermark must be
// present exactly when the tier requires one.
func (c FilterChain) Validate(spec model.TierSpec) error {
	var violations []string

	scaleAt, cropAt, sarAt := -1, -1, -1
	hasWatermark := false

	for i, f := range c {
		if sarAt >= 0 && f.Name != "drawtext" {
			violations = append(violations, fmt.Sprintf("filter %d: %s after setsar changes the frame", i, f))
			continue
		}

		switch f.Name {
		case "pad":
			violations = append(violations, fmt.Sprintf("filter %d: pad is not allowed", i))
		case "scale":
			switch {
			case strings.Contains(f.Args, "force_original_aspect_ratio=decrease"):
				violations = append(violations, fmt.Sprintf("filter %d: decrease scale letterboxes", i))
			case scaleAt < 0 && isIncreaseScale(f.Args, spec):
				scaleAt = i
			default:
				violations = append(violations, fmt.Sprintf("filter %d: %s resizes the frame", i, f))
			}
		case "crop":
			if scaleAt >= 0 && cropAt < 0 && dimensionsMatch(f.Args, spec) {
				cropAt = i
			} else {
				violations = append(violations, fmt.Sprintf("filter %d: %s resizes the frame", i, f))
			}
		case "setsar":
			switch {
			case !isSquare(f.Args):
				violations = append(violations, fmt.Sprintf("filter %d: %s is not square", i, f))
			case cropAt >= 0:
				sarAt = i
			}
		case "drawtext":
			hasWatermark = true
		default:
			if !frameNeutral[f.Name] {
				violations = append(violations, fmt.Sprintf("filter %d: %s is not allowed", i, f.Name))
			}
		}
	}

	if scaleAt < 0 {
		violations = append(violations, fmt.Sprintf("missing scale=%d:%d:force_original_aspect_ratio=increase", spec.Width, spec.Height))
	}
	if cropAt < 0 {
		violations = append(violations, fmt.Sprintf("missing crop to %dx%d after scale", spec.Width, spec.Height))
	}
	if sarAt < 0 {
		violations = append(violations, "missing setsar=1 after crop")
	}
	if spec.Watermark && !hasWatermark {
		violations = append(violations, "tier requires a watermark")
	}
	if !spec.Watermark && hasWatermark {
		violations = append(violations, "tier forbids a watermark")
	}

	if len(violations) > 0 {
		return &ValidationError{Tier: spec.Tier, Chain: c.String(), Violations: violations}
	}
	return nil
}

func isIncreaseScale(args string, spec model.TierSpec) bool {
	return dimensionsMatch(args, spec) && strings.Contains(args, "force_original_aspect_ratio=increase")
}

// dimensionsMatch reports whether the first two positional args are the tier size.
func dimensionsMatch(args string, spec model.TierSpec) bool {
	parts := strings.Split(args, ":")
	if len(parts) < 2 {
		return false
	}
	w, errW := strconv.Atoi(strings.TrimPrefix(parts[0], "w="))
	h, errH := strconv.Atoi(strings.TrimPrefix(parts[1], "h="))
	return errW == nil && errH == nil && w == spec.Width && h == spec.Height
}

func isSquare(args string) bool {
	switch strings.TrimSpace(args) {
	case "1", "1/1", "1:1", "sar=1", "sar=1/1":
		return true
	}
	return false
}
