package hotspot

import (
	"fmt"
	"strings"

	"github.com/hszk-dev/clipstream/internal/domain/model"
)

var captionTemplates = map[model.Platform][]string{
	model.PlatformTikTok: {
		"Wait for the %s 👀 #%d",
		"POV: you found the %s #fyp",
		"This %s though… part %d",
	},
	model.PlatformYouTubeShorts: {
		"The %s you didn't see coming | Clip %d",
		"Best %s moment #shorts",
		"%s in under a minute (%d)",
	},
	model.PlatformInstagramReels: {
		"Save this %s for later ✨",
		"The %s everyone is talking about, part %d",
		"Tag someone who needs this %s",
	},
}

var categoryLabels = map[string]string{
	"hook":     "opening hook",
	"build_up": "build-up",
	"peak":     "peak moment",
	"quote":    "quote",
	"turn":     "plot twist",
	"climax":   "ending",
	"full":     "highlight",
}

// captionsFor renders one caption per platform for a window.
// The template is chosen from the category and the window index.
func captionsFor(category string, index int) map[model.Platform]string {
	label, ok := categoryLabels[category]
	if !ok {
		label = strings.ReplaceAll(category, "_", " ")
	}

	out := make(map[model.Platform]string, len(model.Platforms))
	for _, p := range model.Platforms {
		templates := captionTemplates[p]
		tmpl := templates[(index+len(category))%len(templates)]
		out[p] = render(tmpl, label, index+1)
	}
	return out
}

// render fills a template that takes a label and optionally a part number.
func render(tmpl, label string, part int) string {
	if strings.Count(tmpl, "%") == 2 {
		return fmt.Sprintf(tmpl, label, part)
	}
	return fmt.Sprintf(tmpl, label)
}
