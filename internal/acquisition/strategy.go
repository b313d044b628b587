// Package acquisition fetches metadata and media for a resource through an
// ordered chain of client identities, rotating away from identities that get
// rate limited and honoring the process-wide cooldown.
package acquisition

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hszk-dev/clipstream/internal/domain/model"
)

// IPFamily pins the address family used for an attempt.
type IPFamily string

const (
	IPAny IPFamily = ""
	IPv4  IPFamily = "4"
	IPv6  IPFamily = "6"
)

// Strategy is one fabricated client identity used for one attempt.
type Strategy struct {
	Name           string
	UserAgent      string
	PlayerClient   string
	AcceptLanguage string
	IPFamily       IPFamily
}

// DefaultStrategies returns the production identity profiles in preference order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:           "desktop_web",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			PlayerClient:   "web",
			AcceptLanguage: "en-US,en;q=0.9",
			IPFamily:       IPv4,
		},
		{
			Name:           "android_app",
			UserAgent:      "com.google.android.youtube/19.09.37 (Linux; U; Android 14) gzip",
			PlayerClient:   "android",
			AcceptLanguage: "en-GB,en;q=0.8",
			IPFamily:       IPv4,
		},
		{
			Name:           "ios_app",
			UserAgent:      "com.google.ios.youtube/19.09.3 (iPhone16,2; U; CPU iOS 17_4 like Mac OS X)",
			PlayerClient:   "ios",
			AcceptLanguage: "en-US,en;q=0.7",
			IPFamily:       IPv6,
		},
		{
			Name:           "mobile_web",
			UserAgent:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
			PlayerClient:   "mweb",
			AcceptLanguage: "de-DE,de;q=0.9,en;q=0.6",
			IPFamily:       IPAny,
		},
		{
			Name:           "tv_embedded",
			UserAgent:      "Mozilla/5.0 (SMART-TV; Linux; Tizen 6.0) AppleWebKit/538.1 (KHTML, like Gecko) Version/6.0 TV Safari/538.1",
			PlayerClient:   "tv_embedded",
			AcceptLanguage: "en-US",
			IPFamily:       IPAny,
		},
	}
}

// FilterStrategies returns the subset of all whose names appear in names,
// in the order given by names. Unknown names are ignored.
// An empty names list returns all unchanged.
func FilterStrategies(all []Strategy, names []string) []Strategy {
	if len(names) == 0 {
		return all
	}
	byName := make(map[string]Strategy, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	var out []Strategy
	for _, n := range names {
		if s, ok := byName[strings.TrimSpace(n)]; ok {
			out = append(out, s)
		}
	}
	return out
}

// AcquireRequest describes what to acquire and where to put it.
type AcquireRequest struct {
	ResourceID model.ResourceID
	Kind       model.MediaKind
	OutputDir  string
}

// OutputBase returns the path prefix every file of an attempt starts with.
func (r AcquireRequest) OutputBase() string {
	return filepath.Join(r.OutputDir, string(r.ResourceID)+"."+string(r.Kind))
}

// MediaAcquirer performs a single attempt with a single strategy.
type MediaAcquirer interface {
	AcquireWith(ctx context.Context, req AcquireRequest, s Strategy) (*model.MediaAsset, error)
}
