package model

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidReference is returned when no resource id can be extracted from a reference.
var ErrInvalidReference = errors.New("invalid video reference")

// ResourceID is the stable identifier of a remote video.
type ResourceID string

func (id ResourceID) String() string {
	return string(id)
}

var resourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var watchHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
}

// pathPrefixes lists URL path forms that carry the id as the next segment.
var pathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// ParseReference extracts a ResourceID from a video URL or a bare id.
func ParseReference(raw string) (ResourceID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidReference
	}

	if resourceIDPattern.MatchString(raw) {
		return ResourceID(raw), nil
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidReference
	}

	host := strings.ToLower(u.Hostname())
	var candidate string

	switch {
	case host == "youtu.be":
		candidate = firstSegment(strings.TrimPrefix(u.Path, "/"))
	case watchHosts[host]:
		if u.Path == "/watch" {
			candidate = u.Query().Get("v")
			break
		}
		for _, prefix := range pathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				candidate = firstSegment(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	default:
		return "", ErrInvalidReference
	}

	if !resourceIDPattern.MatchString(candidate) {
		return "", ErrInvalidReference
	}
	return ResourceID(candidate), nil
}

// CanonicalURL returns the watch URL for id under baseURL.
func CanonicalURL(baseURL string, id ResourceID) string {
	return strings.TrimRight(baseURL, "/") + "/watch?v=" + id.String()
}

func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
