package player

import (
	"context"
	"net/url"
	"strings"
)

// ManifestExt marks a URL as an adaptive stream manifest
const ManifestExt = ".m3u8"

// AdaptiveEventKind identifies an adaptive session event
type AdaptiveEventKind int

const (
	AdaptiveManifestParsed AdaptiveEventKind = iota
	AdaptiveError
)

// AdaptiveEvent is reported by an adaptive session
type AdaptiveEvent struct {
	Kind     AdaptiveEventKind
	Duration float64 // ManifestParsed: total duration in seconds, 0 for live
	URL      string  // ManifestParsed: the stream to bind to the surface

	// AdaptiveError only
	Fatal    bool
	Category ErrorCategory
	Err      error
}

// AdaptiveEngine creates adaptive streaming sessions
type AdaptiveEngine interface {
	// Supported reports whether the engine can run in this environment
	Supported() bool

	// NewSession starts loading manifestURL and reports the selected stream
	// in a ManifestParsed event; the session never drives the surface itself.
	// onEvent may be called from any goroutine, but not before NewSession has
	// returned
	NewSession(ctx context.Context, manifestURL string, onEvent func(AdaptiveEvent)) (AdaptiveSession, error)
}

// AdaptiveSession is one running adaptive stream
type AdaptiveSession interface {
	// Destroy stops the session without waiting for in-flight work to
	// drain. An event already being delivered may still arrive afterwards
	Destroy()
}

// IsManifestURL reports whether rawURL's path ends in the manifest extension.
// The query string and case are ignored
func IsManifestURL(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		path = rawURL[:i]
	}
	return strings.HasSuffix(strings.ToLower(path), ManifestExt)
}

// IsAdaptive reports whether src should go through the adaptive engine: the
// caller must flag it and the URL must point at a manifest
func IsAdaptive(src Source) bool {
	return src.Adaptive && IsManifestURL(src.URL)
}
