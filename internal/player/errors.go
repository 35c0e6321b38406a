package player

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/reel/internal/domain"
)

// ErrorCategory classifies a playback failure
type ErrorCategory string

const (
	CategoryNetwork     ErrorCategory = "network"
	CategoryDecode      ErrorCategory = "decode"
	CategoryUnsupported ErrorCategory = "unsupported"
)

var categoryMessages = map[ErrorCategory]string{
	CategoryNetwork:     "The video could not be loaded. Check your connection and retry.",
	CategoryDecode:      "The video could not be decoded.",
	CategoryUnsupported: "This video format is not supported on this device.",
}

// PlaybackError is a fatal playback failure
type PlaybackError struct {
	Category ErrorCategory
	Message  string // shown to the user
	Err      error
}

// NewPlaybackError builds an error with the default message for category
func NewPlaybackError(category ErrorCategory, err error) *PlaybackError {
	return &PlaybackError{Category: category, Message: categoryMessages[category], Err: err}
}

func (e *PlaybackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s error", e.Category)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// asPlaybackError categorizes err, defaulting to fallback
func asPlaybackError(err error, fallback ErrorCategory) *PlaybackError {
	var pe *PlaybackError
	if errors.As(err, &pe) {
		out := *pe
		if out.Message == "" {
			out.Message = categoryMessages[out.Category]
		}
		return &out
	}
	if errors.Is(err, domain.ErrUnsupportedFormat) {
		return NewPlaybackError(CategoryUnsupported, err)
	}
	return NewPlaybackError(fallback, err)
}

// FullscreenError is returned when every fullscreen method failed
type FullscreenError struct {
	Attempts map[string]error // provider name -> failure
	order    []string
}

func (e *FullscreenError) Error() string {
	var parts []string
	for _, name := range e.order {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Attempts[name]))
	}
	if len(parts) == 0 {
		return domain.ErrFullscreenUnavailable.Error() + ": no providers"
	}
	return domain.ErrFullscreenUnavailable.Error() + ": " + strings.Join(parts, "; ")
}

func (e *FullscreenError) Unwrap() error { return domain.ErrFullscreenUnavailable }

func (e *FullscreenError) add(name string, err error) {
	if e.Attempts == nil {
		e.Attempts = make(map[string]error)
	}
	e.Attempts[name] = err
	e.order = append(e.order, name)
}

var errNoMethod = errors.New("method not supported")
