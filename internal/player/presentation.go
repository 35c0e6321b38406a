package player

import "time"

// NarrowWidth is the viewport width below which the platform's own controls are used
const NarrowWidth = 768

const (
	AutoHideDelay      = 3000 * time.Millisecond
	SkipIndicatorTTL   = 800 * time.Millisecond
	VolumeIndicatorTTL = 1000 * time.Millisecond

	SkipStep   = 10.0 // seconds
	VolumeStep = 0.1
)

// RatePresets are the playback rates offered in the speed menu
var RatePresets = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

// Viewport describes the display the player is presented on
type Viewport struct {
	Width       int
	Touch       bool
	NarrowWidth int // 0 means NarrowWidth
}

// Presentation selects who draws the playback controls
type Presentation int

const (
	// PresentationCustom draws the controller's own controls and handles shortcuts
	PresentationCustom Presentation = iota
	// PresentationNative defers to the surface's built-in controls
	PresentationNative
)

func (p Presentation) String() string {
	if p == PresentationNative {
		return "native"
	}
	return "custom"
}

// Presentation returns the presentation for v. An unknown width (0) counts as wide
func (v Viewport) Presentation() Presentation {
	threshold := v.NarrowWidth
	if threshold <= 0 {
		threshold = NarrowWidth
	}
	if v.Touch || (v.Width > 0 && v.Width < threshold) {
		return PresentationNative
	}
	return PresentationCustom
}

// Menu is a secondary control menu. While one is open controls stay visible
type Menu int

const (
	MenuNone Menu = iota
	MenuVolume
	MenuSpeed
)

// IndicatorKind identifies a transient on-screen indicator
type IndicatorKind int

const (
	IndicatorSkip IndicatorKind = iota
	IndicatorVolume
)

// Indicator is a transient overlay, e.g. "+10s" after a skip
type Indicator struct {
	Kind  IndicatorKind
	Value float64 // skip delta in seconds, or volume in [0,1]
}
