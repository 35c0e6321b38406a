package player

// EventType identifies a media surface event
type EventType int

const (
	EventCanPlay        EventType = iota // enough data loaded to start playback
	EventTimeUpdate                      // playback position changed
	EventDurationChange                  // media duration became known or changed
	EventPlaying                         // playback started or resumed
	EventPause                           // playback paused
	EventWaiting                         // playback stalled on data
	EventCanPlayThrough                  // enough data buffered to continue after a stall
	EventProgress                        // buffered range grew
	EventEnded                           // end of media reached
	EventError                           // the surface failed to play the media
)

var eventNames = [...]string{
	EventCanPlay:        "canplay",
	EventTimeUpdate:     "timeupdate",
	EventDurationChange: "durationchange",
	EventPlaying:        "playing",
	EventPause:          "pause",
	EventWaiting:        "waiting",
	EventCanPlayThrough: "canplaythrough",
	EventProgress:       "progress",
	EventEnded:          "ended",
	EventError:          "error",
}

func (t EventType) String() string {
	if int(t) >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// MediaEvent is delivered to surface subscribers. Fields not relevant to the
// event type are zero
type MediaEvent struct {
	Type        EventType
	Time        float64 // seconds
	Duration    float64 // seconds, 0 if unknown
	BufferedEnd float64 // seconds
	Err         error   // EventError only; a *PlaybackError carries the category
}

// HLSMimeType is the content type checked when the adaptive engine is unavailable
const HLSMimeType = "application/vnd.apple.mpegurl"

// Surface is the media element a Controller drives.
//
// Implementations must be safe for concurrent use. Handlers may run on any
// goroutine but never from inside a Surface method call
type Surface interface {
	Load(url string) error
	Unload() error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(volume float64) error
	SetMuted(muted bool) error
	SetRate(rate float64) error

	// CanPlayNative reports whether the surface can play mimeType without help
	CanPlayNative(mimeType string) bool

	// Subscribe registers fn for events of type t and returns its release function
	Subscribe(t EventType, fn func(MediaEvent)) (unsubscribe func())
}
