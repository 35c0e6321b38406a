package player

// State is the playback lifecycle state. Buffering is tracked separately
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
	StateError
)

var stateNames = [...]string{
	StateIdle:    "idle",
	StateLoading: "loading",
	StateReady:   "ready",
	StatePlaying: "playing",
	StatePaused:  "paused",
	StateEnded:   "ended",
	StateError:   "error",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Source describes what to play
type Source struct {
	URL      string
	Adaptive bool    // caller flag; only honoured for manifest URLs
	ResumeAt float64 // seconds, applied once on the first Ready
}

// Session is a snapshot of a controller
type Session struct {
	ID          string
	SourceURL   string
	Adaptive    bool // the adaptive engine drives the surface
	State       State
	Buffering   bool
	CurrentTime float64
	Duration    float64
	BufferedEnd float64
	Volume      float64
	Muted       bool
	Rate        float64
	Fullscreen  bool
	Err         *PlaybackError

	Presentation    Presentation
	ControlsVisible bool
	Menu            Menu
	Notice          string // dismissible, e.g. a fullscreen failure
	Skip            *Indicator
	VolumeLevel     *Indicator
}

// Progress returns CurrentTime/Duration in [0,1], or 0 if the duration is unknown
func (s Session) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	p := s.CurrentTime / s.Duration
	return max(0, min(1, p))
}
