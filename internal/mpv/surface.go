package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/reel/internal/player"
)

const defaultCommandTimeout = 5 * time.Second

// observed properties, keyed by observer id
var observed = []string{
	"time-pos",
	"duration",
	"pause",
	"paused-for-cache",
	"demuxer-cache-time",
}

// SurfaceOptions configures a Surface
type SurfaceOptions struct {
	CommandTimeout time.Duration
	Logger         *slog.Logger
}

// Surface implements player.Surface on top of an mpv IPC connection
type Surface struct {
	conn    *Conn
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	handlers map[player.EventType]map[int]func(player.MediaEvent)
	nextID   int
	duration float64
	paused   bool
	loaded   bool
}

var _ player.Surface = (*Surface)(nil)

// NewSurface wraps an established IPC stream and subscribes to the
// properties the player needs
func NewSurface(ctx context.Context, rw io.ReadWriteCloser, opts SurfaceOptions) (*Surface, error) {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Surface{
		timeout:  opts.CommandTimeout,
		logger:   opts.Logger,
		handlers: make(map[player.EventType]map[int]func(player.MediaEvent)),
		paused:   true,
	}
	s.conn = NewConn(rw, s.handleEvent, opts.Logger)

	for i, name := range observed {
		if _, err := s.conn.Command(ctx, "observe_property", i+1, name); err != nil {
			_ = s.conn.Close()
			return nil, fmt.Errorf("failed to observe %s: %w", name, err)
		}
	}
	return s, nil
}

// DialSurface connects to the IPC socket at path
func DialSurface(ctx context.Context, path string, opts SurfaceOptions) (*Surface, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mpv socket: %w", err)
	}
	return NewSurface(ctx, conn, opts)
}

// Conn returns the underlying IPC connection
func (s *Surface) Conn() *Conn { return s.conn }

// Close closes the IPC connection
func (s *Surface) Close() error { return s.conn.Close() }

func (s *Surface) Load(url string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	s.mu.Lock()
	s.loaded = false
	s.duration = 0
	s.mu.Unlock()

	// Files start paused; the controller decides when to play
	if err := s.conn.SetProperty(ctx, "pause", true); err != nil {
		return err
	}
	_, err := s.conn.Command(ctx, "loadfile", url, "replace")
	return err
}

func (s *Surface) Unload() error {
	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.conn.Command(ctx, "stop")
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (s *Surface) Play() error  { return s.set("pause", false) }
func (s *Surface) Pause() error { return s.set("pause", true) }

func (s *Surface) Seek(seconds float64) error {
	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.conn.Command(ctx, "seek", seconds, "absolute")
	return err
}

// SetVolume maps [0,1] onto mpv's 0-100 scale
func (s *Surface) SetVolume(volume float64) error { return s.set("volume", volume*100) }

func (s *Surface) SetMuted(muted bool) error { return s.set("mute", muted) }

func (s *Surface) SetRate(rate float64) error { return s.set("speed", rate) }

// CanPlayNative reports true for video and HLS types; mpv demuxes HLS itself
func (s *Surface) CanPlayNative(mimeType string) bool {
	mt := strings.ToLower(mimeType)
	return strings.HasPrefix(mt, "video/") || mt == player.HLSMimeType || mt == "application/x-mpegurl"
}

func (s *Surface) Subscribe(t player.EventType, fn func(player.MediaEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers[t] == nil {
		s.handlers[t] = make(map[int]func(player.MediaEvent))
	}
	id := s.nextID
	s.nextID++
	s.handlers[t][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.handlers[t], id)
		})
	}
}

// Fullscreen returns the provider that toggles mpv's own fullscreen
func (s *Surface) Fullscreen() player.FullscreenProvider {
	return &PropertyProvider{Label: "mpv-fullscreen", Property: "fullscreen", conn: s.conn, timeout: s.timeout}
}

// Maximize returns a fallback provider that maximizes the mpv window
func (s *Surface) Maximize() player.FullscreenProvider {
	return &PropertyProvider{Label: "mpv-window-maximized", Property: "window-maximized", conn: s.conn, timeout: s.timeout}
}

func (s *Surface) set(name string, value any) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.conn.SetProperty(ctx, name, value)
}

func (s *Surface) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// handleEvent translates mpv events into media events
func (s *Surface) handleEvent(ev Event) {
	var out []player.MediaEvent

	s.mu.Lock()
	switch ev.Name {
	case "property-change":
		out = s.propertyChangeLocked(ev)
	case "file-loaded":
		s.loaded = true
		out = append(out, player.MediaEvent{Type: player.EventCanPlay, Duration: s.duration})
	case "end-file":
		switch ev.Reason {
		case "eof":
			out = append(out, player.MediaEvent{Type: player.EventEnded, Time: s.duration, Duration: s.duration})
		case "error":
			out = append(out, player.MediaEvent{Type: player.EventError, Err: fileError(ev.FileError)})
		}
		s.loaded = false
	}
	s.mu.Unlock()

	for _, me := range out {
		s.emit(me)
	}
}

func (s *Surface) propertyChangeLocked(ev Event) []player.MediaEvent {
	switch ev.Property {
	case "time-pos":
		var t float64
		if json.Unmarshal(ev.Data, &t) != nil {
			return nil
		}
		return []player.MediaEvent{{Type: player.EventTimeUpdate, Time: t, Duration: s.duration}}

	case "duration":
		var d float64
		if json.Unmarshal(ev.Data, &d) != nil {
			return nil
		}
		s.duration = d
		return []player.MediaEvent{{Type: player.EventDurationChange, Duration: d}}

	case "pause":
		var p bool
		if json.Unmarshal(ev.Data, &p) != nil {
			return nil
		}
		s.paused = p
		if !s.loaded {
			return nil
		}
		if p {
			return []player.MediaEvent{{Type: player.EventPause}}
		}
		return []player.MediaEvent{{Type: player.EventPlaying}}

	case "paused-for-cache":
		var waiting bool
		if json.Unmarshal(ev.Data, &waiting) != nil {
			return nil
		}
		if waiting {
			return []player.MediaEvent{{Type: player.EventWaiting}}
		}
		return []player.MediaEvent{{Type: player.EventCanPlayThrough}}

	case "demuxer-cache-time":
		var end float64
		if json.Unmarshal(ev.Data, &end) != nil {
			return nil
		}
		return []player.MediaEvent{{Type: player.EventProgress, BufferedEnd: end}}
	}
	return nil
}

func (s *Surface) emit(ev player.MediaEvent) {
	s.mu.Lock()
	fns := make([]func(player.MediaEvent), 0, len(s.handlers[ev.Type]))
	for _, fn := range s.handlers[ev.Type] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// fileError categorizes mpv's end-file error string
func fileError(msg string) *player.PlaybackError {
	err := fmt.Errorf("mpv: %s", msg)
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unrecognized file format"),
		strings.Contains(lower, "no audio or video data"):
		return player.NewPlaybackError(player.CategoryUnsupported, err)
	case strings.Contains(lower, "loading failed"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "http"),
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "timeout"):
		return player.NewPlaybackError(player.CategoryNetwork, err)
	default:
		return player.NewPlaybackError(player.CategoryDecode, err)
	}
}
