// Package player drives a single media surface from a source descriptor to an
// interactive player. It hides whether the source is played directly or
// through an adaptive streaming session, and owns the on-screen control
// state: auto-hide, transient indicators, shortcuts and fullscreen
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/mmcdole/reel/internal/clock"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/metrics"
)

var errEmptySource = errors.New("source URL is empty")

// Options configures a Controller
type Options struct {
	// Engine plays adaptive sources. Nil means adaptive sources fall back
	// to the surface's native support
	Engine AdaptiveEngine

	// Fullscreen providers, tried surface first then container in order
	SurfaceFullscreen   FullscreenProvider
	ContainerFullscreen []FullscreenProvider

	Viewport Viewport
	Volume   float64 // initial volume in (0,1], 0 means 1

	Clock  clock.Clock
	Logger *slog.Logger

	// OnProgress receives every time update. It runs outside the controller's lock
	OnProgress domain.ProgressFunc
	// OnStateChange observes state transitions. It runs outside the controller's lock
	OnStateChange func(from, to State)
}

// Controller is the playback state machine for one player instance
type Controller struct {
	surface       Surface
	engine        AdaptiveEngine
	clock         clock.Clock
	logger        *slog.Logger
	onProgress    domain.ProgressFunc
	onStateChange func(from, to State)
	changes       chan struct{}

	mu       sync.Mutex
	fs       *fullscreenChain
	mounted  bool
	mountSeq uint64
	subs     *subscriptions
	pending  []func()

	// per source
	src            Source
	gen            uint64
	id             string
	log            *slog.Logger
	adaptive       AdaptiveSession
	cancelAdaptive context.CancelFunc
	useEngine      bool
	resumeApplied  bool

	state       State
	buffering   bool
	currentTime float64
	duration    float64
	bufferedEnd float64
	volume      float64
	lastVolume  float64
	muted       bool
	rate        float64
	err         *PlaybackError

	viewport        Viewport
	controlsVisible bool
	menu            Menu
	notice          string
	hideTimer       clock.Timer
	hideSeq         uint64
	indicators      [2]*Indicator
	indicatorTimers [2]clock.Timer
	indicatorSeq    [2]uint64
}

// New creates an unmounted controller over surface
func New(surface Surface, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Volume <= 0 || opts.Volume > 1 {
		opts.Volume = 1
	}
	return &Controller{
		surface:         surface,
		engine:          opts.Engine,
		clock:           clock.OrReal(opts.Clock),
		logger:          opts.Logger,
		log:             opts.Logger,
		onProgress:      opts.OnProgress,
		onStateChange:   opts.OnStateChange,
		changes:         make(chan struct{}, 1),
		fs:              newFullscreenChain(opts.SurfaceFullscreen, opts.ContainerFullscreen),
		viewport:        opts.Viewport,
		volume:          opts.Volume,
		lastVolume:      opts.Volume,
		rate:            1,
		controlsVisible: true,
	}
}

// Mount attaches the controller to the surface and starts loading src.
// A controller that is already mounted is torn down first
func (c *Controller) Mount(src Source) error {
	if src.URL == "" {
		return fmt.Errorf("mount: %w", errEmptySource)
	}

	c.mu.Lock()
	defer c.unlock()

	if c.mounted {
		c.teardownLocked()
	}
	c.mounted = true
	c.mountSeq++
	seq := c.mountSeq
	c.subs = subscribe(c.surface, c.mediaHandlers(seq))

	if err := c.surface.SetVolume(c.volume); err != nil {
		c.logger.Warn("failed to apply initial volume", "error", err)
	}
	if err := c.surface.SetMuted(c.muted); err != nil {
		c.logger.Warn("failed to apply initial mute", "error", err)
	}

	c.loadLocked(src)
	return nil
}

// SetSource replaces the source of a mounted controller. The previous
// adaptive session is released before the new source starts loading
func (c *Controller) SetSource(src Source) error {
	if src.URL == "" {
		return fmt.Errorf("set source: %w", errEmptySource)
	}

	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	c.loadLocked(src)
	return nil
}

// Unmount releases the surface subscriptions and the adaptive session and
// stops every timer. The controller can be mounted again afterwards
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return
	}
	c.teardownLocked()
	c.setStateLocked(StateIdle)
}

// Retry reloads the current source from the last known position
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	src := c.src
	if c.currentTime > 0 {
		src.ResumeAt = c.currentTime
	}
	c.log.Info("retrying playback", "resumeAt", src.ResumeAt)
	c.loadLocked(src)
	return nil
}

// Session returns a snapshot of the controller
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Session{
		ID:           c.id,
		SourceURL:    c.src.URL,
		Adaptive:     c.useEngine,
		State:        c.state,
		Buffering:    c.buffering,
		CurrentTime:  c.currentTime,
		Duration:     c.duration,
		BufferedEnd:  c.bufferedEnd,
		Volume:       c.volume,
		Muted:        c.muted,
		Rate:         c.rate,
		Fullscreen:   c.fs.isActive(),
		Err:          c.err,
		Presentation: c.viewport.Presentation(),
		Menu:         c.menu,
		Notice:       c.notice,
	}
	if s.Presentation == PresentationCustom {
		s.ControlsVisible = c.controlsVisible
	}
	if ind := c.indicators[IndicatorSkip]; ind != nil {
		cp := *ind
		s.Skip = &cp
	}
	if ind := c.indicators[IndicatorVolume]; ind != nil {
		cp := *ind
		s.VolumeLevel = &cp
	}
	return s
}

// State returns the current playback state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Changes signals after any observable change. Only the latest signal is kept
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// === Controls ===

// Play starts or resumes playback. Playing from Ended restarts at zero
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	return c.playLocked()
}

// Pause pauses playback and pins the controls on screen
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	return c.pauseLocked()
}

// TogglePlay switches between Playing and Paused
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	if c.state == StatePlaying {
		return c.pauseLocked()
	}
	return c.playLocked()
}

// Seek jumps to fraction of the duration. It does nothing while the
// duration is unknown
func (c *Controller) Seek(fraction float64) error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	c.interactLocked()
	if !c.durationKnownLocked() {
		return nil
	}
	fraction = clamp(fraction, 0, 1)
	return c.seekLocked(fraction * c.duration)
}

// Skip moves the position by delta seconds, clamped to [0, duration]
func (c *Controller) Skip(delta float64) error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	c.interactLocked()
	if !c.durationKnownLocked() {
		return nil
	}
	c.showIndicatorLocked(IndicatorSkip, delta, SkipIndicatorTTL)
	return c.seekLocked(clamp(c.currentTime+delta, 0, c.duration))
}

// SetVolume sets the volume, clamped to [0,1]. Zero mutes
func (c *Controller) SetVolume(fraction float64) error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	c.interactLocked()
	return c.setVolumeLocked(fraction)
}

// ToggleMute mutes or unmutes. Unmuting at zero volume restores the last
// audible level
func (c *Controller) ToggleMute() error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	c.interactLocked()

	if c.muted {
		if c.volume == 0 {
			c.volume = c.lastVolume
			if err := c.surface.SetVolume(c.volume); err != nil {
				return fmt.Errorf("unmute: %w", err)
			}
		}
		if err := c.surface.SetMuted(false); err != nil {
			return fmt.Errorf("unmute: %w", err)
		}
		c.muted = false
		return nil
	}

	if err := c.surface.SetMuted(true); err != nil {
		return fmt.Errorf("mute: %w", err)
	}
	c.muted = true
	return nil
}

// SetRate applies a playback rate. RatePresets lists the offered values
func (c *Controller) SetRate(multiplier float64) error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return fmt.Errorf("invalid playback rate %v", multiplier)
	}
	c.interactLocked()
	if err := c.surface.SetRate(multiplier); err != nil {
		return fmt.Errorf("set rate: %w", err)
	}
	c.rate = multiplier
	return nil
}

// ToggleFullscreen enters or leaves fullscreen. When every provider fails
// the returned *FullscreenError is also recorded as a session notice
func (c *Controller) ToggleFullscreen() error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	c.interactLocked()

	if c.fs.isActive() {
		c.exitFullscreenLocked()
		return nil
	}
	if err := c.fs.enter(); err != nil {
		c.notice = "Fullscreen is not available on this display"
		metrics.FullscreenFailures.Inc()
		c.log.Warn("fullscreen unavailable", "error", err)
		return err
	}
	c.notice = ""
	c.log.Debug("entered fullscreen", "provider", c.fs.active.Name())
	return nil
}

// ExitFullscreen leaves fullscreen if it is active
func (c *Controller) ExitFullscreen() {
	c.mu.Lock()
	defer c.unlock()
	c.exitFullscreenLocked()
}

// DismissNotice clears the current notice
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	defer c.unlock()
	c.notice = ""
}

// PointerMoved shows the controls and restarts the auto-hide delay
func (c *Controller) PointerMoved() {
	c.mu.Lock()
	defer c.unlock()
	c.interactLocked()
}

// OpenMenu opens a secondary menu. Controls stay visible while it is open
func (c *Controller) OpenMenu(m Menu) {
	c.mu.Lock()
	defer c.unlock()
	c.menu = m
	c.interactLocked()
}

// CloseMenu closes the open menu and restarts the auto-hide delay
func (c *Controller) CloseMenu() {
	c.mu.Lock()
	defer c.unlock()
	c.menu = MenuNone
	c.interactLocked()
}

// SetViewport updates the display description and with it the presentation
func (c *Controller) SetViewport(v Viewport) {
	c.mu.Lock()
	defer c.unlock()
	c.viewport = v
	c.interactLocked()
}

// Presentation returns who draws the controls for the current viewport
func (c *Controller) Presentation() Presentation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport.Presentation()
}

func (c *Controller) nudgeVolume(delta float64) error {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted {
		return domain.ErrNotMounted
	}
	c.interactLocked()
	base := c.volume
	if c.muted {
		base = 0
	}
	next := math.Round(clamp(base+delta, 0, 1)*100) / 100
	c.showIndicatorLocked(IndicatorVolume, next, VolumeIndicatorTTL)
	return c.setVolumeLocked(next)
}

// === Source loading ===

func (c *Controller) loadLocked(src Source) {
	c.destroyAdaptiveLocked()

	c.gen++
	c.src = src
	c.id = uuid.NewString()
	c.log = c.logger.With("session", c.id)
	c.err = nil
	c.buffering = false
	c.currentTime = 0
	c.duration = 0
	c.bufferedEnd = 0
	c.useEngine = false
	c.resumeApplied = false
	c.setStateLocked(StateLoading)
	c.showControlsLocked()

	adaptive := IsAdaptive(src)
	c.log.Info("loading source", "url", src.URL, "adaptive", adaptive, "resumeAt", src.ResumeAt)

	switch {
	case adaptive && c.engine != nil && c.engine.Supported():
		ctx, cancel := context.WithCancel(context.Background())
		gen := c.gen
		sess, err := c.engine.NewSession(ctx, src.URL, func(ev AdaptiveEvent) {
			c.handleAdaptive(gen, ev)
		})
		if err != nil {
			cancel()
			c.failLocked(asPlaybackError(err, CategoryNetwork))
			return
		}
		c.adaptive = sess
		c.cancelAdaptive = cancel
		c.useEngine = true

	case adaptive && c.surface.CanPlayNative(HLSMimeType):
		c.log.Debug("adaptive engine unavailable, using native playback")
		c.loadDirectLocked(src.URL)

	case adaptive:
		c.failLocked(NewPlaybackError(CategoryUnsupported, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, src.URL)))

	default:
		c.loadDirectLocked(src.URL)
	}
}

func (c *Controller) loadDirectLocked(url string) {
	if err := c.surface.Load(url); err != nil {
		c.failLocked(asPlaybackError(err, CategoryNetwork))
	}
}

func (c *Controller) destroyAdaptiveLocked() {
	if c.adaptive == nil {
		return
	}
	c.adaptive.Destroy()
	c.cancelAdaptive()
	c.adaptive = nil
	c.cancelAdaptive = nil
}

func (c *Controller) teardownLocked() {
	c.destroyAdaptiveLocked()
	if c.subs != nil {
		c.subs.release()
		c.subs = nil
	}
	c.stopTimersLocked()
	c.exitFullscreenLocked()
	if err := c.surface.Unload(); err != nil {
		c.log.Warn("failed to unload surface", "error", err)
	}
	c.mounted = false
	c.gen++
}

// readyLocked enters Ready and applies the resume position once
func (c *Controller) readyLocked() {
	c.setStateLocked(StateReady)

	if c.src.ResumeAt > 0 && !c.resumeApplied {
		c.resumeApplied = true
		target := c.src.ResumeAt
		if c.durationKnownLocked() {
			target = math.Min(target, c.duration)
		}
		if err := c.surface.Seek(target); err != nil {
			c.log.Warn("failed to apply resume position", "resumeAt", target, "error", err)
		} else {
			c.currentTime = target
		}
		c.setStateLocked(StatePaused)
	}
	c.showControlsLocked()
}

func (c *Controller) failLocked(pe *PlaybackError) {
	c.err = pe
	c.buffering = false
	c.setStateLocked(StateError)
	c.showControlsLocked()
	metrics.PlaybackErrors.WithLabelValues(string(pe.Category), "true").Inc()
	c.log.Error("playback failed", "category", pe.Category, "error", pe.Err)
}

// === Event handling ===

func (c *Controller) mediaHandlers(seq uint64) map[EventType]func(MediaEvent) {
	guard := func(fn func(MediaEvent)) func(MediaEvent) {
		return func(ev MediaEvent) {
			c.mu.Lock()
			defer c.unlock()
			if !c.mounted || seq != c.mountSeq {
				return
			}
			fn(ev)
		}
	}
	return map[EventType]func(MediaEvent){
		EventCanPlay:        guard(c.onCanPlay),
		EventTimeUpdate:     guard(c.onTimeUpdate),
		EventDurationChange: guard(c.onDurationChange),
		EventPlaying:        guard(c.onPlaying),
		EventPause:          guard(c.onPause),
		EventWaiting:        guard(c.onWaiting),
		EventCanPlayThrough: guard(c.onCanPlayThrough),
		EventProgress:       guard(c.onBuffered),
		EventEnded:          guard(c.onEnded),
		EventError:          guard(c.onError),
	}
}

func (c *Controller) onCanPlay(ev MediaEvent) {
	c.updateDurationLocked(ev.Duration)
	if c.state == StateLoading && !c.useEngine {
		c.readyLocked()
	}
}

func (c *Controller) onTimeUpdate(ev MediaEvent) {
	if ev.Time >= 0 && !math.IsNaN(ev.Time) {
		c.currentTime = ev.Time
	}
	c.updateDurationLocked(ev.Duration)
	if cb := c.onProgress; cb != nil {
		t, d := c.currentTime, c.duration
		c.after(func() { cb(t, d) })
	}
}

func (c *Controller) onDurationChange(ev MediaEvent) {
	c.updateDurationLocked(ev.Duration)
}

func (c *Controller) onPlaying(MediaEvent) {
	c.buffering = false
	if c.state == StateReady || c.state == StatePaused {
		c.setStateLocked(StatePlaying)
		c.scheduleHideLocked()
	}
}

func (c *Controller) onPause(MediaEvent) {
	if c.state == StatePlaying {
		c.setStateLocked(StatePaused)
		c.showControlsLocked()
	}
}

func (c *Controller) onWaiting(MediaEvent) {
	c.buffering = true
}

func (c *Controller) onCanPlayThrough(MediaEvent) {
	c.buffering = false
}

func (c *Controller) onBuffered(ev MediaEvent) {
	c.bufferedEnd = ev.BufferedEnd
}

func (c *Controller) onEnded(MediaEvent) {
	switch c.state {
	case StateReady, StatePlaying, StatePaused:
		c.buffering = false
		if c.durationKnownLocked() {
			c.currentTime = c.duration
		}
		c.setStateLocked(StateEnded)
		c.showControlsLocked()
	}
}

func (c *Controller) onError(ev MediaEvent) {
	c.failLocked(asPlaybackError(ev.Err, CategoryDecode))
}

func (c *Controller) handleAdaptive(gen uint64, ev AdaptiveEvent) {
	c.mu.Lock()
	defer c.unlock()

	if !c.mounted || gen != c.gen {
		return
	}

	switch ev.Kind {
	case AdaptiveManifestParsed:
		if ev.URL != "" {
			if err := c.surface.Load(ev.URL); err != nil {
				c.failLocked(asPlaybackError(err, CategoryNetwork))
				return
			}
		}
		c.updateDurationLocked(ev.Duration)
		if c.state == StateLoading {
			c.readyLocked()
		}

	case AdaptiveError:
		category := ev.Category
		if category == "" {
			category = CategoryNetwork
		}
		if !ev.Fatal {
			// The engine recovers on its own
			metrics.PlaybackErrors.WithLabelValues(string(category), "false").Inc()
			c.log.Warn("adaptive stream error", "category", category, "error", ev.Err)
			return
		}
		c.failLocked(NewPlaybackError(category, ev.Err))
	}
}

// === Playback helpers ===

func (c *Controller) playLocked() error {
	c.interactLocked()
	switch c.state {
	case StateReady, StatePaused:
	case StateEnded:
		if err := c.seekLocked(0); err != nil {
			return err
		}
	default:
		return nil
	}
	if err := c.surface.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	c.setStateLocked(StatePlaying)
	c.scheduleHideLocked()
	return nil
}

func (c *Controller) pauseLocked() error {
	if c.state != StatePlaying {
		c.showControlsLocked()
		return nil
	}
	if err := c.surface.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	c.setStateLocked(StatePaused)
	c.showControlsLocked()
	return nil
}

func (c *Controller) seekLocked(t float64) error {
	if err := c.surface.Seek(t); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	c.currentTime = t
	if c.state == StateEnded {
		c.setStateLocked(StatePaused)
	}
	return nil
}

func (c *Controller) setVolumeLocked(fraction float64) error {
	if math.IsNaN(fraction) {
		return fmt.Errorf("invalid volume %v", fraction)
	}
	fraction = clamp(fraction, 0, 1)
	muted := fraction == 0
	if err := c.surface.SetVolume(fraction); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	if err := c.surface.SetMuted(muted); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	c.volume = fraction
	c.muted = muted
	if fraction > 0 {
		c.lastVolume = fraction
	}
	return nil
}

func (c *Controller) exitFullscreenLocked() {
	if !c.fs.isActive() {
		return
	}
	if err := c.fs.exit(); err != nil {
		c.log.Warn("failed to exit fullscreen", "error", err)
	}
}

func (c *Controller) durationKnownLocked() bool {
	return c.duration > 0 && !math.IsNaN(c.duration) && !math.IsInf(c.duration, 0)
}

func (c *Controller) updateDurationLocked(d float64) {
	if d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0) {
		c.duration = d
	}
}

func (c *Controller) setStateLocked(s State) {
	if s == c.state {
		return
	}
	from := c.state
	c.state = s
	metrics.PlaybackStateTransitions.WithLabelValues(s.String()).Inc()
	c.log.Debug("playback state", "from", from.String(), "to", s.String())
	if cb := c.onStateChange; cb != nil {
		c.after(func() { cb(from, s) })
	}
}

// after queues fn to run once the lock is released
func (c *Controller) after(fn func()) {
	c.pending = append(c.pending, fn)
}

// unlock releases the lock, runs queued callbacks and signals a change
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
