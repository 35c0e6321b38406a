package service

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mmcdole/reel/internal/clock"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/player"
)

const (
	// DefaultResumeThreshold is the position below which progress is not kept
	DefaultResumeThreshold = 10 * time.Second
	// DefaultProgressInterval spaces out progress writes during playback
	DefaultProgressInterval = 5 * time.Second

	// positions this close to the end count as finished
	finishedMargin = 15 * time.Second
)

// PlaybackOptions configures a PlaybackService
type PlaybackOptions struct {
	Engine           player.AdaptiveEngine
	Volume           float64
	Viewport         player.Viewport
	ResumeThreshold  time.Duration
	ProgressInterval time.Duration
	Clock            clock.Clock
	Logger           *slog.Logger
}

// PlaybackService builds player controllers for films and persists their
// resume positions
type PlaybackService struct {
	store  domain.Store
	opts   PlaybackOptions
	clock  clock.Clock
	logger *slog.Logger
}

// NewPlaybackService creates a new playback service
func NewPlaybackService(store domain.Store, opts PlaybackOptions) *PlaybackService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ResumeThreshold <= 0 {
		opts.ResumeThreshold = DefaultResumeThreshold
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	return &PlaybackService{
		store:  store,
		opts:   opts,
		clock:  clock.OrReal(opts.Clock),
		logger: opts.Logger,
	}
}

// ResumeAt returns the saved position of film in seconds, 0 to start over
func (s *PlaybackService) ResumeAt(film *domain.Film) float64 {
	p, ok := s.store.GetProgress(film.ID)
	if !ok || p.Position < s.opts.ResumeThreshold {
		return 0
	}
	if p.Duration > 0 && p.Duration-p.Position < finishedMargin {
		return 0
	}
	return p.Position.Seconds()
}

// Progress returns the saved position of film
func (s *PlaybackService) Progress(filmID string) (domain.Progress, bool) {
	return s.store.GetProgress(filmID)
}

// Source describes how film is played. Ephemeral films are adaptive streams
func (s *PlaybackService) Source(film *domain.Film) player.Source {
	return player.Source{
		URL:      film.VideoURL,
		Adaptive: film.Ephemeral,
		ResumeAt: s.ResumeAt(film),
	}
}

// NewController creates a controller for film over surface and mounts it.
// The first fullscreen provider belongs to the surface, the rest are fallbacks
func (s *PlaybackService) NewController(film *domain.Film, surface player.Surface, fullscreen ...player.FullscreenProvider) (*player.Controller, error) {
	sink := s.newProgressSink(film.ID)

	opts := player.Options{
		Engine:        s.opts.Engine,
		Viewport:      s.opts.Viewport,
		Volume:        s.opts.Volume,
		Clock:         s.opts.Clock,
		Logger:        s.logger.With("filmID", film.ID),
		OnProgress:    sink.record,
		OnStateChange: sink.stateChanged,
	}
	if len(fullscreen) > 0 {
		opts.SurfaceFullscreen = fullscreen[0]
		opts.ContainerFullscreen = fullscreen[1:]
	}

	ctrl := player.New(surface, opts)
	src := s.Source(film)
	s.logger.Info("starting playback", "title", film.Title, "filmID", film.ID, "adaptive", src.Adaptive, "resumeAt", src.ResumeAt)
	if err := ctrl.Mount(src); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// ClearProgress forgets the saved position of film
func (s *PlaybackService) ClearProgress(filmID string) {
	s.store.ClearProgress(filmID)
}

// progressSink persists the position of one film, at most once per interval
type progressSink struct {
	filmID    string
	store     domain.Store
	clock     clock.Clock
	threshold time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu       sync.Mutex
	position time.Duration
	duration time.Duration
	finished bool
	dirty    bool
}

func (s *PlaybackService) newProgressSink(filmID string) *progressSink {
	return &progressSink{
		filmID:    filmID,
		store:     s.store,
		clock:     s.clock,
		threshold: s.opts.ResumeThreshold,
		limiter:   rate.NewLimiter(rate.Every(s.opts.ProgressInterval), 1),
		logger:    s.logger,
	}
}

func (p *progressSink) record(currentTime, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.position = seconds(currentTime)
	p.duration = seconds(duration)
	p.finished = false
	if p.position < p.threshold {
		return
	}
	p.dirty = true
	if p.limiter.AllowN(p.clock.Now(), 1) {
		p.saveLocked()
	}
}

func (p *progressSink) stateChanged(_, to player.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch to {
	case player.StateEnded:
		p.finished = true
		p.dirty = false
		p.store.ClearProgress(p.filmID)
		p.logger.Debug("cleared progress of finished film", "filmID", p.filmID)
	case player.StatePaused, player.StateIdle, player.StateError:
		if p.dirty && !p.finished {
			p.saveLocked()
		}
	}
}

func (p *progressSink) saveLocked() {
	err := p.store.SaveProgress(domain.Progress{
		FilmID:    p.filmID,
		Position:  p.position,
		Duration:  p.duration,
		UpdatedAt: p.clock.Now(),
	})
	if err != nil {
		p.logger.Warn("failed to save progress", "filmID", p.filmID, "error", err)
		return
	}
	p.dirty = false
}

func seconds(v float64) time.Duration {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
