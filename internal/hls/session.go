package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmcdole/reel/internal/player"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 500 * time.Millisecond

	maxManifestBytes = 4 << 20
)

// Options configures an Engine
type Options struct {
	Client       *http.Client
	MaxBandwidth int           // bits per second, 0 = no cap
	Retries      int           // extra attempts after the first failure
	RetryDelay   time.Duration // doubled after each failed attempt
	Disabled     bool          // report the engine as unsupported
	Logger       *slog.Logger
}

var _ player.AdaptiveEngine = (*Engine)(nil)

// Engine implements player.AdaptiveEngine
type Engine struct {
	client       *http.Client
	maxBandwidth int
	retries      int
	retryDelay   time.Duration
	disabled     bool
	logger       *slog.Logger
}

// NewEngine creates an engine
func NewEngine(opts Options) *Engine {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		client:       opts.Client,
		maxBandwidth: opts.MaxBandwidth,
		retries:      opts.Retries,
		retryDelay:   opts.RetryDelay,
		disabled:     opts.Disabled,
		logger:       opts.Logger,
	}
}

// Supported reports whether the engine is enabled
func (e *Engine) Supported() bool { return !e.disabled }

// NewSession starts loading manifestURL in the background
func (e *Engine) NewSession(ctx context.Context, manifestURL string, onEvent func(player.AdaptiveEvent)) (player.AdaptiveSession, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, player.NewPlaybackError(player.CategoryUnsupported, fmt.Errorf("invalid manifest URL: %w", err))
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		engine:  e,
		base:    base,
		onEvent: onEvent,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  e.logger.With("manifest", manifestURL),
	}
	go s.run(ctx)
	return s, nil
}

// Session is one running HLS stream
type Session struct {
	engine  *Engine
	base    *url.URL
	onEvent func(player.AdaptiveEvent)
	logger  *slog.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	destroyed atomic.Bool
	once      sync.Once

	mu      sync.Mutex
	variant Variant
}

// Destroy cancels in-flight work and suppresses further events. It does not
// wait for the session goroutine, which never touches the surface
func (s *Session) Destroy() {
	s.once.Do(func() {
		s.destroyed.Store(true)
		s.cancel()
	})
}

// Done is closed when the session goroutine has exited
func (s *Session) Done() <-chan struct{} { return s.done }

// Variant returns the selected variant, if any
func (s *Session) Variant() Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variant
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	pl, err := s.load(ctx, s.base)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	mediaURL := s.base
	if pl.Master {
		v, _ := SelectVariant(pl.Variants, s.engine.maxBandwidth)
		ref, err := url.Parse(v.URI)
		if err != nil {
			s.fail(ctx, fmt.Errorf("%w: variant URI %q", ErrInvalidManifest, v.URI))
			return
		}
		mediaURL = s.base.ResolveReference(ref)
		s.mu.Lock()
		s.variant = v
		s.mu.Unlock()
		s.logger.Debug("selected variant", "uri", mediaURL.String(), "bandwidth", v.Bandwidth, "height", v.Height)

		pl, err = s.load(ctx, mediaURL)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		if pl.Master {
			s.fail(ctx, fmt.Errorf("%w: nested master playlist", ErrInvalidManifest))
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	s.emit(player.AdaptiveEvent{
		Kind:     player.AdaptiveManifestParsed,
		Duration: pl.Duration(),
		URL:      mediaURL.String(),
	})
}

// load fetches and parses a playlist, retrying network failures
func (s *Session) load(ctx context.Context, u *url.URL) (*Playlist, error) {
	body, err := s.fetchWithRetry(ctx, u.String())
	if err != nil {
		return nil, err
	}
	pl, err := Parse(body)
	if err != nil {
		return nil, player.NewPlaybackError(player.CategoryDecode, err)
	}
	return pl, nil
}

func (s *Session) fetchWithRetry(ctx context.Context, rawURL string) (string, error) {
	delay := s.engine.retryDelay
	var lastErr error
	for attempt := 0; attempt <= s.engine.retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		body, err := s.fetch(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			return "", player.NewPlaybackError(player.CategoryNetwork, err)
		}

		lastErr = err
		s.logger.Warn("manifest fetch failed", "attempt", attempt+1, "error", err)
		s.emit(player.AdaptiveEvent{Kind: player.AdaptiveError, Category: player.CategoryNetwork, Err: err})
	}
	return "", player.NewPlaybackError(player.CategoryNetwork,
		fmt.Errorf("manifest unavailable after %d attempts: %w", s.engine.retries+1, lastErr))
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.url, e.code)
}

func (s *Session) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.apple.mpegurl, application/x-mpegurl, */*")

	resp, err := s.engine.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, url: rawURL}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}
	return string(data), nil
}

func (s *Session) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	category := player.CategoryNetwork
	var pe *player.PlaybackError
	if errors.As(err, &pe) {
		category = pe.Category
	}
	s.logger.Error("adaptive session failed", "category", category, "error", err)
	s.emit(player.AdaptiveEvent{Kind: player.AdaptiveError, Fatal: true, Category: category, Err: err})
}

func (s *Session) emit(ev player.AdaptiveEvent) {
	if s.destroyed.Load() {
		return
	}
	s.onEvent(ev)
}
