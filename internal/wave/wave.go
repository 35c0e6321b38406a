// Package wave reveals a long list progressively. Items become visible one
// wave at a time as the viewport approaches the end of what is already shown
package wave

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/reel/internal/clock"
)

const (
	DefaultWaveCount = 5
	DefaultMargin    = 200
	DefaultDelay     = 100 * time.Millisecond
)

// State describes the current reveal position
type State struct {
	Total    int
	WaveSize int
	Wave     int // 1-based index of the current wave
	Waves    int
	Visible  int
	Loading  bool // an advance is scheduled but not yet applied
}

// Done reports whether every item is visible
func (s State) Done() bool { return s.Visible >= s.Total }

// Options configures a Loader. Zero values take the defaults
type Options struct {
	WaveCount int
	Margin    int           // lookahead distance at which the next wave is requested
	Delay     time.Duration // minimum latency before an advance is applied
	Clock     clock.Clock
	Logger    *slog.Logger
	// OnAdvance is called after a wave has been revealed, outside the loader's lock
	OnAdvance func(State)
}

// Loader holds the reveal state for one list in one view
type Loader[T any] struct {
	waveCount int
	margin    int
	delay     time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	onAdvance func(State)

	mu      sync.Mutex
	id      string
	items   []T
	wave    int
	loading bool
	timer   clock.Timer
	gen     uint64
}

// New creates an empty loader
func New[T any](opts Options) *Loader[T] {
	if opts.WaveCount <= 0 {
		opts.WaveCount = DefaultWaveCount
	}
	if opts.Margin < 0 {
		opts.Margin = 0
	} else if opts.Margin == 0 {
		opts.Margin = DefaultMargin
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	} else if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader[T]{
		waveCount: opts.WaveCount,
		margin:    opts.Margin,
		delay:     opts.Delay,
		clock:     clock.OrReal(opts.Clock),
		logger:    opts.Logger,
		onAdvance: opts.OnAdvance,
		wave:      1,
	}
}

// SetItems replaces the underlying collection. The reveal restarts at the
// first wave when the collection is empty or id differs from the previous
// call; otherwise the current wave is kept
func (l *Loader[T]) SetItems(id string, items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(items) == 0 || id != l.id {
		l.resetLocked()
	}
	l.id = id
	l.items = items
	if w := l.wavesLocked(); l.wave > w && w > 0 {
		l.wave = w
	}
}

// Reset returns to the first wave and drops any pending advance
func (l *Loader[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
}

// Visible returns the items revealed so far. The slice aliases the collection
func (l *Loader[T]) Visible() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items[:l.visibleLocked()]
}

// State returns a snapshot of the reveal position
func (l *Loader[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

// Intersect reports how far the sentinel at the end of the visible list is
// from the viewport edge. When it is within the lookahead margin the next
// wave is scheduled. Returns true if an advance was scheduled by this call
func (l *Loader[T]) Intersect(distance int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if distance > l.margin || l.loading || l.wave >= l.wavesLocked() {
		return false
	}

	l.loading = true
	gen := l.gen
	l.timer = l.clock.AfterFunc(l.delay, func() { l.advance(gen) })
	return true
}

// Stop cancels a pending advance
func (l *Loader[T]) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelLocked()
}

func (l *Loader[T]) advance(gen uint64) {
	l.mu.Lock()
	if gen != l.gen || !l.loading {
		l.mu.Unlock()
		return
	}
	l.loading = false
	l.timer = nil
	if l.wave < l.wavesLocked() {
		l.wave++
	}
	s := l.stateLocked()
	id := l.id
	cb := l.onAdvance
	l.mu.Unlock()

	l.logger.Debug("wave revealed", "list", id, "wave", s.Wave, "waves", s.Waves, "visible", s.Visible)
	if cb != nil {
		cb(s)
	}
}

func (l *Loader[T]) resetLocked() {
	l.cancelLocked()
	l.wave = 1
}

func (l *Loader[T]) cancelLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.loading = false
	l.gen++
}

func (l *Loader[T]) waveSizeLocked() int {
	return WaveSize(len(l.items), l.waveCount)
}

func (l *Loader[T]) wavesLocked() int {
	return Waves(len(l.items), l.waveCount)
}

func (l *Loader[T]) visibleLocked() int {
	return min(len(l.items), l.wave*l.waveSizeLocked())
}

func (l *Loader[T]) stateLocked() State {
	return State{
		Total:    len(l.items),
		WaveSize: l.waveSizeLocked(),
		Wave:     l.wave,
		Waves:    l.wavesLocked(),
		Visible:  l.visibleLocked(),
		Loading:  l.loading,
	}
}

// WaveSize is the number of items revealed per wave: floor(total/waveCount),
// but never less than one
func WaveSize(total, waveCount int) int {
	if waveCount <= 0 {
		waveCount = DefaultWaveCount
	}
	return max(1, total/waveCount)
}

// Waves is the number of waves needed to reveal total items. It can exceed
// waveCount when total is not a multiple of it, so the last wave always
// covers the remainder
func Waves(total, waveCount int) int {
	size := WaveSize(total, waveCount)
	return (total + size - 1) / size
}
