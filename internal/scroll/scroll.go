// Package scroll remembers the scroll offset of each named view for the
// length of a session so navigating away and back lands where the user was
package scroll

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mmcdole/reel/internal/clock"
	"github.com/mmcdole/reel/internal/domain"
)

// KeyPrefix namespaces scroll records in the session store
const KeyPrefix = "scroll-pos:"

const (
	DefaultThrottle    = 100 * time.Millisecond
	DefaultSettleDelay = 50 * time.Millisecond
)

// Record is the persisted scroll position of one view
type Record struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// Target is a scrollable container
type Target interface {
	Offset() (x, y int)
	ScrollTo(x, y int)
}

// Options configures a Restorer. Zero values take the defaults
type Options struct {
	Throttle    time.Duration
	SettleDelay time.Duration
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Restorer saves and restores the scroll offset of one target under one key
type Restorer struct {
	store  domain.SessionStore
	key    string
	target Target
	clock  clock.Clock
	logger *slog.Logger
	settle time.Duration

	mu        sync.Mutex
	limiter   *rate.Limiter
	trailing  clock.Timer
	restore   clock.Timer
	restoring bool
}

// New creates a restorer for target under key. A nil store disables persistence
func New(store domain.SessionStore, key string, target Target, opts Options) *Restorer {
	if opts.Throttle <= 0 {
		opts.Throttle = DefaultThrottle
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	} else if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Restorer{
		store:   store,
		key:     KeyPrefix + key,
		target:  target,
		clock:   clock.OrReal(opts.Clock),
		logger:  opts.Logger,
		settle:  opts.SettleDelay,
		limiter: rate.NewLimiter(rate.Every(opts.Throttle), 1),
	}
}

// Save records the current offset. Calls faster than the throttle interval
// collapse into one trailing write of the latest offset
func (r *Restorer) Save() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil || r.restoring || r.trailing != nil {
		return
	}

	now := r.clock.Now()
	if r.limiter.AllowN(now, 1) {
		r.writeLocked(now)
		return
	}

	res := r.limiter.ReserveN(now, 1)
	r.trailing = r.clock.AfterFunc(res.DelayFrom(now), func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.trailing = nil
		if !r.restoring {
			r.writeLocked(r.clock.Now())
		}
	})
}

// SaveNow records the current offset immediately, ignoring the throttle.
// Used when the view is about to be left
func (r *Restorer) SaveNow() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil || r.restoring {
		return
	}
	if r.trailing != nil {
		r.trailing.Stop()
		r.trailing = nil
	}
	r.writeLocked(r.clock.Now())
}

// Restore applies the saved offset after the settle delay. Saves are
// suppressed until it has been applied. Returns false if there is no record
func (r *Restorer) Restore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.readLocked()
	if !ok {
		return false
	}

	if r.restore != nil {
		r.restore.Stop()
	}
	if r.trailing != nil {
		r.trailing.Stop()
		r.trailing = nil
	}
	r.restoring = true
	r.restore = r.clock.AfterFunc(r.settle, func() {
		r.mu.Lock()
		r.restoring = false
		r.restore = nil
		r.mu.Unlock()

		r.target.ScrollTo(rec.X, rec.Y)
		r.logger.Debug("scroll restored", "key", r.key, "x", rec.X, "y", rec.Y)
	})
	return true
}

// Restoring reports whether a restore is waiting for its settle delay
func (r *Restorer) Restoring() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restoring
}

// Clear removes this view's record
func (r *Restorer) Clear() {
	if r.store == nil {
		return
	}
	if err := r.store.Delete(r.key); err != nil {
		r.logger.Warn("failed to clear scroll position", "key", r.key, "error", err)
	}
}

// ClearAll removes every scroll record in the store
func (r *Restorer) ClearAll() {
	ClearAll(r.store, r.logger)
}

// Close cancels any pending restore or trailing save
func (r *Restorer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trailing != nil {
		r.trailing.Stop()
		r.trailing = nil
	}
	if r.restore != nil {
		r.restore.Stop()
		r.restore = nil
	}
	r.restoring = false
}

// ClearAll removes every record under KeyPrefix from store
func ClearAll(store domain.SessionStore, logger *slog.Logger) {
	if store == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	keys, err := store.Keys(KeyPrefix)
	if err != nil {
		logger.Warn("failed to list scroll positions", "error", err)
		return
	}
	for _, k := range keys {
		if err := store.Delete(k); err != nil {
			logger.Warn("failed to clear scroll position", "key", k, "error", err)
		}
	}
}

func (r *Restorer) writeLocked(now time.Time) {
	x, y := r.target.Offset()
	data, err := json.Marshal(Record{X: x, Y: y, Timestamp: now})
	if err != nil {
		r.logger.Warn("failed to encode scroll position", "key", r.key, "error", err)
		return
	}
	if err := r.store.Set(r.key, data); err != nil {
		r.logger.Warn("failed to save scroll position", "key", r.key, "error", err)
	}
}

func (r *Restorer) readLocked() (Record, bool) {
	if r.store == nil {
		return Record{}, false
	}
	data, ok, err := r.store.Get(r.key)
	if err != nil {
		r.logger.Warn("failed to read scroll position", "key", r.key, "error", err)
		return Record{}, false
	}
	if !ok {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		r.logger.Warn("discarding corrupt scroll position", "key", r.key, "error", err)
		return Record{}, false
	}
	return rec, true
}
