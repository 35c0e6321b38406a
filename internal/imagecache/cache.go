// Package imagecache keeps recently fetched poster images in memory so the
// catalog can render without refetching, and prefetches upcoming posters in
// the background.
//
// Capacity is bounded two ways: entries older than the max age are dropped
// first, then the oldest 30% by capture time if the cache is still full
package imagecache

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/reel/internal/clock"
	"github.com/mmcdole/reel/internal/metrics"
)

const (
	DefaultMaxEntries  = 50
	DefaultMaxAge      = 30 * time.Minute
	DefaultStagger     = 100 * time.Millisecond
	DefaultConcurrency = 4

	// trimFraction is the share of entries dropped when age-based cleanup is not enough
	trimFraction = 0.3
)

// Entry is one cached image
type Entry struct {
	URL       string
	Blob      Blob
	Timestamp time.Time
}

// Stats holds cache counters
type Stats struct {
	Hits        int64
	Misses      int64
	Fetches     int64
	FetchErrors int64
	Evictions   int64
	Size        int
}

// Options configures a Cache. Zero values take the defaults
type Options struct {
	MaxEntries   int
	MaxAge       time.Duration
	Stagger      time.Duration // delay between consecutive scheduled prefetches
	Concurrency  int
	MaxDimension int // downscale images larger than this, 0 = keep as fetched
	Clock        clock.Clock
	Logger       *slog.Logger
}

// Cache maps image URLs to fetched blobs.
// One Cache is shared by every view for the lifetime of the program
type Cache struct {
	fetcher      Fetcher
	clock        clock.Clock
	logger       *slog.Logger
	stagger      time.Duration
	maxDimension int

	mu         sync.Mutex
	entries    map[string]*Entry
	inflight   map[string]struct{}
	timers     map[string]clock.Timer
	maxEntries int
	maxAge     time.Duration
	stats      Stats
	closed     bool

	group   singleflight.Group
	pool    errgroup.Group
	pending sync.WaitGroup
}

// New creates a cache that loads images through fetcher
func New(fetcher Fetcher, opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Stagger < 0 {
		opts.Stagger = 0
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Cache{
		fetcher:      fetcher,
		clock:        clock.OrReal(opts.Clock),
		logger:       opts.Logger,
		stagger:      opts.Stagger,
		maxDimension: opts.MaxDimension,
		entries:      make(map[string]*Entry),
		inflight:     make(map[string]struct{}),
		timers:       make(map[string]clock.Timer),
		maxEntries:   opts.MaxEntries,
		maxAge:       opts.MaxAge,
	}
	c.pool.SetLimit(opts.Concurrency)
	return c
}

// Preload schedules a background fetch for every URL that is neither cached
// nor already in flight. Fetches are staggered so a page of posters does not
// turn into a burst of simultaneous requests. Returns how many were scheduled
func (c *Cache) Preload(ctx context.Context, urls []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}

	now := c.clock.Now()
	scheduled := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if e, ok := c.entries[u]; ok && c.freshLocked(e, now) {
			continue
		}
		if _, ok := c.inflight[u]; ok {
			continue
		}

		c.inflight[u] = struct{}{}
		c.pending.Add(1)
		url := u
		delay := time.Duration(scheduled) * c.stagger
		c.timers[url] = c.clock.AfterFunc(delay, func() { c.dispatch(ctx, url) })
		scheduled++
	}

	if scheduled > 0 {
		c.logger.Debug("image prefetch scheduled", "count", scheduled, "requested", len(urls))
	}
	return scheduled
}

// Get returns the cached blob for url if it is younger than the max age.
// On a miss the caller loads the image directly
func (c *Cache) Get(url string) (Blob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		c.stats.Misses++
		metrics.ImageCacheMisses.Inc()
		return Blob{}, false
	}
	if !c.freshLocked(e, c.clock.Now()) {
		delete(c.entries, url)
		c.stats.Misses++
		c.stats.Evictions++
		metrics.ImageCacheMisses.Inc()
		metrics.ImageCacheEvictions.WithLabelValues("expired").Inc()
		metrics.ImageCacheEntries.Set(float64(len(c.entries)))
		return Blob{}, false
	}

	c.stats.Hits++
	metrics.ImageCacheHits.Inc()
	return e.Blob, true
}

// Fetch returns the blob for url, loading it now if it is not cached.
// Concurrent calls for the same URL (including a running prefetch) share one request
func (c *Cache) Fetch(ctx context.Context, url string) (Blob, error) {
	if b, ok := c.Get(url); ok {
		return b, nil
	}
	v, err, _ := c.group.Do(url, func() (any, error) {
		return c.fetchAndStore(ctx, url)
	})
	if err != nil {
		return Blob{}, err
	}
	return v.(Blob), nil
}

// Wait blocks until every scheduled prefetch has finished
func (c *Cache) Wait() {
	c.pending.Wait()
}

// Len returns the number of entries, fresh or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

// SetLimits changes capacity and max age, trimming immediately if needed
func (c *Cache) SetLimits(maxEntries int, maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxEntries > 0 {
		c.maxEntries = maxEntries
	}
	if maxAge > 0 {
		c.maxAge = maxAge
	}
	for len(c.entries) > c.maxEntries {
		c.cleanupLocked(c.clock.Now())
	}
	metrics.ImageCacheEntries.Set(float64(len(c.entries)))
}

// Clear drops every entry. Prefetches already scheduled still run
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	metrics.ImageCacheEntries.Set(0)
}

// Close cancels prefetches that have not started and waits for running ones
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	for url, t := range c.timers {
		if t.Stop() {
			delete(c.inflight, url)
			c.pending.Done()
		}
		delete(c.timers, url)
	}
	c.mu.Unlock()

	c.pending.Wait()
}

// dispatch runs when a prefetch timer fires
func (c *Cache) dispatch(ctx context.Context, url string) {
	c.mu.Lock()
	delete(c.timers, url)
	c.mu.Unlock()

	c.pool.Go(func() error {
		defer c.pending.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, url)
			c.mu.Unlock()
		}()

		if err := ctx.Err(); err != nil {
			c.logger.Debug("image prefetch skipped", "url", url, "error", err)
			return nil
		}
		_, err, _ := c.group.Do(url, func() (any, error) {
			return c.fetchAndStore(ctx, url)
		})
		if err != nil {
			// Sibling prefetches are unaffected; the view falls back to a direct load
			c.logger.Warn("image prefetch failed", "url", url, "error", err)
		}
		return nil
	})
}

func (c *Cache) fetchAndStore(ctx context.Context, url string) (Blob, error) {
	data, contentType, err := c.fetcher.Fetch(ctx, url)

	c.mu.Lock()
	c.stats.Fetches++
	if err != nil {
		c.stats.FetchErrors++
	}
	c.mu.Unlock()

	if err != nil {
		metrics.ImageCacheFetches.WithLabelValues("error").Inc()
		return Blob{}, err
	}
	metrics.ImageCacheFetches.WithLabelValues("ok").Inc()

	blob := normalize(data, contentType, c.maxDimension)
	c.insert(url, blob)
	return blob, nil
}

func (c *Cache) insert(url string, blob Blob) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	now := c.clock.Now()
	if _, exists := c.entries[url]; !exists && len(c.entries) >= c.maxEntries {
		c.cleanupLocked(now)
	}
	c.entries[url] = &Entry{URL: url, Blob: blob, Timestamp: now}
	metrics.ImageCacheEntries.Set(float64(len(c.entries)))
}

// cleanupLocked makes room for one more entry
func (c *Cache) cleanupLocked(now time.Time) {
	expired := 0
	for url, e := range c.entries {
		if !c.freshLocked(e, now) {
			delete(c.entries, url)
			expired++
		}
	}
	if expired > 0 {
		c.stats.Evictions += int64(expired)
		metrics.ImageCacheEvictions.WithLabelValues("expired").Add(float64(expired))
	}

	if len(c.entries) < c.maxEntries {
		return
	}

	oldest := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		oldest = append(oldest, e)
	}
	sort.Slice(oldest, func(i, j int) bool {
		return oldest[i].Timestamp.Before(oldest[j].Timestamp)
	})

	n := int(math.Ceil(float64(len(oldest)) * trimFraction))
	if need := len(oldest) - c.maxEntries + 1; n < need {
		n = need
	}
	for _, e := range oldest[:n] {
		delete(c.entries, e.URL)
	}
	c.stats.Evictions += int64(n)
	metrics.ImageCacheEvictions.WithLabelValues("capacity").Add(float64(n))
	c.logger.Debug("image cache trimmed", "expired", expired, "evicted", n, "size", len(c.entries))
}

func (c *Cache) freshLocked(e *Entry, now time.Time) bool {
	return now.Sub(e.Timestamp) < c.maxAge
}
