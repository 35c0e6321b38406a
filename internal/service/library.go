package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/reel/internal/clock"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/loader"
	"github.com/mmcdole/reel/internal/metrics"
)

const defaultCatalogTTL = 15 * time.Minute

// catalogSource fetches films from the catalog API (consumer-defined interface)
type catalogSource interface {
	GetFilms(ctx context.Context) ([]*domain.Film, error)
	GetFilm(ctx context.Context, id string) (*domain.Film, error)
}

// coverPreloader schedules poster downloads
type coverPreloader interface {
	Preload(ctx context.Context, urls []string) int
}

// LibraryOptions configures a LibraryService
type LibraryOptions struct {
	TTL    time.Duration // how long a stored snapshot stays fresh
	Loader *loader.Loader
	Covers coverPreloader
	Clock  clock.Clock
	Logger *slog.Logger
}

// LibraryService owns the film list: stored snapshot, network refresh and
// cover prefetching
type LibraryService struct {
	source catalogSource
	store  domain.Store
	loader *loader.Loader
	covers coverPreloader
	clock  clock.Clock
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	films []*domain.Film
	byID  map[string]*domain.Film

	group singleflight.Group
}

// NewLibraryService creates a new library service
func NewLibraryService(source catalogSource, store domain.Store, opts LibraryOptions) *LibraryService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultCatalogTTL
	}
	return &LibraryService{
		source: source,
		store:  store,
		loader: opts.Loader,
		covers: opts.Covers,
		clock:  clock.OrReal(opts.Clock),
		ttl:    opts.TTL,
		logger: opts.Logger,
		byID:   make(map[string]*domain.Film),
	}
}

// Films returns the catalog, from the stored snapshot while it is fresh and
// from the network otherwise
func (s *LibraryService) Films(ctx context.Context) ([]*domain.Film, domain.SyncResult, error) {
	res, err := s.Sync(ctx, false)
	if err != nil {
		return nil, res, err
	}
	return s.Cached(), res, nil
}

// Sync refreshes the catalog. Concurrent calls share one fetch.
// When the network fails and a stale snapshot exists, the snapshot is used
func (s *LibraryService) Sync(ctx context.Context, force bool) (domain.SyncResult, error) {
	if !force {
		if films, fetchedAt, ok := s.store.GetFilms(); ok && s.clock.Now().Sub(fetchedAt) < s.ttl {
			s.setFilms(films)
			metrics.CatalogSyncs.WithLabelValues("cache").Inc()
			s.logger.Debug("catalog snapshot fresh", "count", len(films), "fetchedAt", fetchedAt)
			return domain.SyncResult{FromCache: true, Count: len(films)}, nil
		}
	}

	v, err, _ := s.group.Do("films", func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return domain.SyncResult{}, err
	}
	return v.(domain.SyncResult), nil
}

func (s *LibraryService) fetch(ctx context.Context) (domain.SyncResult, error) {
	s.startLoading("Loading catalog")

	films, err := s.source.GetFilms(ctx)
	if err != nil {
		if stale, _, ok := s.store.GetFilms(); ok && !errors.Is(err, context.Canceled) {
			s.logger.Warn("catalog unreachable, using stored snapshot", "error", err, "count", len(stale))
			s.setFilms(stale)
			s.finishLoading()
			metrics.CatalogSyncs.WithLabelValues("cache").Inc()
			return domain.SyncResult{FromCache: true, Count: len(stale)}, nil
		}
		s.logger.Error("failed to fetch catalog", "error", err)
		metrics.CatalogSyncs.WithLabelValues("error").Inc()
		s.failLoading(err)
		return domain.SyncResult{}, err
	}
	s.progress(60, "Saving catalog")

	if err := s.store.SaveFilms(films, s.clock.Now()); err != nil {
		s.logger.Warn("failed to store catalog snapshot", "error", err)
	}
	s.setFilms(films)
	s.progress(90, "Fetching covers")
	// posters keep loading after the request that triggered the sync returns
	s.PrefetchCovers(context.WithoutCancel(ctx), films)

	s.finishLoading()
	metrics.CatalogSyncs.WithLabelValues("network").Inc()
	s.logger.Info("catalog synced", "count", len(films))
	return domain.SyncResult{Count: len(films)}, nil
}

// Cached returns the films currently held in memory
func (s *LibraryService) Cached() []*domain.Film {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Film, len(s.films))
	copy(out, s.films)
	return out
}

// Film returns a film by id, asking the catalog when it is not in the list
func (s *LibraryService) Film(ctx context.Context, id string) (*domain.Film, error) {
	s.mu.RLock()
	f, ok := s.byID[id]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}
	return s.source.GetFilm(ctx, id)
}

// PrefetchCovers queues the posters of films for download
func (s *LibraryService) PrefetchCovers(ctx context.Context, films []*domain.Film) int {
	if s.covers == nil {
		return 0
	}
	urls := make([]string, 0, len(films))
	for _, f := range films {
		if f.Cover != "" {
			urls = append(urls, f.Cover)
		}
	}
	n := s.covers.Preload(ctx, urls)
	if n > 0 {
		s.logger.Debug("scheduled cover prefetch", "count", n)
	}
	return n
}

// Invalidate drops the stored snapshot so the next Sync hits the network
func (s *LibraryService) Invalidate() {
	s.store.InvalidateFilms()
}

func (s *LibraryService) setFilms(films []*domain.Film) {
	byID := make(map[string]*domain.Film, len(films))
	for _, f := range films {
		byID[f.ID] = f
	}
	s.mu.Lock()
	s.films = films
	s.byID = byID
	s.mu.Unlock()
}

func (s *LibraryService) startLoading(msg string) {
	if s.loader != nil {
		s.loader.Start(msg)
	}
}

func (s *LibraryService) progress(pct float64, msg string) {
	if s.loader != nil {
		s.loader.SetProgress(pct, msg)
	}
}

func (s *LibraryService) finishLoading() {
	if s.loader != nil {
		s.loader.Finish()
	}
}

func (s *LibraryService) failLoading(err error) {
	if s.loader != nil {
		s.loader.Fail(err)
	}
}
