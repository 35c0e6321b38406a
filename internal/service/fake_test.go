package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/player"
)

type fakeSource struct {
	mu    sync.Mutex
	films []*domain.Film
	err   error
	calls atomic.Int32
}

func (f *fakeSource) GetFilms(ctx context.Context) ([]*domain.Film, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.films, nil
}

func (f *fakeSource) GetFilm(ctx context.Context, id string) (*domain.Film, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, film := range f.films {
		if film.ID == id {
			return film, nil
		}
	}
	return nil, domain.ErrFilmNotFound
}

type fakeCovers struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeCovers) Preload(ctx context.Context, urls []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, urls...)
	return len(urls)
}

// stubSurface accepts every command and lets tests emit media events
type stubSurface struct {
	mu       sync.Mutex
	handlers map[player.EventType][]func(player.MediaEvent)
	loaded   []string
	seeks    []float64
}

func newStubSurface() *stubSurface {
	return &stubSurface{handlers: make(map[player.EventType][]func(player.MediaEvent))}
}

func (s *stubSurface) Load(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = append(s.loaded, url)
	return nil
}

func (s *stubSurface) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeks = append(s.seeks, seconds)
	return nil
}

func (s *stubSurface) Unload() error                      { return nil }
func (s *stubSurface) Play() error                        { return nil }
func (s *stubSurface) Pause() error                       { return nil }
func (s *stubSurface) SetVolume(float64) error            { return nil }
func (s *stubSurface) SetMuted(bool) error                { return nil }
func (s *stubSurface) SetRate(float64) error              { return nil }
func (s *stubSurface) CanPlayNative(mimeType string) bool { return true }

func (s *stubSurface) Subscribe(t player.EventType, fn func(player.MediaEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[t] = append(s.handlers[t], fn)
	i := len(s.handlers[t]) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.handlers[t][i] = nil
	}
}

func (s *stubSurface) emit(ev player.MediaEvent) {
	s.mu.Lock()
	fns := append([]func(player.MediaEvent){}, s.handlers[ev.Type]...)
	s.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(ev)
		}
	}
}
