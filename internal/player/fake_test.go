package player

import (
	"context"
	"errors"
	"sync"
)

// fakeSurface records calls and lets tests emit media events
type fakeSurface struct {
	mu       sync.Mutex
	handlers map[EventType]map[int]func(MediaEvent)
	nextID   int

	native  bool
	loadErr error
	seekErr error

	loaded  []string
	seeks   []float64
	plays   int
	pauses  int
	unloads int
	volume  float64
	muted   bool
	rate    float64
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{handlers: make(map[EventType]map[int]func(MediaEvent)), volume: 1, rate: 1}
}

func (f *fakeSurface) Load(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = append(f.loaded, url)
	return nil
}

func (f *fakeSurface) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads++
	return nil
}

func (f *fakeSurface) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeSurface) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeSurface) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seekErr != nil {
		return f.seekErr
	}
	f.seeks = append(f.seeks, seconds)
	return nil
}

func (f *fakeSurface) SetVolume(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	return nil
}

func (f *fakeSurface) SetMuted(m bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = m
	return nil
}

func (f *fakeSurface) SetRate(r float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = r
	return nil
}

func (f *fakeSurface) CanPlayNative(mimeType string) bool {
	return f.native && mimeType == HLSMimeType
}

func (f *fakeSurface) Subscribe(t EventType, fn func(MediaEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[t] == nil {
		f.handlers[t] = make(map[int]func(MediaEvent))
	}
	id := f.nextID
	f.nextID++
	f.handlers[t][id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[t], id)
	}
}

func (f *fakeSurface) emit(ev MediaEvent) {
	f.mu.Lock()
	var fns []func(MediaEvent)
	for _, fn := range f.handlers[ev.Type] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *fakeSurface) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, hs := range f.handlers {
		n += len(hs)
	}
	return n
}

func (f *fakeSurface) seekLog() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.seeks...)
}

// fakeEngine hands out sessions whose events the test triggers
type fakeEngine struct {
	supported bool
	err       error
	sessions  []*fakeSession
}

type fakeSession struct {
	url       string
	onEvent   func(AdaptiveEvent)
	destroyed bool
}

func (s *fakeSession) Destroy() { s.destroyed = true }

func (s *fakeSession) parsed(duration float64) {
	s.onEvent(AdaptiveEvent{Kind: AdaptiveManifestParsed, Duration: duration, URL: s.url})
}

func (s *fakeSession) fail(fatal bool, category ErrorCategory) {
	s.onEvent(AdaptiveEvent{Kind: AdaptiveError, Fatal: fatal, Category: category, Err: errors.New("fragment load error")})
}

func (e *fakeEngine) Supported() bool { return e.supported }

func (e *fakeEngine) NewSession(_ context.Context, url string, onEvent func(AdaptiveEvent)) (AdaptiveSession, error) {
	if e.err != nil {
		return nil, e.err
	}
	s := &fakeSession{url: url, onEvent: onEvent}
	e.sessions = append(e.sessions, s)
	return s, nil
}

func (e *fakeEngine) last() *fakeSession {
	return e.sessions[len(e.sessions)-1]
}
