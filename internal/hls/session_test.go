package hls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mmcdole/reel/internal/player"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubSurface records the URLs the controller binds. Loads of URLs ending in
// hold block until release is closed
type stubSurface struct {
	hold    string
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	loaded []string
}

func (s *stubSurface) Load(url string) error {
	if s.hold != "" && strings.HasSuffix(url, s.hold) {
		s.entered <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = append(s.loaded, url)
	return nil
}

func (s *stubSurface) urls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loaded...)
}

func (s *stubSurface) Unload() error { return nil }
func (s *stubSurface) Play() error { return nil }
func (s *stubSurface) Pause() error { return nil }
func (s *stubSurface) Seek(float64) error { return nil }
func (s *stubSurface) SetVolume(float64) error { return nil }
func (s *stubSurface) SetMuted(bool) error { return nil }
func (s *stubSurface) SetRate(float64) error { return nil }
func (s *stubSurface) CanPlayNative(string) bool { return false }
func (s *stubSurface) Subscribe(player.EventType, func(player.MediaEvent)) func() {
	return func() {}
}

type eventLog struct {
	mu     sync.Mutex
	events []player.AdaptiveEvent
}

func (l *eventLog) add(ev player.AdaptiveEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []player.AdaptiveEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]player.AdaptiveEvent(nil), l.events...)
}

func startSession(t *testing.T, e *Engine, url string) (*Session, *eventLog) {
	t.Helper()
	log := &eventLog{}
	s, err := e.NewSession(context.Background(), url, log.add)
	require.NoError(t, err)
	return s.(*Session), log
}

func wait(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestSession_MasterSelectsVariant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/films/42/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360\nlow.m3u8\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720\nmid.m3u8\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080\nhigh.m3u8\n"))
	})
	mux.HandleFunc("/films/42/mid.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mediaPlaylist))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewEngine(Options{Client: srv.Client(), MaxBandwidth: 3000000})
	s, log := startSession(t, e, srv.URL+"/films/42/master.m3u8")
	wait(t, s)

	assert.Equal(t, 720, s.Variant().Height)

	events := log.all()
	require.Len(t, events, 1)
	assert.Equal(t, player.AdaptiveManifestParsed, events[0].Kind)
	assert.Equal(t, srv.URL+"/films/42/mid.m3u8", events[0].URL)
	assert.InDelta(t, 24.5, events[0].Duration, 1e-9)
}

func TestSession_MediaPlaylistBoundDirectly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mediaPlaylist))
	}))
	defer srv.Close()

	s, log := startSession(t, NewEngine(Options{Client: srv.Client()}), srv.URL+"/index.m3u8?token=abc")
	wait(t, s)

	events := log.all()
	require.Len(t, events, 1)
	assert.Equal(t, srv.URL+"/index.m3u8?token=abc", events[0].URL)
}

func TestSession_RetriesThenRecovers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(mediaPlaylist))
	}))
	defer srv.Close()

	e := NewEngine(Options{Client: srv.Client(), Retries: 3, RetryDelay: time.Millisecond})
	s, log := startSession(t, e, srv.URL+"/index.m3u8")
	wait(t, s)

	events := log.all()
	require.Len(t, events, 3)
	for _, ev := range events[:2] {
		assert.Equal(t, player.AdaptiveError, ev.Kind)
		assert.False(t, ev.Fatal)
		assert.Equal(t, player.CategoryNetwork, ev.Category)
	}
	assert.Equal(t, player.AdaptiveManifestParsed, events[2].Kind)
}

func TestSession_RetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	e := NewEngine(Options{Client: srv.Client(), Retries: 2, RetryDelay: time.Millisecond})
	s, log := startSession(t, e, srv.URL+"/index.m3u8")
	wait(t, s)

	assert.Equal(t, int32(3), hits.Load())

	events := log.all()
	require.Len(t, events, 4)
	last := events[3]
	assert.True(t, last.Fatal)
	assert.Equal(t, player.CategoryNetwork, last.Category)
}

func TestSession_ClientErrorIsFatalImmediately(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := NewEngine(Options{Client: srv.Client(), RetryDelay: time.Millisecond})
	s, log := startSession(t, e, srv.URL+"/gone.m3u8")
	wait(t, s)

	assert.Equal(t, int32(1), hits.Load())
	events := log.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].Fatal)
	assert.Equal(t, player.CategoryNetwork, events[0].Category)
}

func TestSession_GarbageIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	s, log := startSession(t, NewEngine(Options{Client: srv.Client()}), srv.URL+"/index.m3u8")
	wait(t, s)

	events := log.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].Fatal)
	assert.Equal(t, player.CategoryDecode, events[0].Category)
}

func TestSession_DestroyCancels(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	s, log := startSession(t, NewEngine(Options{Client: srv.Client()}), srv.URL+"/index.m3u8")
	s.Destroy()
	s.Destroy()
	wait(t, s)

	assert.Empty(t, log.all())
}

func TestEngine_Supported(t *testing.T) {
	assert.True(t, NewEngine(Options{}).Supported())
	assert.False(t, NewEngine(Options{Disabled: true}).Supported())
}

func TestEngine_DrivesController(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mediaPlaylist))
	}))
	defer srv.Close()

	surface := &stubSurface{}
	c := player.New(surface, player.Options{Engine: NewEngine(Options{Client: srv.Client()})})
	require.NoError(t, c.Mount(player.Source{URL: srv.URL + "/stream.m3u8", Adaptive: true, ResumeAt: 12}))

	require.Eventually(t, func() bool {
		return c.State() == player.StatePaused
	}, 5*time.Second, 5*time.Millisecond)

	s := c.Session()
	assert.True(t, s.Adaptive)
	assert.InDelta(t, 24.5, s.Duration, 1e-9)
	assert.Equal(t, 12.0, s.CurrentTime)
	assert.Equal(t, []string{srv.URL + "/stream.m3u8"}, surface.urls())
	c.Unmount()
}

func TestEngine_SourceChangeDuringBindWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mediaPlaylist))
	}))
	defer srv.Close()

	surface := &stubSurface{
		hold:    ".m3u8",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := player.New(surface, player.Options{Engine: NewEngine(Options{Client: srv.Client()})})
	require.NoError(t, c.Mount(player.Source{URL: srv.URL + "/a.m3u8", Adaptive: true}))

	select {
	case <-surface.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("manifest stream was never bound")
	}

	switched := make(chan struct{})
	go func() {
		defer close(switched)
		assert.NoError(t, c.SetSource(player.Source{URL: "movie.mp4"}))
	}()

	// The switch waits for the bind in progress instead of racing it
	assert.Never(t, func() bool {
		select {
		case <-switched:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(surface.release)
	<-switched

	urls := surface.urls()
	require.NotEmpty(t, urls)
	assert.Equal(t, "movie.mp4", urls[len(urls)-1])
	assert.Equal(t, "movie.mp4", c.Session().SourceURL)
	assert.False(t, c.Session().Adaptive)
	c.Unmount()
}
