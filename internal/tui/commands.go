package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/imagecache"
	"github.com/mmcdole/reel/internal/loader"
	"github.com/mmcdole/reel/internal/player"
)

const (
	catalogTimeout  = 60 * time.Second
	playbackTimeout = 20 * time.Second
	coverTimeout    = 15 * time.Second
)

// Library is the catalog as the TUI sees it
type Library interface {
	Films(ctx context.Context) ([]*domain.Film, domain.SyncResult, error)
	Sync(ctx context.Context, force bool) (domain.SyncResult, error)
	Cached() []*domain.Film
	PrefetchCovers(ctx context.Context, films []*domain.Film) int
}

// PlayerBackend supplies a media surface and its fullscreen providers,
// the surface's own first
type PlayerBackend interface {
	Open(ctx context.Context) (player.Surface, []player.FullscreenProvider, error)
}

// Playback creates controllers and answers saved-position queries
type Playback interface {
	NewController(film *domain.Film, surface player.Surface, fullscreen ...player.FullscreenProvider) (*player.Controller, error)
	Progress(filmID string) (domain.Progress, bool)
	ResumeAt(film *domain.Film) float64
}

// CoverSource is the shared poster cache
type CoverSource interface {
	Get(url string) (imagecache.Blob, bool)
	Fetch(ctx context.Context, url string) (imagecache.Blob, error)
}

// LoadCatalogCmd loads the film list. force skips the stored snapshot
func LoadCatalogCmd(lib Library, force bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
		defer cancel()

		if force {
			res, err := lib.Sync(ctx, true)
			if err != nil {
				return ErrMsg{Err: err, Context: "refreshing catalog"}
			}
			return CatalogLoadedMsg{Films: lib.Cached(), Result: res, Forced: true}
		}

		films, res, err := lib.Films(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading catalog"}
		}
		return CatalogLoadedMsg{Films: films, Result: res}
	}
}

// StartPlaybackCmd opens a player surface and mounts film on a new controller
func StartPlaybackCmd(backend PlayerBackend, playback Playback, film *domain.Film) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), playbackTimeout)
		defer cancel()

		surface, fullscreen, err := backend.Open(ctx)
		if err != nil {
			return PlaybackFailedMsg{Film: film, Err: err}
		}
		ctrl, err := playback.NewController(film, surface, fullscreen...)
		if err != nil {
			return PlaybackFailedMsg{Film: film, Err: err}
		}
		return PlaybackStartedMsg{Film: film, Controller: ctrl}
	}
}

// FetchCoverCmd fetches one poster into the cache
func FetchCoverCmd(covers CoverSource, url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), coverTimeout)
		defer cancel()
		_, err := covers.Fetch(ctx, url)
		return CoverLoadedMsg{URL: url, Err: err}
	}
}

// ForgetCmd clears the stored catalog, saved positions and scroll records
func ForgetCmd(forget func()) tea.Cmd {
	return func() tea.Msg {
		forget()
		return ForgetDoneMsg{}
	}
}

// WaitLoaderCmd delivers the next global loading state
func WaitLoaderCmd(states <-chan loader.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-states
		if !ok {
			return LoaderClosedMsg{}
		}
		return LoaderStateMsg{State: s}
	}
}

// WaitEventCmd delivers the next message posted from a background goroutine
func WaitEventCmd(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// WaitPlayerCmd delivers the next change of a playback session
func WaitPlayerCmd(ctrl *player.Controller) tea.Cmd {
	return func() tea.Msg {
		<-ctrl.Changes()
		return PlayerChangedMsg{Controller: ctrl}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClearStatusCmd returns a command that clears the status after a delay
func ClearStatusCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
