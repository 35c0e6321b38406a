package tui

import (
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/loader"
	"github.com/mmcdole/reel/internal/player"
	"github.com/mmcdole/reel/internal/wave"
)

// Catalog messages

// CatalogLoadedMsg is sent when the film list is available
type CatalogLoadedMsg struct {
	Films  []*domain.Film
	Result domain.SyncResult
	Forced bool
}

// CoverLoadedMsg is sent when the selected film's cover has been fetched
type CoverLoadedMsg struct {
	URL string
	Err error
}

// LoaderStateMsg carries a global loading state update
type LoaderStateMsg struct {
	State loader.State
}

// LoaderClosedMsg is sent when the loader broadcast ends
type LoaderClosedMsg struct{}

// WaveAdvancedMsg is sent when a catalog view revealed another wave
type WaveAdvancedMsg struct {
	View  string
	State wave.State
}

// ScrollRestoredMsg is sent when a catalog view's saved position is re-applied
type ScrollRestoredMsg struct {
	View string
	Row  int
}

// ForgetDoneMsg is sent after local state was cleared
type ForgetDoneMsg struct{}

// Player messages

// PlaybackStartedMsg is sent when a player surface is ready and the film mounted
type PlaybackStartedMsg struct {
	Film       *domain.Film
	Controller *player.Controller
}

// PlaybackFailedMsg is sent when the player could not be started for a film
type PlaybackFailedMsg struct {
	Film *domain.Film
	Err  error
}

// PlayerChangedMsg is sent whenever the playback session changed
type PlayerChangedMsg struct {
	Controller *player.Controller
}

// Error and status messages

// ErrMsg is sent when an error occurs
type ErrMsg struct {
	Err     error
	Context string
}

// StatusMsg displays a status message
type StatusMsg struct {
	Message string
	IsError bool
}

// ClearStatusMsg clears the status message
type ClearStatusMsg struct{}

// TickMsg is sent periodically for animations
type TickMsg struct{}
