package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/reel/internal/clock"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/loader"
	"github.com/mmcdole/reel/internal/player"
	"github.com/mmcdole/reel/internal/service"
	"github.com/mmcdole/reel/internal/tui/components"
)

const (
	tickInterval  = 100 * time.Millisecond
	statusTimeout = 4 * time.Second
	eventBuffer   = 64
	maxPosters    = 64

	// DefaultNarrowWidth is the terminal width, in columns, below which playback controls are left to the player window
	DefaultNarrowWidth = 80
)

// Screen is the top-level screen being shown
type Screen int

const (
	ScreenCatalog Screen = iota
	ScreenPlayer
)

// Deps are the services the TUI drives
type Deps struct {
	Library   Library
	Playback  Playback
	Search    *service.SearchService
	Forget    func()
	Covers    CoverSource
	Loader    *loader.Loader
	Player    PlayerBackend
	Session   domain.SessionStore
	WaveCount int
	// NarrowWidth is the terminal width below which the player window's own controls are used
	NarrowWidth int
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Model is the main application model
type Model struct {
	deps   Deps
	logger *slog.Logger

	// Background goroutines (wave and scroll timers) post here
	events     chan tea.Msg
	loaderCh   <-chan loader.State
	stopLoader func()

	// Catalog
	views         map[string]*catalogView
	current       string
	films         []*domain.Film
	catalogLoaded bool
	query         string
	searchInput   textinput.Model
	searching     bool

	// Inspector
	inspector     components.Inspector
	showInspector bool
	posters       map[string]string
	coverPending  map[string]bool
	coverFailed   map[string]bool

	// Player
	screen   Screen
	film     *domain.Film
	ctrl     *player.Controller
	starting *domain.Film

	// Chrome
	loading      loader.State
	status       string
	statusErr    bool
	spinnerFrame int
	showHelp     bool
	width        int
	height       int
}

// NewModel creates a new application model
func NewModel(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Clock = clock.OrReal(deps.Clock)
	if deps.NarrowWidth <= 0 {
		deps.NarrowWidth = DefaultNarrowWidth
	}

	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = "title, genre or description"
	input.CharLimit = 100

	m := Model{
		deps:          deps,
		logger:        deps.Logger,
		events:        make(chan tea.Msg, eventBuffer),
		views:         make(map[string]*catalogView),
		current:       AllView,
		searchInput:   input,
		inspector:     components.NewInspector(),
		showInspector: true,
		posters:       make(map[string]string),
		coverPending:  make(map[string]bool),
		coverFailed:   make(map[string]bool),
	}
	m.views[AllView] = newCatalogView(AllView, m.viewEnv())
	if deps.Loader != nil {
		m.loaderCh, m.stopLoader = deps.Loader.Subscribe()
	}
	return m
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		LoadCatalogCmd(m.deps.Library, false),
		WaitEventCmd(m.events),
		TickCmd(tickInterval),
	}
	if m.loaderCh != nil {
		cmds = append(cmds, WaitLoaderCmd(m.loaderCh))
	}
	return tea.Batch(cmds...)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		if m.ctrl != nil {
			m.ctrl.SetViewport(m.viewport())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if m.ctrl != nil && m.screen == ScreenPlayer {
			m.ctrl.PointerMoved()
		}
		return m, nil

	case TickMsg:
		m.spinnerFrame++
		return m, TickCmd(tickInterval)

	case CatalogLoadedMsg:
		return m.catalogLoadedMsg(msg)

	case LoaderStateMsg:
		m.loading = msg.State
		return m, WaitLoaderCmd(m.loaderCh)

	case LoaderClosedMsg:
		m.loaderCh = nil
		return m, nil

	case WaveAdvancedMsg:
		if v, ok := m.views[msg.View]; ok {
			v.Advanced()
			if msg.View == m.current {
				m.prefetchWindow()
				m.updateInspector()
			}
		}
		return m, WaitEventCmd(m.events)

	case ScrollRestoredMsg:
		if v, ok := m.views[msg.View]; ok {
			v.ApplyRestore(msg.Row)
			if msg.View == m.current {
				cmd := m.selectionChanged()
				return m, tea.Batch(WaitEventCmd(m.events), cmd)
			}
		}
		return m, WaitEventCmd(m.events)

	case CoverLoadedMsg:
		delete(m.coverPending, msg.URL)
		if msg.Err != nil {
			m.coverFailed[msg.URL] = true
			m.logger.Debug("cover unavailable", "url", msg.URL, "error", msg.Err)
		}
		m.updateInspector()
		return m, nil

	case PlaybackStartedMsg:
		if m.starting == nil || m.starting.ID != msg.Film.ID {
			// navigated away while the player was starting
			msg.Controller.Unmount()
			return m, nil
		}
		m.starting = nil
		m.screen = ScreenPlayer
		m.film = msg.Film
		m.ctrl = msg.Controller
		m.ctrl.SetViewport(m.viewport())
		m.status = ""
		return m, WaitPlayerCmd(m.ctrl)

	case PlayerChangedMsg:
		if msg.Controller != m.ctrl {
			return m, nil
		}
		return m, WaitPlayerCmd(m.ctrl)

	case ForgetDoneMsg:
		m.posters = make(map[string]string)
		m.coverFailed = make(map[string]bool)
		return m.setStatus("Local data cleared", false, LoadCatalogCmd(m.deps.Library, true))

	case PlaybackFailedMsg:
		if m.starting != nil && m.starting.ID == msg.Film.ID {
			m.starting = nil
		}
		return m.errMsg(ErrMsg{Err: msg.Err, Context: "starting playback"})

	case ErrMsg:
		return m.errMsg(msg)

	case StatusMsg:
		return m.setStatus(msg.Message, msg.IsError)

	case ClearStatusMsg:
		m.status = ""
		m.statusErr = false
		return m, nil
	}

	if m.searching {
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) catalogLoadedMsg(msg CatalogLoadedMsg) (tea.Model, tea.Cmd) {
	m.films = msg.Films
	if m.deps.Search != nil {
		m.deps.Search.Index(msg.Films)
	}

	all := m.views[AllView]
	all.SetFilms(msg.Films)
	if !m.catalogLoaded {
		m.catalogLoaded = true
		all.restorer.Restore()
	}
	if m.query != "" && m.deps.Search != nil {
		m.views[m.current].SetResults(m.deps.Search.Search(m.query))
	}

	m.logger.Info("catalog loaded", "count", len(msg.Films), "fromCache", msg.Result.FromCache)
	cmd := m.selectionChanged()

	switch {
	case !msg.Forced:
		return m, cmd
	case msg.Result.FromCache:
		return m.setStatus("Catalog unreachable, showing saved copy", true, cmd)
	}
	return m.setStatus(fmt.Sprintf("Catalog refreshed: %d films", len(msg.Films)), false, cmd)
}

func (m Model) errMsg(msg ErrMsg) (tea.Model, tea.Cmd) {
	m.logger.Error("operation failed", "context", msg.Context, "error", msg.Err)

	text := msg.Err.Error()
	switch {
	case errors.Is(msg.Err, domain.ErrCatalogOffline):
		text = "Catalog unreachable, press r to retry"
	case errors.Is(msg.Err, context.DeadlineExceeded):
		text = "Timed out"
	}
	if msg.Context != "" {
		text = msg.Context + ": " + text
	}
	return m.setStatus(text, true)
}

func (m Model) setStatus(text string, isErr bool, cmds ...tea.Cmd) (tea.Model, tea.Cmd) {
	m.status = text
	m.statusErr = isErr
	cmds = append(cmds, ClearStatusCmd(statusTimeout))
	return m, tea.Batch(cmds...)
}

// Close releases background resources. Call it after the program exits
func (m Model) Close() {
	if m.ctrl != nil {
		m.ctrl.Unmount()
	}
	for _, v := range m.views {
		v.Leave()
		v.Close()
	}
	if m.stopLoader != nil {
		m.stopLoader()
	}
}

func (m Model) viewEnv() viewEnv {
	events := m.events
	logger := m.logger
	return viewEnv{
		session:   m.deps.Session,
		waveCount: m.deps.WaveCount,
		clock:     m.deps.Clock,
		logger:    logger,
		post: func(msg tea.Msg) {
			select {
			case events <- msg:
			default:
				logger.Debug("event queue full, delivering asynchronously")
				go func() { events <- msg }()
			}
		},
	}
}

func (m Model) viewport() player.Viewport {
	return player.Viewport{Width: m.width, NarrowWidth: m.deps.NarrowWidth}
}

func (m Model) view() *catalogView {
	return m.views[m.current]
}

// selectionChanged refreshes everything that follows the selected film
func (m *Model) selectionChanged() tea.Cmd {
	m.prefetchWindow()
	m.updateInspector()
	return m.fetchSelectedCover()
}

// prefetchWindow queues the posters of the rows on screen
func (m *Model) prefetchWindow() {
	if m.deps.Library == nil {
		return
	}
	_, window := m.view().Window()
	if len(window) > 0 {
		m.deps.Library.PrefetchCovers(context.Background(), window)
	}
}

func (m *Model) fetchSelectedCover() tea.Cmd {
	f := m.view().Selected()
	if !m.showInspector || f == nil || f.Cover == "" || m.deps.Covers == nil {
		return nil
	}
	if _, ok := m.deps.Covers.Get(f.Cover); ok || m.coverPending[f.Cover] || m.coverFailed[f.Cover] {
		return nil
	}
	m.coverPending[f.Cover] = true
	m.updateInspector()
	return FetchCoverCmd(m.deps.Covers, f.Cover)
}

// updateInspector syncs the inspector with the selected film
func (m *Model) updateInspector() {
	v := m.view()
	f := v.Selected()
	m.inspector.SetFilm(f)
	if f == nil {
		return
	}

	m.inspector.SetProgress(nil)
	if m.deps.Playback != nil {
		if p, ok := m.deps.Playback.Progress(f.ID); ok {
			m.inspector.SetProgress(&p)
		}
	}

	note := ""
	if r, ok := v.Match(f.ID); ok {
		switch r.Field {
		case service.MatchGenre:
			note = "matched genre"
		case service.MatchDescription:
			note = "matched description"
		}
	}
	m.inspector.SetMatchNote(note)

	m.inspector.SetCover(m.coverState(f), m.poster(f))
}

func (m *Model) coverState(f *domain.Film) components.CoverState {
	switch {
	case f.Cover == "" || m.deps.Covers == nil:
		return components.CoverNone
	case m.coverFailed[f.Cover]:
		return components.CoverFailed
	case m.coverPending[f.Cover]:
		return components.CoverLoading
	}
	if _, ok := m.deps.Covers.Get(f.Cover); ok {
		return components.CoverCached
	}
	return components.CoverLoading
}

// poster returns the rendered poster of f, rendering it on first use
func (m *Model) poster(f *domain.Film) string {
	if f.Cover == "" || m.deps.Covers == nil {
		return ""
	}
	cols, rows := m.inspector.PosterSize()
	if cols < 8 || rows < 4 {
		return ""
	}
	key := fmt.Sprintf("%s@%dx%d", f.Cover, cols, rows)
	if p, ok := m.posters[key]; ok {
		return p
	}
	blob, ok := m.deps.Covers.Get(f.Cover)
	if !ok {
		return ""
	}
	p, err := components.RenderPoster(blob.Data, cols, rows)
	if err != nil {
		m.logger.Debug("poster not renderable", "url", f.Cover, "error", err)
		return ""
	}
	if len(m.posters) >= maxPosters {
		m.posters = make(map[string]string)
	}
	m.posters[key] = p
	return p
}
