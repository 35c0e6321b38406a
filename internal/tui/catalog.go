package tui

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/reel/internal/clock"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/scroll"
	"github.com/mmcdole/reel/internal/service"
	"github.com/mmcdole/reel/internal/wave"
)

const (
	// AllView is the key of the unfiltered catalog view
	AllView = "all"

	searchViewPrefix = "search:"

	// waveMargin is the number of rows below the viewport at which the next wave is requested
	waveMargin = 5
)

// SearchViewKey returns the view key for a search query
func SearchViewKey(query string) string {
	return searchViewPrefix + strings.ToLower(strings.TrimSpace(query))
}

// viewEnv is what a catalog view needs from the program
type viewEnv struct {
	session   domain.SessionStore
	waveCount int
	clock     clock.Clock
	logger    *slog.Logger
	post      func(tea.Msg)
}

// listTarget exposes a catalog view's selected row to the scroll restorer.
// The restorer applies positions from a timer goroutine, so ScrollTo posts
// a message instead of touching the view
type listTarget struct {
	view string
	post func(tea.Msg)

	mu  sync.Mutex
	row int
}

func (t *listTarget) Offset() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return 0, t.row
}

func (t *listTarget) ScrollTo(_, y int) {
	t.post(ScrollRestoredMsg{View: t.view, Row: y})
}

func (t *listTarget) set(row int) {
	t.mu.Lock()
	t.row = row
	t.mu.Unlock()
}

// catalogView is one list of films with its own reveal and scroll state
type catalogView struct {
	key      string
	films    []*domain.Film
	matches  map[string]service.SearchResult
	waves    *wave.Loader[*domain.Film]
	target   *listTarget
	restorer *scroll.Restorer

	cursor int
	offset int
	height int
	want   int // row a restore is still revealing waves for, -1 when none
}

func newCatalogView(key string, env viewEnv) *catalogView {
	v := &catalogView{
		key:    key,
		target: &listTarget{view: key, post: env.post},
		height: 1,
		want:   -1,
	}
	logger := env.logger.With("view", key)
	v.waves = wave.New[*domain.Film](wave.Options{
		WaveCount: env.waveCount,
		Margin:    waveMargin,
		Clock:     env.clock,
		Logger:    logger,
		OnAdvance: func(s wave.State) {
			env.post(WaveAdvancedMsg{View: key, State: s})
		},
	})
	v.restorer = scroll.New(env.session, key, v.target, scroll.Options{
		Clock:  env.clock,
		Logger: logger,
	})
	return v
}

// SetFilms replaces the list. Reloading the same collection keeps the revealed
// waves; a different collection starts again from the first wave
func (v *catalogView) SetFilms(films []*domain.Film) {
	v.films = films
	v.waves.SetItems(collectionID(films), films)
	v.clamp()
}

// collectionID identifies a film list by its count and the order of its IDs
func collectionID(films []*domain.Film) string {
	h := fnv.New64a()
	for _, f := range films {
		h.Write([]byte(f.ID))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%d:%x", len(films), h.Sum64())
}

// SetResults replaces the list with search results
func (v *catalogView) SetResults(results []service.SearchResult) {
	films := make([]*domain.Film, len(results))
	v.matches = make(map[string]service.SearchResult, len(results))
	for i, r := range results {
		films[i] = r.Film
		v.matches[r.Film.ID] = r
	}
	v.SetFilms(films)
}

// Visible returns the revealed films
func (v *catalogView) Visible() []*domain.Film {
	return v.waves.Visible()
}

// Selected returns the film under the cursor, nil when the list is empty
func (v *catalogView) Selected() *domain.Film {
	visible := v.Visible()
	if v.cursor < 0 || v.cursor >= len(visible) {
		return nil
	}
	return visible[v.cursor]
}

// Match returns the search match for film, if this is a search view
func (v *catalogView) Match(id string) (service.SearchResult, bool) {
	r, ok := v.matches[id]
	return r, ok
}

// SetHeight sets the number of rows the list can show
func (v *catalogView) SetHeight(h int) {
	v.height = max(1, h)
	v.clamp()
}

// Move moves the cursor by delta rows and records the new position
func (v *catalogView) Move(delta int) {
	v.MoveTo(v.cursor + delta)
}

// MoveTo places the cursor on row and records the new position
func (v *catalogView) MoveTo(row int) {
	v.want = -1
	v.cursor = row
	v.clamp()
	v.target.set(v.cursor)
	v.restorer.Save()
	v.Reveal()
}

// Reveal asks for the next wave when the viewport is near the end of the visible rows
func (v *catalogView) Reveal() bool {
	distance := len(v.Visible()) - (v.offset + v.height)
	return v.waves.Intersect(max(0, distance))
}

// ApplyRestore moves to a restored row. Rows not yet revealed are reached
// by requesting waves until the row is visible
func (v *catalogView) ApplyRestore(row int) {
	v.want = row
	v.settle()
}

// Advanced is called after a wave was revealed
func (v *catalogView) Advanced() {
	if v.want >= 0 {
		v.settle()
		return
	}
	v.Reveal()
}

func (v *catalogView) settle() {
	visible := len(v.Visible())
	v.cursor = v.want
	v.clamp()
	v.target.set(v.cursor)
	if v.want < visible || v.waves.State().Done() {
		v.want = -1
		return
	}
	v.waves.Intersect(0)
}

// Leave saves the position immediately, before the view is hidden
func (v *catalogView) Leave() {
	v.restorer.SaveNow()
}

// Close stops the view's timers
func (v *catalogView) Close() {
	v.waves.Stop()
	v.restorer.Close()
}

// Window returns the offset and rows currently on screen
func (v *catalogView) Window() (int, []*domain.Film) {
	visible := v.Visible()
	end := min(len(visible), v.offset+v.height)
	if v.offset >= end {
		return v.offset, nil
	}
	return v.offset, visible[v.offset:end]
}

func (v *catalogView) clamp() {
	n := len(v.Visible())
	if v.cursor >= n {
		v.cursor = n - 1
	}
	if v.cursor < 0 {
		v.cursor = 0
	}
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	if v.cursor >= v.offset+v.height {
		v.offset = v.cursor - v.height + 1
	}
	if maxOffset := max(0, n-v.height); v.offset > maxOffset {
		v.offset = maxOffset
	}
	if v.offset < 0 {
		v.offset = 0
	}
}
