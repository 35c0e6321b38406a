package tui

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/clock"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/scroll"
	"github.com/mmcdole/reel/internal/service"
)

func testFilms(n int) []*domain.Film {
	films := make([]*domain.Film, n)
	for i := range films {
		films[i] = &domain.Film{
			ID:    fmt.Sprintf("f%02d", i),
			Title: fmt.Sprintf("Film %02d", i),
			Cover: fmt.Sprintf("https://img.example/%02d.jpg", i),
		}
	}
	return films
}

type viewHarness struct {
	clk   *clock.Manual
	store *scroll.MemoryStore
	msgs  []tea.Msg
}

func newViewHarness() *viewHarness {
	return &viewHarness{
		clk:   clock.NewManual(time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)),
		store: scroll.NewMemoryStore(),
	}
}

func (h *viewHarness) env(waveCount int) viewEnv {
	return viewEnv{
		session:   h.store,
		waveCount: waveCount,
		clock:     h.clk,
		logger:    slog.Default(),
		post:      func(msg tea.Msg) { h.msgs = append(h.msgs, msg) },
	}
}

// deliver hands posted messages to v the way the program loop does
func (h *viewHarness) deliver(v *catalogView) {
	msgs := h.msgs
	h.msgs = nil
	for _, msg := range msgs {
		switch msg := msg.(type) {
		case WaveAdvancedMsg:
			v.Advanced()
		case ScrollRestoredMsg:
			v.ApplyRestore(msg.Row)
		}
	}
}

func (h *viewHarness) record(t *testing.T, view string) scroll.Record {
	t.Helper()
	data, ok, err := h.store.Get(scroll.KeyPrefix + view)
	require.NoError(t, err)
	require.True(t, ok, "no record for %s", view)
	var rec scroll.Record
	require.NoError(t, json.Unmarshal(data, &rec))
	return rec
}

func TestCatalogView_RevealsNextWaveNearEnd(t *testing.T) {
	h := newViewHarness()
	v := newCatalogView(AllView, h.env(5))
	defer v.Close()
	v.SetHeight(8)
	v.SetFilms(testFilms(50))
	require.Len(t, v.Visible(), 10)

	v.Move(1)
	h.clk.Advance(100 * time.Millisecond)

	require.Len(t, h.msgs, 1)
	adv, ok := h.msgs[0].(WaveAdvancedMsg)
	require.True(t, ok)
	assert.Equal(t, AllView, adv.View)
	assert.Equal(t, 20, adv.State.Visible)
	assert.Len(t, v.Visible(), 20)

	// far from the end now, nothing more is requested
	h.deliver(v)
	h.clk.Advance(time.Second)
	assert.Empty(t, h.msgs)
}

func TestCatalogView_ReloadKeepsRevealedWaves(t *testing.T) {
	h := newViewHarness()
	v := newCatalogView(AllView, h.env(5))
	defer v.Close()
	v.SetHeight(8)
	v.SetFilms(testFilms(50))
	v.Move(1)
	h.clk.Advance(100 * time.Millisecond)
	require.Len(t, v.Visible(), 20)

	v.SetFilms(testFilms(50))
	assert.Len(t, v.Visible(), 20)
}

func TestCatalogView_NewCollectionRestartsWaves(t *testing.T) {
	h := newViewHarness()
	v := newCatalogView(AllView, h.env(5))
	defer v.Close()
	v.SetHeight(8)
	v.SetFilms(testFilms(50))
	v.Move(1)
	h.clk.Advance(100 * time.Millisecond)
	require.Len(t, v.Visible(), 20)

	// same size, one film replaced
	refreshed := testFilms(50)
	refreshed[49] = &domain.Film{ID: "f99", Title: "Film 99"}
	v.SetFilms(refreshed)
	assert.Len(t, v.Visible(), 10)
	assert.Equal(t, 1, v.waves.State().Wave)

	v.SetFilms(testFilms(60))
	assert.Len(t, v.Visible(), 12)
}

func TestCatalogView_RestoreRevealsSavedRow(t *testing.T) {
	h := newViewHarness()
	data, err := json.Marshal(scroll.Record{Y: 35, Timestamp: h.clk.Now()})
	require.NoError(t, err)
	require.NoError(t, h.store.Set(scroll.KeyPrefix+AllView, data))

	v := newCatalogView(AllView, h.env(5))
	defer v.Close()
	v.SetHeight(8)
	v.SetFilms(testFilms(50))

	require.True(t, v.restorer.Restore())
	h.clk.Advance(50 * time.Millisecond)
	h.deliver(v)
	assert.Equal(t, 9, v.cursor, "cursor parks on the last revealed row")

	for i := 0; i < 3; i++ {
		h.clk.Advance(100 * time.Millisecond)
		h.deliver(v)
	}

	assert.Len(t, v.Visible(), 40)
	assert.Equal(t, 35, v.cursor)
	assert.Equal(t, "f35", v.Selected().ID)
	assert.Equal(t, -1, v.want)

	offset, window := v.Window()
	assert.Equal(t, 28, offset)
	assert.Len(t, window, 8)
}

func TestCatalogView_LeaveSavesLatestRow(t *testing.T) {
	h := newViewHarness()
	v := newCatalogView(AllView, h.env(1))
	defer v.Close()
	v.SetHeight(5)
	v.SetFilms(testFilms(20))

	v.MoveTo(3)
	assert.Equal(t, 3, h.record(t, AllView).Y)

	// inside the throttle window the write is deferred
	v.MoveTo(4)
	assert.Equal(t, 3, h.record(t, AllView).Y)

	v.Leave()
	assert.Equal(t, 4, h.record(t, AllView).Y)
}

func TestCatalogView_CursorClamped(t *testing.T) {
	h := newViewHarness()
	v := newCatalogView(AllView, h.env(1))
	defer v.Close()
	v.SetHeight(4)
	v.SetFilms(testFilms(10))

	v.MoveTo(9)
	offset, window := v.Window()
	assert.Equal(t, 6, offset)
	assert.Len(t, window, 4)

	v.MoveTo(100)
	assert.Equal(t, 9, v.cursor)
	v.Move(-100)
	assert.Equal(t, 0, v.cursor)
	offset, _ = v.Window()
	assert.Zero(t, offset)

	v.SetFilms(nil)
	assert.Nil(t, v.Selected())
}

func TestCatalogView_SearchResults(t *testing.T) {
	h := newViewHarness()
	v := newCatalogView(SearchViewKey("Film"), h.env(1))
	defer v.Close()
	films := testFilms(3)

	v.SetResults([]service.SearchResult{
		{Film: films[2], Field: service.MatchTitle, MatchedIndexes: []int{0, 1}},
		{Film: films[0], Field: service.MatchGenre},
	})

	require.Len(t, v.Visible(), 2)
	assert.Equal(t, "f02", v.Selected().ID)
	r, ok := v.Match("f02")
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, r.MatchedIndexes)
	_, ok = v.Match("f01")
	assert.False(t, ok)
}

func TestSearchViewKey(t *testing.T) {
	assert.Equal(t, "search:god", SearchViewKey("  God "))
	assert.NotEqual(t, AllView, SearchViewKey("all"))
}
