package components

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/player"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{9.9, "0:09"},
		{95, "1:35"},
		{3600, "1:00:00"},
		{7322, "2:02:02"},
		{-4, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatClock(tt.seconds), "seconds=%v", tt.seconds)
	}
}

func TestFormatRateAndSkip(t *testing.T) {
	assert.Equal(t, "1x", FormatRate(1))
	assert.Equal(t, "0.25x", FormatRate(0.25))
	assert.Equal(t, "1.5x", FormatRate(1.5))
	assert.Equal(t, "+10s", FormatSkip(10))
	assert.Equal(t, "-10s", FormatSkip(-10))
}

func TestRuneHits(t *testing.T) {
	// "é" is two bytes, so byte 3 of "café noir" is the é and byte 6 the n
	hits := runeHits("Café Noir", []int{0, 3, 6})
	require.Len(t, hits, 9)
	assert.True(t, hits[0])
	assert.True(t, hits[3])
	assert.True(t, hits[5])
	assert.False(t, hits[1])

	assert.Nil(t, runeHits("Heat", nil))
}

func TestTitleParts(t *testing.T) {
	parts := titleParts("The Godfather", []int{4, 5, 6}, 40)
	require.Len(t, parts, 3)
	assert.Equal(t, "The ", parts[0].Text)
	assert.Equal(t, "God", parts[1].Text)
	assert.True(t, parts[1].Bold)
	assert.Equal(t, "father", parts[2].Text)

	plain := titleParts("Heat", nil, 40)
	require.Len(t, plain, 1)
	assert.Equal(t, "Heat", plain[0].Text)
}

func TestFilmListView(t *testing.T) {
	films := []*domain.Film{
		{ID: "1", Title: "Heat", Year: 1995},
		{ID: "2", Title: "Stalker", Year: 1979},
	}
	view := FilmList{
		Title:  "All films",
		Films:  films,
		Cursor: 1,
		Shown:  2,
		Total:  5,
		Width:  50,
		Height: 10,
		Resume: func(id string) float64 {
			if id == "2" {
				return 0.4
			}
			return 0
		},
	}.View()

	lines := strings.Split(view, "\n")
	assert.Len(t, lines, 10)
	assert.Equal(t, 50, lipgloss.Width(lines[0]))
	assert.Contains(t, view, "All films")
	assert.Contains(t, view, "Heat")
	assert.Contains(t, view, "1979")
	assert.Contains(t, view, InProgressChar)
	assert.Contains(t, view, "2/5 · 2 shown")
}

func TestInspectorView(t *testing.T) {
	insp := NewInspector()
	insp.SetSize(40, 20)
	assert.Contains(t, insp.View(), "No film selected")

	insp.SetFilm(&domain.Film{
		ID:          "1",
		Title:       "Stalker",
		Year:        1979,
		Genres:      []string{"Drama", "Sci-Fi"},
		Cover:       "https://img.example/stalker.jpg",
		Description: "A guide leads two men through an area known as the Zone.",
		Ephemeral:   true,
	})
	insp.SetCover(CoverCached, "")
	view := insp.View()

	assert.Contains(t, view, "Stalker")
	assert.Contains(t, view, "Drama, Sci-Fi")
	assert.Contains(t, view, "LIMITED")
	assert.Contains(t, view, "cover cached")
	assert.Contains(t, view, "Zone")
	assert.Len(t, strings.Split(view, "\n"), 20)
}

func TestWordWrap(t *testing.T) {
	lines := wordWrap("one two three four five", 9)
	assert.Equal(t, []string{"one two", "three", "four five"}, lines)
	assert.Nil(t, wordWrap("text", 0))
}

func TestRenderPoster(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := RenderPoster(buf.Bytes(), 10, 8)
	require.NoError(t, err)

	// 40x60 fitted into 10x16 pixels keeps the 2:3 aspect: 10x15, so 8 rows of half blocks
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 8)
	for _, l := range lines {
		assert.Equal(t, 10, lipgloss.Width(l))
	}

	_, err = RenderPoster([]byte("not an image"), 10, 8)
	assert.Error(t, err)
}

func TestPlayerView(t *testing.T) {
	base := player.Session{
		State:           player.StatePlaying,
		CurrentTime:     65,
		Duration:        600,
		BufferedEnd:     120,
		Volume:          0.8,
		Rate:            1,
		Presentation:    player.PresentationCustom,
		ControlsVisible: true,
	}

	view := PlayerView{Title: "Heat", Session: base, Width: 100, Height: 20}.View()
	assert.Contains(t, view, "Heat")
	assert.Contains(t, view, "PLAYING")
	assert.Contains(t, view, "1:05")
	assert.Contains(t, view, "10:00")
	assert.Contains(t, view, "vol 80%")

	s := base
	s.Skip = &player.Indicator{Kind: player.IndicatorSkip, Value: 10}
	s.Menu = player.MenuSpeed
	s.Rate = 1.5
	view = PlayerView{Title: "Heat", Session: s, Width: 100, Height: 20}.View()
	assert.Contains(t, view, "+10s")
	assert.Contains(t, view, "Speed")
	assert.Contains(t, view, "1.5x")

	s = base
	s.State = player.StateError
	s.Err = player.NewPlaybackError(player.CategoryNetwork, nil)
	view = PlayerView{Title: "Heat", Session: s, Width: 100, Height: 20}.View()
	assert.Contains(t, view, "Check your connection")
	assert.Contains(t, view, "r retry")

	s = base
	s.Presentation = player.PresentationNative
	s.ControlsVisible = false
	view = PlayerView{Title: "Heat", Session: s, Width: 60, Height: 20}.View()
	assert.Contains(t, view, "Terminal too narrow")
	assert.NotContains(t, view, "vol 80%")
}
