package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// Raw progress characters (unstyled)
const (
	InProgressChar = "◐"
)

// FilmList renders one window of a catalog view
type FilmList struct {
	Title   string
	Films   []*domain.Film // rows on screen
	Offset  int            // index of Films[0] in the view
	Cursor  int
	Shown   int // revealed rows
	Total   int // rows in the view
	Loading bool
	Focused bool
	Width   int
	Height  int

	// Matches returns the byte positions matched in the lowercase title of a film
	Matches func(id string) []int
	// Resume returns the saved position of a film as a fraction, 0 if none
	Resume func(id string) float64
	// Spinner is the current spinner frame shown while a wave is loading
	Spinner string
}

// View renders the list inside a border of Width x Height
func (l FilmList) View() string {
	style := styles.InactiveBorder
	if l.Focused {
		style = styles.ActiveBorder
	}
	frameW, frameH := style.GetFrameSize()
	innerW := max(10, l.Width-frameW)
	innerH := max(3, l.Height-frameH)

	var lines []string
	lines = append(lines, styles.AccentStyle.Render(styles.Truncate(l.Title, innerW)))

	rows := innerH - 2
	for i := 0; i < rows; i++ {
		if i >= len(l.Films) {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, l.renderRow(l.Films[i], l.Offset+i == l.Cursor, innerW))
	}
	lines = append(lines, l.footer(innerW))

	return style.
		Width(innerW).
		Height(innerH).
		Render(strings.Join(lines, "\n"))
}

// Rows returns how many film rows fit in a list of the given outer height
func Rows(height int) int {
	_, frameH := styles.ActiveBorder.GetFrameSize()
	return max(1, max(3, height-frameH)-2)
}

func (l FilmList) footer(width int) string {
	if l.Total == 0 {
		return styles.DimStyle.Render("No films")
	}
	text := fmt.Sprintf("%d/%d", l.Cursor+1, l.Total)
	if l.Shown < l.Total {
		text = fmt.Sprintf("%d/%d · %d shown", l.Cursor+1, l.Total, l.Shown)
	}
	if l.Loading && l.Spinner != "" {
		text += " " + styles.SpinnerStyle.Render(l.Spinner)
	}
	return styles.DimStyle.Render(styles.Truncate(text, width))
}

func (l FilmList) renderRow(f *domain.Film, selected bool, width int) string {
	indicator := " "
	var indicatorColor *lipgloss.Color
	if l.Resume != nil && l.Resume(f.ID) > 0 {
		indicator = InProgressChar
		indicatorColor = &styles.Accent
	}

	meta := f.Subtitle()
	metaW := lipgloss.Width(meta)
	// margins, indicator and the gap before the metadata
	titleW := width - 2 - 2 - metaW - 1
	if titleW < 8 {
		meta, metaW = "", 0
		titleW = width - 4
	}

	parts := []styles.RowPart{{Text: indicator + " ", Foreground: indicatorColor}}
	parts = append(parts, titleParts(f.Title, l.matches(f.ID), titleW)...)
	if metaW > 0 {
		title := styles.Truncate(f.Title, titleW)
		gap := width - 2 - 2 - lipgloss.Width(title) - metaW
		parts = append(parts,
			styles.RowPart{Text: strings.Repeat(" ", max(1, gap))},
			styles.RowPart{Text: meta, Foreground: &styles.DimGray},
		)
	}
	return styles.RenderListRow(parts, selected, width)
}

func (l FilmList) matches(id string) []int {
	if l.Matches == nil {
		return nil
	}
	return l.Matches(id)
}

// titleParts splits a truncated title into highlighted and plain runs
func titleParts(title string, matched []int, width int) []styles.RowPart {
	title = styles.Truncate(title, width)
	hits := runeHits(title, matched)
	if len(hits) == 0 {
		return []styles.RowPart{{Text: title}}
	}

	var parts []styles.RowPart
	runes := []rune(title)
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && hits[i] == hits[start] {
			continue
		}
		part := styles.RowPart{Text: string(runes[start:i])}
		if hits[start] {
			part.Foreground = &styles.Accent
			part.Bold = true
		}
		parts = append(parts, part)
		start = i
	}
	return parts
}

// runeHits maps byte positions in the lowercase form of s to rune positions
// in s. Returns nil if lowercasing changed the rune count
func runeHits(s string, matched []int) []bool {
	if len(matched) == 0 {
		return nil
	}
	lower := strings.ToLower(s)
	runes := []rune(s)
	if len([]rune(lower)) != len(runes) {
		return nil
	}

	want := make(map[int]bool, len(matched))
	for _, b := range matched {
		want[b] = true
	}
	hits := make([]bool, len(runes))
	i := 0
	for b := range lower {
		if want[b] {
			hits[i] = true
		}
		i++
	}
	return hits
}
