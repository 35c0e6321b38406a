package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// CoverState is how far the selected film's poster has got in the image cache
type CoverState int

const (
	CoverNone CoverState = iota
	CoverLoading
	CoverCached
	CoverFailed
)

func (s CoverState) String() string {
	switch s {
	case CoverLoading:
		return "loading"
	case CoverCached:
		return "cached"
	case CoverFailed:
		return "unavailable"
	default:
		return "none"
	}
}

// Inspector displays details for the selected film
type Inspector struct {
	film      *domain.Film
	progress  *domain.Progress
	cover     CoverState
	poster    string
	matchNote string
	width     int
	height    int
	offset    int
}

// NewInspector creates a new inspector
func NewInspector() Inspector {
	return Inspector{}
}

// SetFilm sets the film to inspect. The scroll offset resets when the film changes
func (i *Inspector) SetFilm(f *domain.Film) {
	if f == nil || i.film == nil || f.ID != i.film.ID {
		i.offset = 0
		i.poster = ""
	}
	i.film = f
}

// SetProgress sets the saved position of the film, nil for none
func (i *Inspector) SetProgress(p *domain.Progress) { i.progress = p }

// SetCover sets the poster cache state and the rendered poster, if any
func (i *Inspector) SetCover(state CoverState, poster string) {
	i.cover = state
	i.poster = poster
}

// SetMatchNote sets a line explaining why a search result matched
func (i *Inspector) SetMatchNote(note string) { i.matchNote = note }

// SetSize updates the dimensions
func (i *Inspector) SetSize(width, height int) {
	i.width = width
	i.height = height
}

// PosterSize returns the cell size a poster should be rendered at
func (i Inspector) PosterSize() (int, int) {
	frameW, frameH := styles.InactiveBorder.GetFrameSize()
	cols := max(0, min(28, i.width-frameW-2))
	rows := max(0, min(cols*3/4, (i.height-frameH)/2))
	return cols, rows
}

// ScrollDown scrolls the description down
func (i *Inspector) ScrollDown() { i.offset++ }

// ScrollUp scrolls the description up
func (i *Inspector) ScrollUp() {
	if i.offset > 0 {
		i.offset--
	}
}

// View renders the inspector
func (i Inspector) View() string {
	style := styles.InactiveBorder
	frameW, frameH := style.GetFrameSize()
	innerW := max(10, i.width-frameW)
	innerH := max(3, i.height-frameH)

	var lines []string
	lines = append(lines, styles.AccentStyle.Render("Info"), "")

	if i.film == nil {
		lines = append(lines, styles.DimStyle.Render("No film selected"))
		return style.Width(innerW).Height(innerH).Render(strings.Join(lines, "\n"))
	}

	header := i.header(innerW)
	lines = append(lines, header...)

	body := wordWrap(i.film.Description, innerW)
	avail := max(1, innerH-len(lines)-1)
	offset := min(i.offset, max(0, len(body)-avail))
	end := min(len(body), offset+avail)
	lines = append(lines, body[offset:end]...)
	if end < len(body) {
		lines = append(lines, styles.DimStyle.Render("↓ more"))
	}
	if len(lines) > innerH {
		lines = lines[:innerH]
	}

	return style.
		Width(innerW).
		Height(innerH).
		Render(strings.Join(lines, "\n"))
}

func (i Inspector) header(width int) []string {
	f := i.film
	var lines []string

	if i.poster != "" {
		lines = append(lines, strings.Split(i.poster, "\n")...)
		lines = append(lines, "")
	}

	for _, l := range wordWrap(f.Title, width) {
		lines = append(lines, styles.TitleStyle.Render(l))
	}
	if sub := f.Subtitle(); sub != "" {
		lines = append(lines, styles.SubtitleStyle.Render(styles.Truncate(sub, width)))
	}

	var badges []string
	if f.Ephemeral {
		badges = append(badges, styles.BadgeStyle.Render("LIMITED"))
	}
	if f.Cover != "" && i.cover != CoverNone {
		badges = append(badges, styles.DimBadgeStyle.Render("cover "+i.cover.String()))
	}
	if len(badges) > 0 {
		lines = append(lines, strings.Join(badges, " "))
	}

	if p := i.progress; p != nil && p.Position > 0 {
		label := fmt.Sprintf("Resume at %s", FormatClock(p.Position.Seconds()))
		lines = append(lines, styles.AccentStyle.Render(label))
		if pct := p.Percent(); pct > 0 {
			lines = append(lines, styles.RenderProgressBar(pct/100, 0, min(width, 30)))
		}
	}
	if i.matchNote != "" {
		lines = append(lines, styles.DimStyle.Render(styles.Truncate(i.matchNote, width)))
	}
	lines = append(lines, "")
	return lines
}

// wordWrap wraps text to the given width
func wordWrap(text string, width int) []string {
	if width <= 0 {
		return nil
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if lipgloss.Width(line)+1+lipgloss.Width(w) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return lines
}
