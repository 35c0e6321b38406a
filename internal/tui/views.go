package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/reel/internal/tui/components"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// spinnerFrames are braille animation frames
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// View renders the application
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var body string
	if m.screen == ScreenPlayer && m.ctrl != nil {
		body = components.PlayerView{
			Title:   m.film.Title,
			Session: m.ctrl.Session(),
			Width:   m.width,
			Height:  m.height - 2,
			Spinner: m.spinner(),
			Help:    Keys.PlayerHelp(),
		}.View()
	} else {
		body = m.renderCatalog()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderFooter(),
	)
}

func (m Model) spinner() string {
	return spinnerFrames[m.spinnerFrame%len(spinnerFrames)]
}

func (m Model) renderHeader() string {
	title := styles.AccentStyle.Bold(true).Render("reel")

	var right string
	switch {
	case m.loading.Active:
		right = fmt.Sprintf("%s %s %3.0f%%", styles.SpinnerStyle.Render(m.spinner()),
			styles.DimStyle.Render(m.loading.Message), m.loading.Progress)
	case m.loading.Err != nil:
		right = styles.ErrorStyle.Render("✗ " + styles.Truncate(m.loading.Err.Error(), m.width/2))
	case m.starting != nil:
		right = styles.SpinnerStyle.Render(m.spinner()) + " " + styles.DimStyle.Render("starting player")
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 2
	return " " + title + strings.Repeat(" ", max(1, gap)) + right
}

func (m Model) renderCatalog() string {
	l := m.calculateLayout()
	v := m.view()
	offset, window := v.Window()
	wave := v.waves.State()

	title := "All films"
	if m.query != "" {
		title = fmt.Sprintf("Results for %q", m.query)
	}

	list := components.FilmList{
		Title:   title,
		Films:   window,
		Offset:  offset,
		Cursor:  v.cursor,
		Shown:   wave.Visible,
		Total:   wave.Total,
		Loading: wave.Loading,
		Focused: !m.searching,
		Width:   l.listWidth,
		Height:  l.height,
		Spinner: m.spinner(),
		Matches: func(id string) []int {
			r, _ := v.Match(id)
			return r.MatchedIndexes
		},
		Resume: m.resumeFraction,
	}.View()

	var body string
	if l.inspectorWidth > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, list, m.inspector.View())
	} else {
		body = list
	}

	if !m.searchBarVisible() {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderSearchBar(), body)
}

func (m Model) renderSearchBar() string {
	if m.searching {
		return m.searchInput.View()
	}
	return styles.PromptStyle.Render("/ ") + m.query + styles.DimStyle.Render("  (esc to clear)")
}

func (m Model) resumeFraction(id string) float64 {
	if m.deps.Playback == nil {
		return 0
	}
	p, ok := m.deps.Playback.Progress(id)
	if !ok {
		return 0
	}
	return p.Percent() / 100
}

func (m Model) renderFooter() string {
	if m.status != "" {
		style := styles.SuccessStyle
		if m.statusErr {
			style = styles.ErrorStyle
		}
		return " " + style.Render(styles.Truncate(m.status, m.width-2))
	}
	if m.screen == ScreenPlayer {
		return " " + styles.DimStyle.Render("? help")
	}
	return " " + components.HelpLine(Keys.CatalogHelp(), m.width-2)
}

func (m Model) renderHelp() string {
	var sections []string
	sections = append(sections, styles.TitleStyle.Render("Catalog"), helpTable(Keys.CatalogHelp()))
	sections = append(sections, "", styles.TitleStyle.Render("Player"), helpTable(Keys.PlayerHelp()))
	sections = append(sections, "", styles.DimStyle.Render("press any key to close"))

	box := styles.ActiveBorder.Padding(1, 2).Render(strings.Join(sections, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func helpTable(bindings []key.Binding) string {
	var rows []string
	for _, b := range bindings {
		h := b.Help()
		rows = append(rows, styles.HelpKeyStyle.Render(styles.Pad(h.Key, 8))+styles.HelpDescStyle.Render(h.Desc))
	}
	return strings.Join(rows, "\n")
}
