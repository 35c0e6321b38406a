package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/reel/internal/player"
	"github.com/mmcdole/reel/internal/tui/components"
)

// handleKeyMsg routes keyboard input to the active screen
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.screen == ScreenPlayer && m.ctrl != nil {
		return m.handlePlayerKeys(msg)
	}
	if m.searching {
		return m.handleSearchKeys(msg)
	}
	return m.handleCatalogKeys(msg)
}

func (m Model) handleCatalogKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.view()
	page := max(1, components.Rows(m.listHeight())-1)

	switch {
	case key.Matches(msg, Keys.Quit):
		return m.quit()

	case key.Matches(msg, Keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, Keys.Up):
		v.Move(-1)
	case key.Matches(msg, Keys.Down):
		v.Move(1)
	case key.Matches(msg, Keys.PageUp):
		v.Move(-page)
	case key.Matches(msg, Keys.PageDown):
		v.Move(page)
	case key.Matches(msg, Keys.Home):
		v.MoveTo(0)
	case key.Matches(msg, Keys.End):
		v.MoveTo(len(v.Visible()) - 1)

	case key.Matches(msg, Keys.Enter):
		return m.startPlayback()

	case key.Matches(msg, Keys.Search):
		m.searching = true
		m.searchInput.SetValue(m.query)
		m.searchInput.CursorEnd()
		m.updateLayout()
		cmd := m.searchInput.Focus()
		return m, cmd

	case key.Matches(msg, Keys.Back):
		if m.query != "" {
			m.clearSearch()
			cmd := m.selectionChanged()
			return m, cmd
		}
		if m.starting != nil {
			m.starting = nil
			m.status = ""
		}
		return m, nil

	case key.Matches(msg, Keys.Refresh):
		return m.setStatus("Refreshing catalog…", false, LoadCatalogCmd(m.deps.Library, true))

	case key.Matches(msg, Keys.ToggleInspector):
		m.showInspector = !m.showInspector
		m.updateLayout()
		cmd := m.selectionChanged()
		return m, cmd

	case key.Matches(msg, Keys.InfoDown):
		m.inspector.ScrollDown()
		return m, nil
	case key.Matches(msg, Keys.InfoUp):
		m.inspector.ScrollUp()
		return m, nil

	case key.Matches(msg, Keys.Forget):
		if m.deps.Forget == nil {
			return m, nil
		}
		for _, view := range m.views {
			view.Close()
		}
		return m, ForgetCmd(m.deps.Forget)

	default:
		return m, nil
	}

	cmd := m.selectionChanged()
	return m, cmd
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.searchInput.Blur()
		m.clearSearch()
		m.updateLayout()
		cmd := m.selectionChanged()
		return m, cmd

	case "enter":
		m.searching = false
		m.searchInput.Blur()
		m.updateLayout()
		return m, nil

	case "up", "down":
		// move through results without leaving the input
		if msg.String() == "up" {
			m.view().Move(-1)
		} else {
			m.view().Move(1)
		}
		cmd := m.selectionChanged()
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if q := m.searchInput.Value(); q != m.query {
		m.runSearch(q)
		sel := m.selectionChanged()
		return m, tea.Batch(cmd, sel)
	}
	return m, cmd
}

func (m Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The controller owns the transport shortcuts
	if m.ctrl.HandleKey(player.Key(msg.String()), false) {
		return m, nil
	}

	s := m.ctrl.Session()
	switch {
	case key.Matches(msg, Keys.Back), msg.String() == "q":
		return m.leavePlayer()

	case key.Matches(msg, Keys.Help):
		m.showHelp = true

	case key.Matches(msg, Keys.Retry):
		if s.State == player.StateError {
			if err := m.ctrl.Retry(); err != nil {
				return m.errMsg(ErrMsg{Err: err, Context: "retry"})
			}
		}

	case key.Matches(msg, Keys.Dismiss):
		m.ctrl.DismissNotice()

	case key.Matches(msg, Keys.SpeedMenu):
		m.toggleMenu(s, player.MenuSpeed)
	case key.Matches(msg, Keys.VolumeMenu):
		m.toggleMenu(s, player.MenuVolume)

	case key.Matches(msg, Keys.Slower):
		m.stepRate(s.Rate, -1)
	case key.Matches(msg, Keys.Faster):
		m.stepRate(s.Rate, 1)

	case key.Matches(msg, Keys.SeekTo):
		tenth := float64(msg.String()[0]-'0') / 10
		if err := m.ctrl.Seek(tenth); err != nil {
			m.logger.Debug("seek ignored", "error", err)
		}
	}
	return m, nil
}

func (m Model) toggleMenu(s player.Session, menu player.Menu) {
	if s.Menu == menu {
		m.ctrl.CloseMenu()
		return
	}
	m.ctrl.OpenMenu(menu)
}

// stepRate moves to the neighbouring rate preset
func (m Model) stepRate(current float64, dir int) {
	idx := -1
	for i, r := range player.RatePresets {
		if r == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 3 // 1x
	}
	idx = max(0, min(len(player.RatePresets)-1, idx+dir))
	if err := m.ctrl.SetRate(player.RatePresets[idx]); err != nil {
		m.logger.Debug("rate change ignored", "error", err)
	}
}

func (m Model) startPlayback() (tea.Model, tea.Cmd) {
	f := m.view().Selected()
	if f == nil || m.deps.Player == nil || m.deps.Playback == nil {
		return m, nil
	}
	if m.starting != nil {
		return m, nil
	}
	m.view().Leave()
	m.starting = f
	m.status = "Starting " + f.Title + "…"
	m.statusErr = false
	return m, StartPlaybackCmd(m.deps.Player, m.deps.Playback, f)
}

func (m Model) leavePlayer() (tea.Model, tea.Cmd) {
	m.ctrl.Unmount()
	m.ctrl = nil
	m.film = nil
	m.screen = ScreenCatalog
	m.view().restorer.Restore()
	cmd := m.selectionChanged()
	return m, cmd
}

// runSearch shows the results for query in their own view
func (m *Model) runSearch(query string) {
	m.query = query
	if query == "" || m.deps.Search == nil {
		m.switchView(AllView)
		return
	}

	viewKey := SearchViewKey(query)
	if viewKey == m.current {
		m.view().SetResults(m.deps.Search.Search(query))
		return
	}
	v := newCatalogView(viewKey, m.viewEnv())
	v.SetHeight(components.Rows(m.listHeight()))
	v.SetResults(m.deps.Search.Search(query))
	m.views[viewKey] = v
	m.switchView(viewKey)
	v.restorer.Restore()
}

func (m *Model) clearSearch() {
	m.query = ""
	m.searchInput.SetValue("")
	m.switchView(AllView)
}

// switchView makes to the current view. A search view being left is discarded
func (m *Model) switchView(to string) {
	if to == m.current {
		return
	}
	prev := m.current
	if v, ok := m.views[prev]; ok {
		v.Leave()
		if prev != AllView {
			v.Close()
			delete(m.views, prev)
		}
	}
	m.current = to
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.Close()
	return m, tea.Quit
}
