package tui

import "github.com/mmcdole/reel/internal/tui/components"

const (
	// ListColumnPercent is the share of the width given to the film list when the inspector is shown
	ListColumnPercent = 60
	// MinInspectorWidth hides the inspector on terminals narrower than this
	MinInspectorWidth = 70
)

// bodyLayout holds calculated column widths for the catalog screen
type bodyLayout struct {
	listWidth      int
	inspectorWidth int // 0 if not shown
	height         int
}

func (m Model) calculateLayout() bodyLayout {
	l := bodyLayout{listWidth: m.width, height: m.listHeight()}
	if m.showInspector && m.width >= MinInspectorWidth {
		l.listWidth = m.width * ListColumnPercent / 100
		l.inspectorWidth = m.width - l.listWidth
	}
	return l
}

// listHeight is the height of the catalog body: everything but the header,
// the footer and the search bar
func (m Model) listHeight() int {
	h := m.height - 2
	if m.searchBarVisible() {
		h--
	}
	return max(3, h)
}

func (m Model) searchBarVisible() bool {
	return m.searching || m.query != ""
}

// updateLayout pushes the current size to every view and the inspector
func (m *Model) updateLayout() {
	l := m.calculateLayout()
	rows := components.Rows(l.height)
	for _, v := range m.views {
		v.SetHeight(rows)
	}
	m.inspector.SetSize(l.inspectorWidth, l.height)
	m.searchInput.Width = max(10, m.width-4)
}
