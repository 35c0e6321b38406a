package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
	Enter    key.Binding
	Back     key.Binding

	// Catalog
	Search          key.Binding
	Refresh         key.Binding
	ToggleInspector key.Binding
	InfoUp          key.Binding
	InfoDown        key.Binding
	Forget          key.Binding

	// Player (shortcuts the controller does not own)
	Retry      key.Binding
	SpeedMenu  key.Binding
	VolumeMenu key.Binding
	Slower     key.Binding
	Faster     key.Binding
	Dismiss    key.Binding
	SeekTo     key.Binding

	// General
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "bottom"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "play"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		ToggleInspector: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "info"),
		),
		InfoUp: key.NewBinding(
			key.WithKeys("K"),
			key.WithHelp("K", "scroll info up"),
		),
		InfoDown: key.NewBinding(
			key.WithKeys("J"),
			key.WithHelp("J", "scroll info down"),
		),
		Forget: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "forget local data"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		SpeedMenu: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "speed"),
		),
		VolumeMenu: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "volume"),
		),
		Slower: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "slower"),
		),
		Faster: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "faster"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss"),
		),
		SeekTo: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("0-9", "jump to 0-90%"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Keys is the global keymap instance
var Keys = DefaultKeyMap()

// CatalogHelp lists the bindings shown in the catalog footer and help view
func (k KeyMap) CatalogHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Search, k.ToggleInspector, k.Refresh, k.Forget, k.Help, k.Quit}
}

// PlayerHelp lists the bindings shown in the player view. The first entries
// are handled by the playback controller itself
func (k KeyMap) PlayerHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←/→", "skip 10s")),
		key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "volume")),
		key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fullscreen")),
		k.SeekTo, k.Slower, k.Faster, k.SpeedMenu, k.VolumeMenu, k.Back,
	}
}
