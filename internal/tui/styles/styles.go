package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Accent     = lipgloss.Color("#E50914")
	SlateDark  = lipgloss.Color("#1F2937")
	SlateLight = lipgloss.Color("#374151")
	DimGray    = lipgloss.Color("#6B7280")
	LightGray  = lipgloss.Color("#9CA3AF")
	White      = lipgloss.Color("#F9FAFB")
	Green      = lipgloss.Color("#10B981")
	Red        = lipgloss.Color("#EF4444")
	Amber      = lipgloss.Color("#E5A00D")
)

// Themes maps theme names to accent colors
var Themes = map[string]lipgloss.Color{
	"crimson": "#E50914",
	"amber":   "#E5A00D",
	"ocean":   "#3B82F6",
	"mint":    "#10B981",
}

// Borders
var (
	ActiveBorder   lipgloss.Style
	InactiveBorder lipgloss.Style
)

// Text styles
var (
	TitleStyle     lipgloss.Style
	SubtitleStyle  lipgloss.Style
	DimStyle       lipgloss.Style
	AccentStyle    lipgloss.Style
	ErrorStyle     lipgloss.Style
	SuccessStyle   lipgloss.Style
	HighlightStyle lipgloss.Style
)

// Help styles
var (
	HelpKeyStyle  lipgloss.Style
	HelpDescStyle lipgloss.Style
)

// Progress bar styles
var (
	ProgressFullStyle     lipgloss.Style
	ProgressBufferedStyle lipgloss.Style
	ProgressEmptyStyle    lipgloss.Style
)

var (
	BadgeStyle    lipgloss.Style
	DimBadgeStyle lipgloss.Style
	SpinnerStyle  lipgloss.Style
	PromptStyle   lipgloss.Style
	NoticeStyle   lipgloss.Style
)

// Match highlight styles for search results
var (
	MatchHighlightStyle         lipgloss.Style
	MatchHighlightSelectedStyle lipgloss.Style
)

func init() {
	build()
}

// UseTheme switches the accent color. Unknown names keep the current theme
func UseTheme(name string) bool {
	c, ok := Themes[strings.ToLower(name)]
	if !ok {
		return false
	}
	Accent = c
	build()
	return true
}

func build() {
	ActiveBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Accent)
	InactiveBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(DimGray)

	TitleStyle = lipgloss.NewStyle().Foreground(White).Bold(true)
	SubtitleStyle = lipgloss.NewStyle().Foreground(LightGray)
	DimStyle = lipgloss.NewStyle().Foreground(DimGray)
	AccentStyle = lipgloss.NewStyle().Foreground(Accent)
	ErrorStyle = lipgloss.NewStyle().Foreground(Red)
	SuccessStyle = lipgloss.NewStyle().Foreground(Green)
	HighlightStyle = lipgloss.NewStyle().
		Foreground(White).
		Background(Accent).
		Padding(0, 1)

	HelpKeyStyle = lipgloss.NewStyle().Foreground(Accent)
	HelpDescStyle = lipgloss.NewStyle().Foreground(DimGray)

	ProgressFullStyle = lipgloss.NewStyle().Foreground(Accent)
	ProgressBufferedStyle = lipgloss.NewStyle().Foreground(LightGray)
	ProgressEmptyStyle = lipgloss.NewStyle().Foreground(DimGray)

	BadgeStyle = lipgloss.NewStyle().
		Foreground(White).
		Background(Accent).
		Padding(0, 1)
	DimBadgeStyle = lipgloss.NewStyle().
		Foreground(LightGray).
		Background(SlateLight).
		Padding(0, 1)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Accent)
	PromptStyle = lipgloss.NewStyle().Foreground(Accent).Bold(true)
	NoticeStyle = lipgloss.NewStyle().Foreground(Amber)

	MatchHighlightStyle = lipgloss.NewStyle().Foreground(Accent).Bold(true)
	MatchHighlightSelectedStyle = lipgloss.NewStyle().
		Foreground(Accent).
		Background(SlateLight).
		Bold(true)
}

// Truncate truncates a string to the given display width with an ellipsis
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 1 {
		return string(runes[:1])
	}
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// Pad pads a string with spaces to the given display width
func Pad(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// RenderProgressBar renders a bar for a fraction in [0,1]. buffered marks
// how far ahead the media is loaded
func RenderProgressBar(fraction, buffered float64, width int) string {
	if width < 3 {
		return ""
	}
	filled := cells(fraction, width)
	loaded := max(cells(buffered, width), filled)

	var b strings.Builder
	b.WriteString(ProgressFullStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(ProgressBufferedStyle.Render(strings.Repeat("▒", loaded-filled)))
	b.WriteString(ProgressEmptyStyle.Render(strings.Repeat("░", width-loaded)))
	return b.String()
}

func cells(fraction float64, width int) int {
	n := int(float64(width) * fraction)
	return max(0, min(width, n))
}

// RenderListRow renders a list row with a uniform background when selected.
// Each part is styled separately so ANSI resets do not break the background
func RenderListRow(parts []RowPart, selected bool, width int) string {
	var b strings.Builder
	visible := 0
	for _, part := range parts {
		style := lipgloss.NewStyle()
		switch {
		case part.Foreground != nil:
			style = style.Foreground(*part.Foreground)
		case selected:
			style = style.Foreground(White)
		default:
			style = style.Foreground(LightGray)
		}
		if part.Bold {
			style = style.Bold(true)
		}
		if selected {
			style = style.Background(SlateLight)
		}
		b.WriteString(style.Render(part.Text))
		visible += lipgloss.Width(part.Text)
	}

	pad := lipgloss.NewStyle()
	if selected {
		pad = pad.Background(SlateLight)
	}
	if rest := width - visible - 2; rest > 0 {
		b.WriteString(pad.Render(strings.Repeat(" ", rest)))
	}
	margin := pad.Render(" ")
	return margin + b.String() + margin
}

// RowPart is a run of row text with an optional foreground color
type RowPart struct {
	Text       string
	Foreground *lipgloss.Color
	Bold       bool
}
