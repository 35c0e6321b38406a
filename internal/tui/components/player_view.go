package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/reel/internal/player"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// PlayerView renders the transport of a playback session
type PlayerView struct {
	Title   string
	Session player.Session
	Width   int
	Height  int
	Spinner string
	Help    []key.Binding
}

// View renders the player screen
func (p PlayerView) View() string {
	style := styles.ActiveBorder
	frameW, frameH := style.GetFrameSize()
	innerW := max(20, p.Width-frameW)
	innerH := max(5, p.Height-frameH)
	s := p.Session

	var lines []string
	lines = append(lines, styles.TitleStyle.Render(styles.Truncate(p.Title, innerW)))
	lines = append(lines, p.statusLine())
	lines = append(lines, "")

	if s.Presentation == player.PresentationNative {
		lines = append(lines,
			styles.DimStyle.Render("Terminal too narrow for playback controls."),
			styles.DimStyle.Render("Use the controls in the player window, esc to go back."),
		)
		return p.frame(style, innerW, innerH, lines)
	}

	if s.Err != nil {
		lines = append(lines,
			styles.ErrorStyle.Render(s.Err.Message),
			styles.DimStyle.Render("r retry · esc back"),
			"",
		)
	}

	lines = append(lines, p.transport(innerW))
	if ind := p.indicator(); ind != "" {
		lines = append(lines, "", lipgloss.PlaceHorizontal(innerW, lipgloss.Center, ind))
	}
	if menu := p.menu(innerW); menu != "" {
		lines = append(lines, "", menu)
	}
	if s.Notice != "" {
		lines = append(lines, "", styles.NoticeStyle.Render(styles.Truncate(s.Notice, innerW-12))+styles.DimStyle.Render("  x dismiss"))
	}
	if s.ControlsVisible && len(p.Help) > 0 {
		lines = append(lines, "", HelpLine(p.Help, innerW))
	}
	return p.frame(style, innerW, innerH, lines)
}

func (p PlayerView) frame(style lipgloss.Style, w, h int, lines []string) string {
	if len(lines) > h {
		lines = lines[:h]
	}
	return style.Width(w).Height(h).Render(strings.Join(lines, "\n"))
}

func (p PlayerView) statusLine() string {
	s := p.Session
	var parts []string

	switch s.State {
	case player.StatePlaying:
		parts = append(parts, styles.BadgeStyle.Render("▶ PLAYING"))
	case player.StatePaused:
		parts = append(parts, styles.DimBadgeStyle.Render("❚❚ PAUSED"))
	case player.StateEnded:
		parts = append(parts, styles.DimBadgeStyle.Render("■ ENDED"))
	case player.StateError:
		parts = append(parts, styles.ErrorStyle.Render("✗ ERROR"))
	default:
		parts = append(parts, styles.DimBadgeStyle.Render(strings.ToUpper(s.State.String())))
	}
	if s.Buffering || s.State == player.StateLoading {
		label := "buffering"
		if p.Spinner != "" {
			label = p.Spinner + " " + label
		}
		parts = append(parts, styles.SpinnerStyle.Render(label))
	}
	if s.Adaptive {
		parts = append(parts, styles.DimStyle.Render("HLS"))
	}
	if s.Rate != 0 && s.Rate != 1 {
		parts = append(parts, styles.AccentStyle.Render(FormatRate(s.Rate)))
	}
	if s.Fullscreen {
		parts = append(parts, styles.DimStyle.Render("fullscreen"))
	}
	return strings.Join(parts, "  ")
}

func (p PlayerView) transport(width int) string {
	s := p.Session
	elapsed := FormatClock(s.CurrentTime)
	total := "--:--"
	if s.Duration > 0 {
		total = FormatClock(s.Duration)
	}
	vol := fmt.Sprintf("vol %d%%", percent(s.Volume))
	if s.Muted {
		vol = "muted"
	}

	left := elapsed + " "
	right := " " + total + "  " + vol
	barW := width - lipgloss.Width(left) - lipgloss.Width(right)
	buffered := 0.0
	if s.Duration > 0 {
		buffered = s.BufferedEnd / s.Duration
	}
	bar := styles.RenderProgressBar(s.Progress(), buffered, barW)
	return left + bar + styles.DimStyle.Render(right)
}

func (p PlayerView) indicator() string {
	s := p.Session
	switch {
	case s.Skip != nil:
		return styles.HighlightStyle.Render(FormatSkip(s.Skip.Value))
	case s.VolumeLevel != nil:
		return styles.HighlightStyle.Render(fmt.Sprintf("Volume %d%%", percent(s.VolumeLevel.Value)))
	}
	return ""
}

func (p PlayerView) menu(width int) string {
	s := p.Session
	switch s.Menu {
	case player.MenuSpeed:
		items := make([]string, len(player.RatePresets))
		for i, r := range player.RatePresets {
			label := FormatRate(r)
			if r == s.Rate {
				items[i] = styles.HighlightStyle.Render(label)
			} else {
				items[i] = styles.DimStyle.Render(label)
			}
		}
		return styles.AccentStyle.Render("Speed ") + strings.Join(items, " ") + styles.DimStyle.Render("  [ ]")
	case player.MenuVolume:
		level := s.Volume
		if s.Muted {
			level = 0
		}
		barW := min(30, width-16)
		return styles.AccentStyle.Render("Volume ") + styles.RenderProgressBar(level, 0, barW) +
			fmt.Sprintf(" %d%%", percent(level)) + styles.DimStyle.Render("  ↑ ↓")
	}
	return ""
}

// HelpLine renders key bindings on one line, dropping what does not fit
func HelpLine(bindings []key.Binding, width int) string {
	var parts []string
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	line := strings.Join(parts, styles.DimStyle.Render(" · "))
	for len(parts) > 1 && lipgloss.Width(line) > width {
		parts = parts[:len(parts)-1]
		line = strings.Join(parts, styles.DimStyle.Render(" · "))
	}
	return line
}

// FormatClock formats seconds as m:ss or h:mm:ss
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int(seconds)
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

// FormatSkip formats a skip delta, e.g. "+10s"
func FormatSkip(delta float64) string {
	if delta >= 0 {
		return fmt.Sprintf("+%ds", int(math.Round(delta)))
	}
	return fmt.Sprintf("-%ds", int(math.Round(-delta)))
}

// FormatRate formats a playback rate, e.g. "1.25x"
func FormatRate(r float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", r), "0"), ".") + "x"
}

func percent(v float64) int {
	return int(math.Round(max(0, min(1, v)) * 100))
}
