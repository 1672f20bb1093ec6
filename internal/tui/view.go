package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/tileswipe/internal/session"
)

const (
	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorRed      lipgloss.Color = "#f38ba8"
	colorPink     lipgloss.Color = "#f5c2e7"
	colorOverlay1 lipgloss.Color = "#7f849c"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	infoStyle  = lipgloss.NewStyle().Foreground(colorText)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	errStyle   = lipgloss.NewStyle().Foreground(colorRed)
	helpStyle  = lipgloss.NewStyle().Foreground(colorOverlay1)
	mutedStyle = lipgloss.NewStyle().Foreground(colorSubtext0)
)

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("tileswipe · " + a.cat))
	b.WriteByte('\n')
	b.WriteString(a.infoLine())
	b.WriteByte('\n')

	switch a.state {
	case stateLoading:
		b.WriteString(mutedStyle.Render("loading tiles..."))
	case stateFailed:
		b.WriteString(mutedStyle.Render("no session loaded"))
	case stateDone:
		b.WriteString(mutedStyle.Render("session exported"))
	default:
		if a.canvas == "" {
			b.WriteString(mutedStyle.Render("loading image..."))
		} else {
			b.WriteString(a.canvas)
		}
	}
	b.WriteByte('\n')

	if a.notice != "" {
		style := okStyle
		if a.noticeErr {
			style = errStyle
		}
		b.WriteString(style.Render(a.notice))
	}
	b.WriteByte('\n')
	b.WriteString(helpStyle.Render(a.helpLine()))
	return b.String()
}

// infoLine is the session summary. It does not touch the session while an
// export runs in the background.
func (a *App) infoLine() string {
	if a.sess == nil || a.state != stateAnnotate {
		return ""
	}
	info := a.sess.Info()
	line := fmt.Sprintf("Selected: %d | Tile %d of %d | Time: %s",
		info.Selected, info.Position, info.Total, session.FormatElapsed(info.Elapsed))
	if cur := a.sess.Current(); !cur.HasGrid() {
		line += " | no grid for " + cur.ID.Key()
	}
	return infoStyle.Render(line)
}

func (a *App) helpLine() string {
	var bindings []key.Binding
	switch a.state {
	case stateAnnotate:
		bindings = a.keys.ShortHelp()
	case stateDone, stateFailed:
		bindings = []key.Binding{a.keys.Restart, a.keys.Quit}
	default:
		bindings = []key.Binding{a.keys.Quit}
	}
	parts := make([]string, 0, len(bindings))
	for _, k := range bindings {
		h := k.Help()
		parts = append(parts, fmt.Sprintf("[%s] %s", h.Key, h.Desc))
	}
	return strings.Join(parts, "  ")
}
