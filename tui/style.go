package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/pactcore/types"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("99"))

	styleNarrative = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleBanner = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213"))

	styleChoice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("99"))

	styleAside = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
)

// toneStyles colors a demon's reaction line by mood.
var toneStyles = map[types.Tone]lipgloss.Style{
	types.Delighted: lipgloss.NewStyle().Foreground(lipgloss.Color("84")),
	types.Pleased:   lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	types.Neutral:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	types.Annoyed:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	types.Enraged:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarrative lineKind = iota
	kindBanner
	kindChoice
	kindAside
	kindSystem
	kindError
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "==="):
		return kindBanner
	case strings.HasPrefix(trimmed, "("):
		return kindAside
	case isNumberedChoice(trimmed):
		return kindChoice
	case strings.HasPrefix(trimmed, "Pick "),
		strings.HasPrefix(trimmed, "Unknown "):
		return kindError
	default:
		return kindNarrative
	}
}

// isNumberedChoice matches lines like "1) Flatter".
func isNumberedChoice(line string) bool {
	if len(line) < 3 {
		return false
	}
	return line[0] >= '1' && line[0] <= '9' && line[1] == ')' && line[2] == ' '
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindBanner:
		return styleBanner.Render(line)
	case kindChoice:
		return styleChoice.Render(line)
	case kindAside:
		return styleAside.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	default:
		return styleNarrative.Render(line)
	}
}

// renderTone styles a reaction line by the demon's mood.
func renderTone(line string, tone types.Tone) string {
	if st, ok := toneStyles[tone]; ok {
		return st.Render(line)
	}
	return styleNarrative.Render(line)
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
