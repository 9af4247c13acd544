package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/jira-transition/internal/source"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
)

// HeaderStyle is used for the title line of command output.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// LabelStyle renders the left-hand column of key/value output.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Width(10)

// ValueStyle renders values in key/value output.
var ValueStyle = lipgloss.NewStyle().
	Foreground(ColorWhite)

// HelpStyle is used for hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// LookupStyle returns a color-coded style for a lookup status.
func LookupStyle(status source.LookupStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch status {
	case source.LookupFound:
		return base.Foreground(ColorGreen)
	case source.LookupNotFound, source.LookupNoReference:
		return base.Foreground(ColorYellow)
	case source.LookupFailed:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// Field renders one aligned "label value" line.
func Field(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}
