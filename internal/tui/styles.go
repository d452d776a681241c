// Package tui provides the signer inbox terminal UI.
package tui

import "github.com/charmbracelet/lipgloss"

type palette struct {
	Text      string
	TextMuted string
	Accent    string
	Focus     string
	Border    string
	Success   string
	Warning   string
	Error     string
}

var defaultPalette = palette{
	Text:      "#E6E6E6",
	TextMuted: "#8A8F98",
	Accent:    "#7AA2F7",
	Focus:     "#BB9AF7",
	Border:    "#3B4261",
	Success:   "#9ECE6A",
	Warning:   "#E0AF68",
	Error:     "#F7768E",
}

// styles holds the rendered styles for one palette.
type styles struct {
	Title    lipgloss.Style
	Text     lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Marker   lipgloss.Style
	Panel    lipgloss.Style
	OK       lipgloss.Style
	Warn     lipgloss.Style
	Err      lipgloss.Style
}

func newStyles(p palette) styles {
	return styles{
		Title:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Accent)).Bold(true),
		Text:     lipgloss.NewStyle().Foreground(lipgloss.Color(p.Text)),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.TextMuted)),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color(p.Text)).Bold(true),
		Marker:   lipgloss.NewStyle().Foreground(lipgloss.Color(p.Focus)).Bold(true),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Border)).
			Padding(0, 1),
		OK:   lipgloss.NewStyle().Foreground(lipgloss.Color(p.Success)).Bold(true),
		Warn: lipgloss.NewStyle().Foreground(lipgloss.Color(p.Warning)).Bold(true),
		Err:  lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error)).Bold(true),
	}
}
