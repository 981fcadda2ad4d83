package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the terminal client
type Styles struct {
	Header  lipgloss.Style
	Title   lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Focused lipgloss.Style
	Alert   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Footer  lipgloss.Style
}

var (
	colorPrimary = lipgloss.Color("#6C3BD1")
	colorMuted   = lipgloss.Color("#8A8A8A")
	colorError   = lipgloss.Color("#E5484D")
	colorSuccess = lipgloss.Color("#30A46C")
)

// DefaultStyles returns the client's styles
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(colorPrimary).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 2).
			Bold(true),
		Title: lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			MarginBottom(1),
		Body: lipgloss.NewStyle(),
		Muted: lipgloss.NewStyle().
			Foreground(colorMuted),
		Focused: lipgloss.NewStyle().
			Foreground(colorPrimary),
		Alert: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1).
			MarginTop(1),
		Error: lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true),
		Footer: lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1),
	}
}
