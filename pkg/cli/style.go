package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for chat rendering.
type Theme struct {
	Primary lipgloss.Color // main accent color
	Accent  lipgloss.Color // secondary accent (model output labels)
	Dim     lipgloss.Color // dimmed/help text color
	Alert   lipgloss.Color // errors and failures
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#ff5f87"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Prompt lipgloss.Style // user input label
	Label  lipgloss.Style // model output label
	Note   lipgloss.Style // dimmed annotations (tags, timings)
	Error  lipgloss.Style // failure lines
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Prompt: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Note:   lipgloss.NewStyle().Foreground(t.Dim),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
	}
}
