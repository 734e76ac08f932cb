package tui

import "github.com/charmbracelet/lipgloss"

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))

	// Header is used by the CLI tables as well.
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
)

var stateLabels = map[string][]string{
	"pendulum":    {"θ", "ω"},
	"cartpole":    {"x", "ẋ", "θ", "ω"},
	"spring_mass": {"x", "v"},
	"vanderpol":   {"x", "y"},
	"lorenz":      {"x", "y", "z"},
	"decay":       {"x"},
}
