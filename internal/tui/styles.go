package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Indigo      = lipgloss.Color("#4b4fa6")
	OffWhite    = lipgloss.Color("#f8f7f4")
	DarkGray    = lipgloss.Color("#333333")
	MutedBorder = lipgloss.Color("#555555")

	// Styles
	StatusBarStyle = lipgloss.NewStyle().
			Background(Indigo).
			Foreground(OffWhite).
			Bold(true).
			Padding(0, 1)

	ChatPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Indigo).
			Padding(1)

	StatusPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Indigo).
				Padding(1)

	InputBarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Indigo).
			Padding(0, 1)

	UserMessageStyle = lipgloss.NewStyle().
				Foreground(OffWhite).
				Bold(true)

	AssistantMessageStyle = lipgloss.NewStyle().
				Foreground(Indigo)

	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#b04a4a"))
)
