package ui

import "github.com/charmbracelet/lipgloss"

var (
	green     = lipgloss.Color("#04B575")
	fuchsia   = lipgloss.Color("#EE6FF8")
	yellow    = lipgloss.Color("#F1C40F")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(fuchsia).
			Padding(0, 1)

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(red).
			Padding(0, 1)

	subtleStyle  = lipgloss.NewStyle().Foreground(gray)
	dividerStyle = lipgloss.NewStyle().Foreground(midGray)
	keyStyle     = lipgloss.NewStyle().Foreground(fuchsia)

	statusMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Padding(0, 1)

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFDF5")).
				Background(red).
				Padding(0, 1)

	outcomeStyles = map[string]lipgloss.Style{
		"accepted": lipgloss.NewStyle().Foreground(green),
		"skipped":  lipgloss.NewStyle().Foreground(yellow),
		"rejected": lipgloss.NewStyle().Foreground(red),
	}
)
