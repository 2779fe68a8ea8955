package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	keyword = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575")).
		Render

	paragraph = lipgloss.NewStyle().
			Width(78).
			Padding(0, 0, 0, 2).
			Render

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1C40F")).Render
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Render
	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}).
			Render
)
