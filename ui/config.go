package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	EnableMouse bool

	// MaxWidth caps the layout width. Zero follows the terminal.
	MaxWidth uint

	// How often the status panel polls the pipeline.
	RefreshInterval time.Duration `env:"VOXD_TUI_REFRESH" envDefault:"250ms"`

	// Submissions kept in the history list.
	HistorySize int `env:"VOXD_TUI_HISTORY" envDefault:"8"`
}
