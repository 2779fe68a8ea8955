//go:build linux

package ambient

import (
	"github.com/charmbracelet/log"
	"golang.org/x/sys/execabs"
)

// NewPlatform returns the pactl coordinator when pactl is installed and a
// no-op otherwise.
func NewPlatform(logger *log.Logger) Coordinator {
	if _, err := execabs.LookPath("pactl"); err != nil {
		logger.Info("pactl not found, ambient ducking disabled")
		return Noop{}
	}
	return NewPulse(WithLogger(logger))
}
