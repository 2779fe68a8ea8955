//go:build !linux

package ambient

import "github.com/charmbracelet/log"

// NewPlatform returns a no-op coordinator. Session volume control is only
// implemented for PulseAudio and PipeWire.
func NewPlatform(logger *log.Logger) Coordinator {
	logger.Debug("ambient ducking not supported on this platform")
	return Noop{}
}
