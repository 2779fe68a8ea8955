package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// Player plays a clip to completion. Play blocks until the clip has been
// heard or the context is cancelled.
type Player interface {
	Play(ctx context.Context, clip Clip) error
	Close() error
}

var (
	// ErrPlayerClosed is returned when playing on a closed player
	ErrPlayerClosed = errors.New("player is closed")

	// ErrEmptyClip is returned when a clip holds no samples
	ErrEmptyClip = errors.New("clip is empty")
)

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int           // device rate, 44100 or 48000 Hz
	Channels   int           // 1 = mono, 2 = stereo
	BufferSize time.Duration // device buffer, 0 picks the driver default
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   1,
		BufferSize: 100 * time.Millisecond,
	}
}

// pollInterval is how often Play checks whether the device has drained.
const pollInterval = 10 * time.Millisecond

// OtoPlayer plays clips through the system output device. oto allows a
// single context per process, so one OtoPlayer should be shared.
type OtoPlayer struct {
	context *oto.Context
	config  PlayerConfig

	// mu serializes playback; the device plays one clip at a time.
	mu     sync.Mutex
	closed bool
}

// NewOtoPlayer opens the output device with the specified configuration.
func NewOtoPlayer(config PlayerConfig) (*OtoPlayer, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	log.Debug("audio device ready", "rate", config.SampleRate, "channels", config.Channels)
	return &OtoPlayer{context: ctx, config: config}, nil
}

func validateConfig(config PlayerConfig) error {
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	return nil
}

// Play converts the clip from its own rate to the device rate and blocks
// until it has finished playing.
func (p *OtoPlayer) Play(ctx context.Context, clip Clip) error {
	if clip.Empty() {
		return ErrEmptyClip
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPlayerClosed
	}

	out := Convert(clip, p.config.SampleRate, p.config.Channels)

	// The reader keeps out.PCM referenced until the player is closed.
	player := p.context.NewPlayer(bytes.NewReader(out.PCM))
	defer player.Close()

	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

// SampleRate returns the device sample rate.
func (p *OtoPlayer) SampleRate() int {
	return p.config.SampleRate
}

// Close marks the player closed. oto contexts cannot be released, so the
// device stays open until the process exits.
func (p *OtoPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.context.Suspend()
}
