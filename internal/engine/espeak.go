package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/voxd/internal/audio"
)

const (
	espeakMaxText = 5000

	// espeakBaseWPM is espeak-ng's default speaking rate.
	espeakBaseWPM = 175
)

// EspeakConfig holds configuration for the eSpeak NG engine.
type EspeakConfig struct {
	// Binary is the espeak-ng executable. Defaults to "espeak-ng".
	Binary string

	// Voice is used when a request names none. Defaults to "en-us".
	Voice string

	// Timeout bounds a single synthesis (default 10s).
	Timeout time.Duration

	// Runner executes espeak-ng. Defaults to ExecRunner.
	Runner Runner
}

// Espeak synthesizes speech with the formant synthesizer eSpeak NG. It is
// robotic but small and nearly always installed.
type Espeak struct {
	config EspeakConfig
}

// NewEspeak creates an eSpeak NG engine.
func NewEspeak(config EspeakConfig) *Espeak {
	if config.Binary == "" {
		config.Binary = "espeak-ng"
	}
	if config.Voice == "" {
		config.Voice = "en-us"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Runner == nil {
		config.Runner = ExecRunner{Timeout: config.Timeout}
	}
	return &Espeak{config: config}
}

// Synthesize renders text to a WAV on stdout and decodes it.
func (e *Espeak) Synthesize(ctx context.Context, req Request) (audio.Clip, error) {
	if err := checkText(KindEspeak, req.Text, espeakMaxText); err != nil {
		return audio.Clip{}, err
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1
	}
	args := []string{
		"--stdout",
		"-v", e.voice(req.Voice),
		"-s", strconv.Itoa(int(espeakBaseWPM * speed)),
		"--stdin",
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	wav, err := e.config.Runner.Run(ctx, strings.NewReader(req.Text), e.config.Binary, args...)
	if err != nil {
		return audio.Clip{}, wrap(KindEspeak, "synthesize", fmt.Errorf("%w: %v", ErrSynthesisFailed, err))
	}

	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		return audio.Clip{}, wrap(KindEspeak, "decode", fmt.Errorf("%w: %v", ErrSynthesisFailed, err))
	}
	return clip, nil
}

// voice maps Piper-style names ("en_US-lessac-medium") to espeak voices
// ("en-us"); plain espeak names pass through.
func (e *Espeak) voice(voice string) string {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return e.config.Voice
	}
	if i := strings.Index(voice, "-"); i > 0 && strings.Contains(voice[:i], "_") {
		voice = voice[:i]
	}
	return strings.ToLower(strings.ReplaceAll(voice, "_", "-"))
}

// Info returns engine capabilities and configuration.
func (e *Espeak) Info() Info {
	return Info{
		Name:         KindEspeak,
		DefaultVoice: e.config.Voice,
		MaxTextSize:  espeakMaxText,
	}
}

// Validate checks that espeak-ng is installed.
func (e *Espeak) Validate(ctx context.Context) error {
	if _, err := e.config.Runner.LookPath(e.config.Binary); err != nil {
		return wrap(KindEspeak, "validate", fmt.Errorf("%w: %s not found in PATH", ErrNotAvailable, e.config.Binary))
	}
	return nil
}
