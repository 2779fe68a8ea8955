package engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/voxd/internal/audio"
	"golang.org/x/time/rate"
)

const gttsMaxText = 5000

// GTTSConfig holds configuration for the gTTS engine.
type GTTSConfig struct {
	// Binary is the gtts-cli executable. Defaults to "gtts-cli".
	Binary string

	// Language is used when the voice does not name one. Defaults to "en".
	Language string

	// RequestsPerMinute limits calls to avoid being blocked (default 50).
	RequestsPerMinute int

	// Timeout bounds a single request (default 30s).
	Timeout time.Duration

	// Runner executes gtts-cli. Defaults to ExecRunner.
	Runner Runner
}

// GTTS synthesizes speech through Google Translate's voice via gtts-cli.
// The MP3 it produces is decoded in process.
type GTTS struct {
	config  GTTSConfig
	limiter *rate.Limiter
}

// NewGTTS creates a gTTS engine.
func NewGTTS(config GTTSConfig) *GTTS {
	if config.Binary == "" {
		config.Binary = "gtts-cli"
	}
	if config.Language == "" {
		config.Language = "en"
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 50
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Runner == nil {
		config.Runner = ExecRunner{Timeout: config.Timeout}
	}
	return &GTTS{
		config:  config,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
	}
}

// Synthesize converts text to audio using gtts-cli. gTTS only knows normal
// and slow speech, so other speeds are applied by scaling the playback rate.
func (g *GTTS) Synthesize(ctx context.Context, req Request) (audio.Clip, error) {
	if err := checkText(KindGTTS, req.Text, gttsMaxText); err != nil {
		return audio.Clip{}, err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return audio.Clip{}, wrap(KindGTTS, "synthesize", fmt.Errorf("rate limit wait cancelled: %w", err))
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1
	}
	args := []string{"-l", g.language(req.Voice)}
	if speed < 0.75 {
		args = append(args, "--slow")
		speed *= 2
	}
	// "-" makes gtts-cli read the text from stdin.
	args = append(args, "-o", "-", "-")

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	mp3Data, err := g.config.Runner.Run(ctx, strings.NewReader(req.Text), g.config.Binary, args...)
	if err != nil {
		return audio.Clip{}, wrap(KindGTTS, "synthesize", fmt.Errorf("%w: %v", ErrSynthesisFailed, err))
	}

	clip, err := audio.DecodeMP3(bytes.NewReader(mp3Data))
	if err != nil {
		return audio.Clip{}, wrap(KindGTTS, "decode", fmt.Errorf("%w: %v", ErrSynthesisFailed, err))
	}
	clip.SampleRate = int(float64(clip.SampleRate) * speed)
	return clip, nil
}

// language extracts a gTTS language code from a voice name such as "fr" or
// "en_US-lessac-medium".
func (g *GTTS) language(voice string) string {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return g.config.Language
	}
	if i := strings.IndexAny(voice, "_-"); i > 0 {
		voice = voice[:i]
	}
	if len(voice) < 2 || len(voice) > 3 {
		return g.config.Language
	}
	return strings.ToLower(voice)
}

// Info returns engine capabilities and configuration.
func (g *GTTS) Info() Info {
	return Info{
		Name:         KindGTTS,
		Online:       true,
		DefaultVoice: g.config.Language,
		MaxTextSize:  gttsMaxText,
	}
}

// Validate checks that gtts-cli is installed.
func (g *GTTS) Validate(ctx context.Context) error {
	if _, err := g.config.Runner.LookPath(g.config.Binary); err != nil {
		return wrap(KindGTTS, "validate", fmt.Errorf("%w: %s not found in PATH", ErrNotAvailable, g.config.Binary))
	}
	return nil
}
