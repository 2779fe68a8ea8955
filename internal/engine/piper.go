package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/audio"
)

// DefaultPiperVoice is the voice used when none is configured.
const DefaultPiperVoice = "en_US-lessac-medium"

const (
	piperDefaultRate = 22050
	piperMaxText     = 5000
)

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	// Binary is the piper executable, looked up in PATH. Defaults to "piper".
	Binary string

	// ModelDir holds <voice>.onnx models and their .onnx.json configs.
	ModelDir string

	// Timeout bounds a single synthesis.
	Timeout time.Duration

	// Runner executes piper. Defaults to ExecRunner.
	Runner Runner
}

// Piper synthesizes speech with the offline Piper neural TTS. A fresh
// process is started per sentence with the text already on stdin.
type Piper struct {
	config PiperConfig

	mu    sync.Mutex
	rates map[string]int // model path -> sample rate from its config
}

// NewPiper creates a Piper engine.
func NewPiper(config PiperConfig) *Piper {
	if config.Binary == "" {
		config.Binary = "piper"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Runner == nil {
		config.Runner = ExecRunner{Timeout: config.Timeout}
	}
	return &Piper{config: config, rates: make(map[string]int)}
}

// Synthesize converts text to audio using Piper.
func (p *Piper) Synthesize(ctx context.Context, req Request) (audio.Clip, error) {
	if err := checkText(KindPiper, req.Text, piperMaxText); err != nil {
		return audio.Clip{}, err
	}

	model := p.modelPath(req.Voice)
	args := []string{
		"--model", model,
		"--output-raw",
		"--length-scale", lengthScale(req.Speed),
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	pcm, err := p.config.Runner.Run(ctx, strings.NewReader(req.Text), p.config.Binary, args...)
	if err != nil {
		return audio.Clip{}, wrap(KindPiper, "synthesize", fmt.Errorf("%w: %v", ErrSynthesisFailed, err))
	}
	if len(pcm) < 2 {
		return audio.Clip{}, wrap(KindPiper, "synthesize", fmt.Errorf("%w: no audio output", ErrSynthesisFailed))
	}

	log.Debug("piper synthesized", "voice", req.Voice, "bytes", len(pcm), "took", time.Since(start))
	return audio.Clip{PCM: pcm[:len(pcm)&^1], SampleRate: p.sampleRate(model), Channels: 1}, nil
}

// lengthScale maps speed to Piper's phoneme length: 2.0 speed is 0.5 scale.
func lengthScale(speed float64) string {
	if speed <= 0 {
		speed = 1
	}
	return strconv.FormatFloat(1/speed, 'f', 2, 64)
}

// modelPath resolves a voice name to a model file. Absolute or relative
// paths to .onnx files are used as given.
func (p *Piper) modelPath(voice string) string {
	if voice == "" {
		voice = DefaultPiperVoice
	}
	if strings.HasSuffix(voice, ".onnx") || strings.ContainsRune(voice, os.PathSeparator) {
		return voice
	}
	return filepath.Join(p.config.ModelDir, voice+".onnx")
}

// sampleRate reads the rate from the model's JSON config, falling back to
// Piper's usual 22050 Hz.
func (p *Piper) sampleRate(model string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rate, ok := p.rates[model]; ok {
		return rate
	}

	rate := piperDefaultRate
	if data, err := os.ReadFile(model + ".json"); err == nil {
		var cfg struct {
			Audio struct {
				SampleRate int `json:"sample_rate"`
			} `json:"audio"`
		}
		if json.Unmarshal(data, &cfg) == nil && cfg.Audio.SampleRate > 0 {
			rate = cfg.Audio.SampleRate
		}
	}
	p.rates[model] = rate
	return rate
}

// Info returns engine capabilities and configuration.
func (p *Piper) Info() Info {
	return Info{
		Name:         KindPiper,
		DefaultVoice: DefaultPiperVoice,
		MaxTextSize:  piperMaxText,
	}
}

// Validate checks the piper binary and default model are present.
func (p *Piper) Validate(ctx context.Context) error {
	if _, err := p.config.Runner.LookPath(p.config.Binary); err != nil {
		return wrap(KindPiper, "validate", fmt.Errorf("%w: %s not found in PATH", ErrNotAvailable, p.config.Binary))
	}
	model := p.modelPath("")
	if _, err := os.Stat(model); err != nil {
		return wrap(KindPiper, "validate", fmt.Errorf("%w: model %s: %v", ErrNotAvailable, model, err))
	}
	return nil
}
