package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgnsrekt/voxd/internal/audio"
	"golang.org/x/time/rate"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openAITTSEndpoint = "/audio/speech"

	// OpenAIModel is the TTS model optimized for latency.
	OpenAIModel = "tts-1"

	// OpenAI returns raw PCM at 24 kHz, 16-bit, mono.
	openAISampleRate = 24000
	openAIMaxText    = 4096

	// DefaultOpenAIVoice is the voice used when the request names none
	// the API knows.
	DefaultOpenAIVoice = "alloy"
)

var openAIVoices = map[string]bool{
	"alloy": true, "ash": true, "coral": true, "echo": true, "fable": true,
	"nova": true, "onyx": true, "sage": true, "shimmer": true,
}

// OpenAIConfig holds configuration for the OpenAI speech engine.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Client            *http.Client
	RequestsPerMinute int
}

// OpenAI synthesizes speech with OpenAI's audio/speech API.
type OpenAI struct {
	config  OpenAIConfig
	limiter *rate.Limiter
}

// NewOpenAI creates an OpenAI engine.
func NewOpenAI(config OpenAIConfig) *OpenAI {
	if config.BaseURL == "" {
		config.BaseURL = openAIBaseURL
	}
	if config.Model == "" {
		config.Model = OpenAIModel
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 100
	}
	return &OpenAI{
		config:  config,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 3),
	}
}

type openAIRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Synthesize converts text to audio using the speech endpoint.
func (o *OpenAI) Synthesize(ctx context.Context, req Request) (audio.Clip, error) {
	if err := checkText(KindOpenAI, req.Text, openAIMaxText); err != nil {
		return audio.Clip{}, err
	}
	if o.config.APIKey == "" {
		return audio.Clip{}, wrap(KindOpenAI, "synthesize", fmt.Errorf("%w: no API key", ErrNotAvailable))
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return audio.Clip{}, wrap(KindOpenAI, "synthesize", fmt.Errorf("rate limit wait cancelled: %w", err))
	}

	voice := req.Voice
	if !openAIVoices[voice] {
		voice = DefaultOpenAIVoice
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1
	}

	body, err := json.Marshal(openAIRequest{
		Model:          o.config.Model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: "pcm",
		Speed:          speed,
	})
	if err != nil {
		return audio.Clip{}, wrap(KindOpenAI, "synthesize", fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+openAITTSEndpoint, bytes.NewReader(body))
	if err != nil {
		return audio.Clip{}, wrap(KindOpenAI, "synthesize", fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.config.Client.Do(httpReq)
	if err != nil {
		return audio.Clip{}, wrap(KindOpenAI, "synthesize", fmt.Errorf("%w: %v", ErrSynthesisFailed, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Clip{}, wrap(KindOpenAI, "synthesize", o.statusError(resp))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, wrap(KindOpenAI, "synthesize", fmt.Errorf("failed to read audio: %w", err))
	}
	if len(pcm) < 2 {
		return audio.Clip{}, wrap(KindOpenAI, "synthesize", fmt.Errorf("%w: empty response", ErrSynthesisFailed))
	}
	return audio.Clip{PCM: pcm[:len(pcm)&^1], SampleRate: openAISampleRate, Channels: 1}, nil
}

func (o *OpenAI) statusError(resp *http.Response) error {
	var errResp openAIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Message == "" {
		return fmt.Errorf("%w: status %d", ErrSynthesisFailed, resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d: %s", ErrSynthesisFailed, resp.StatusCode, errResp.Error.Message)
}

// Info returns engine capabilities and configuration.
func (o *OpenAI) Info() Info {
	return Info{
		Name:         KindOpenAI,
		Online:       true,
		DefaultVoice: DefaultOpenAIVoice,
		MaxTextSize:  openAIMaxText,
	}
}

// Validate checks that an API key is configured. It does not spend a
// request on the network.
func (o *OpenAI) Validate(ctx context.Context) error {
	if o.config.APIKey == "" {
		return wrap(KindOpenAI, "validate", fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotAvailable))
	}
	return nil
}
