package config

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/voxd/internal/engine"
	"github.com/spf13/viper"
)

// Settings is the typed view of voxd.yml.
type Settings struct {
	// Language selects the sentence segmenter's abbreviation tables.
	Language string `mapstructure:"language"`

	// Engine and Voice seed the runtime state when no state file exists.
	Engine string `mapstructure:"engine"`
	Voice  string `mapstructure:"voice"`

	// StateFile persists runtime state. Its extension picks YAML or TOML.
	StateFile string `mapstructure:"state_file"`

	Queue   QueueSettings   `mapstructure:"queue"`
	Audio   AudioSettings   `mapstructure:"audio"`
	Ambient AmbientSettings `mapstructure:"ambient"`
	Cache   CacheSettings   `mapstructure:"cache"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	Piper   PiperSettings   `mapstructure:"piper"`
	GTTS    GTTSSettings    `mapstructure:"gtts"`
	OpenAI  OpenAISettings  `mapstructure:"openai"`
	Espeak  EspeakSettings  `mapstructure:"espeak"`
}

type QueueSettings struct {
	Capacity int `mapstructure:"capacity"`
}

type AudioSettings struct {
	SampleRate int           `mapstructure:"sample_rate"`
	Buffer     time.Duration `mapstructure:"buffer"`
}

type AmbientSettings struct {
	Duck bool `mapstructure:"duck"`
}

type CacheSettings struct {
	Enabled     bool          `mapstructure:"enabled"`
	Dir         string        `mapstructure:"dir"`
	MemoryMB    int           `mapstructure:"memory_mb"`
	DiskMB      int           `mapstructure:"disk_mb"`
	TTL         time.Duration `mapstructure:"ttl"`
	Compression int           `mapstructure:"compression"`
}

type MetricsSettings struct {
	Addr string `mapstructure:"addr"`
}

type PiperSettings struct {
	Binary   string        `mapstructure:"binary"`
	ModelDir string        `mapstructure:"model_dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type GTTSSettings struct {
	Binary            string `mapstructure:"binary"`
	Language          string `mapstructure:"language"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

type OpenAISettings struct {
	BaseURL           string `mapstructure:"base_url"`
	Model             string `mapstructure:"model"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

type EspeakSettings struct {
	Binary string `mapstructure:"binary"`
	Voice  string `mapstructure:"voice"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("language", "en")
	v.SetDefault("engine", string(engine.KindPiper))
	v.SetDefault("voice", engine.DefaultPiperVoice)
	v.SetDefault("state_file", "")

	v.SetDefault("queue.capacity", 3)

	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.buffer", "100ms")

	v.SetDefault("ambient.duck", true)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.memory_mb", 32)
	v.SetDefault("cache.disk_mb", 512)
	v.SetDefault("cache.ttl", "168h")
	v.SetDefault("cache.compression", 3)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("piper.binary", "piper")
	v.SetDefault("piper.model_dir", "~/.local/share/piper")
	v.SetDefault("piper.timeout", "10s")

	v.SetDefault("gtts.binary", "gtts-cli")
	v.SetDefault("gtts.language", "en")
	v.SetDefault("gtts.requests_per_minute", 50)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", engine.OpenAIModel)
	v.SetDefault("openai.requests_per_minute", 100)

	v.SetDefault("espeak.binary", "espeak-ng")
	v.SetDefault("espeak.voice", "en-us")
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("could not decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks values the rest of voxd relies on.
func (s Settings) Validate() error {
	if _, err := engine.ParseKind(s.Engine); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if s.Queue.Capacity < 1 {
		return fmt.Errorf("queue.capacity must be at least 1, got %d", s.Queue.Capacity)
	}
	if s.Audio.SampleRate != 44100 && s.Audio.SampleRate != 48000 {
		return fmt.Errorf("audio.sample_rate must be 44100 or 48000, got %d", s.Audio.SampleRate)
	}
	if s.Cache.Compression < 0 || s.Cache.Compression > 22 {
		return fmt.Errorf("cache.compression must be between 0 and 22, got %d", s.Cache.Compression)
	}
	return nil
}
