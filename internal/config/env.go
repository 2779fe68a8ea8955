package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds settings that only come from the environment.
type Env struct {
	Debug      bool   `env:"VOXD_DEBUG"`
	MockAudio  bool   `env:"VOXD_MOCK_AUDIO"`
	StateFile  string `env:"VOXD_STATE_FILE"`
	ConfigHome string `env:"VOXD_CONFIG_HOME"`
	OpenAIKey  string `env:"OPENAI_API_KEY"`
}

// LoadEnv loads the first .env file among paths that exists, without
// overriding variables already set, then parses Env.
func LoadEnv(paths ...string) (Env, error) {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("could not read %s: %w", p, err)
		}
	}

	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("could not parse environment: %w", err)
	}
	return e, nil
}
