package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# segmenter language (en, de, fr, ...)
language: "en"
# engine and voice used until changed at runtime
engine: "piper"
voice: "en_US-lessac-medium"
# runtime state file (.yaml, .yml or .toml); empty uses the data directory
state_file: ""

queue:
  # batches waiting behind the one being spoken
  capacity: 3

audio:
  # output device rate: 44100 or 48000
  sample_rate: 44100
  buffer: "100ms"

ambient:
  # lower other applications while speaking
  duck: true

cache:
  enabled: true
  # dir: "~/.cache/voxd/audio"
  memory_mb: 32
  disk_mb: 512
  ttl: "168h"
  # zstd level, 0 stores uncompressed
  compression: 3

metrics:
  # serve Prometheus metrics, e.g. "127.0.0.1:9464"
  addr: ""

piper:
  binary: "piper"
  model_dir: "~/.local/share/piper"
  timeout: "10s"

gtts:
  binary: "gtts-cli"
  language: "en"
  requests_per_minute: 50

openai:
  # the key is read from OPENAI_API_KEY
  base_url: "https://api.openai.com/v1"
  model: "tts-1"
  requests_per_minute: 100

espeak:
  binary: "espeak-ng"
  voice: "en-us"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the voxd config file",
	Long:    paragraph(fmt.Sprintf("\n%s the voxd config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("voxd config\nvoxd config --config path/to/voxd.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("voxd", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
