// Package main provides the entry point for the voxd CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/config"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	configDir  string
	debug      bool

	// settings and environ are loaded before any subcommand runs.
	settings config.Settings
	environ  config.Env

	rootCmd = &cobra.Command{
		Use:   "voxd",
		Short: "Speak text aloud, one batch at a time",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text aloud %s, ducking everything else while it talks.", keyword("in order")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadSettings()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// loadSettings reads the environment and the config file into settings.
func loadSettings() error {
	if rootCmd.PersistentFlags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read %s: %w", configFile, err)
		}
	}

	var err error
	environ, err = config.LoadEnv(filepath.Join(configDir, ".env"), ".env")
	if err != nil {
		return err
	}
	if debug || environ.Debug {
		log.SetLevel(log.DebugLevel)
	}

	settings, err = config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if environ.StateFile != "" {
		settings.StateFile = environ.StateFile
	}
	if settings.StateFile == "" {
		settings.StateFile, err = gap.NewScope(gap.User, "voxd").DataPath("state.yaml")
		if err != nil {
			return fmt.Errorf("could not find data directory: %w", err)
		}
	}
	log.Debug("settings loaded", "engine", settings.Engine, "state_file", settings.StateFile)
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	config.SetDefaults(viper.GetViper())
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output")
	rootCmd.PersistentFlags().String("engine", "", "engine used until changed at runtime (piper, gtts, openai, espeak, mock)")
	rootCmd.PersistentFlags().String("language", "", "segmenter language")

	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("language", rootCmd.PersistentFlags().Lookup("language"))

	rootCmd.AddCommand(serveCmd, sayCmd, tuiCmd, doctorCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "voxd")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "voxd")}, dirs...)
	}

	if c := os.Getenv("VOXD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}
	configDir = dirs[0]

	viper.SetConfigName("voxd")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("voxd")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		configFile = used
		configDir = filepath.Dir(used)
		return
	}

	configFile = filepath.Join(dirs[0], "voxd.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
