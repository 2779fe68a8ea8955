package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/ambient"
	"github.com/dgnsrekt/voxd/internal/config"
	"github.com/dgnsrekt/voxd/internal/engine"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// doctorTimeout bounds all checks together.
const doctorTimeout = 15 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check engines, audio ducking, the cache and saved state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()
		return runDoctor(ctx, cmd.OutOrStdout())
	},
}

// prober is implemented by coordinators that can check their backend.
type prober interface {
	Probe(ctx context.Context) (int, error)
}

func runDoctor(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, keyword("Configuration"))
	if used := viper.ConfigFileUsed(); used != "" {
		check(w, true, "config file", used)
	} else {
		check(w, true, "config file", "none, using defaults")
	}

	sf, err := config.NewStateFile(settings.StateFile)
	if err != nil {
		check(w, false, "state file", err.Error())
	} else {
		snap, skipped, err := sf.Load(initialState(settings))
		switch {
		case err != nil:
			check(w, false, "state file", err.Error())
		case len(skipped) > 0:
			check(w, false, "state file", fmt.Sprintf("%s: %v", sf.Path(), errors.Join(skipped...)))
		default:
			check(w, true, "state file", fmt.Sprintf("%s (engine %s, voice %s, speed %.2f, volume %.2f, muted %t)",
				sf.Path(), snap.Engine, snap.Voice, snap.Speed, snap.Volume, snap.Muted))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, keyword("Engines"))
	reg := buildRegistry(settings, environ, nil)
	current := engine.Kind(settings.Engine)
	currentOK := false
	for _, kind := range reg.Registered() {
		eng, err := reg.Get(kind)
		if err != nil {
			continue
		}
		name := string(kind)
		if kind == current {
			name += " (default)"
		}
		info := eng.Info()
		if err := eng.Validate(ctx); err != nil {
			check(w, false, name, err.Error())
			continue
		}
		if kind == current {
			currentOK = true
		}
		detail := "voice " + info.DefaultVoice
		if info.Online {
			detail += ", online"
		}
		check(w, true, name, detail)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, keyword("Ambient ducking"))
	switch {
	case !settings.Ambient.Duck:
		check(w, true, "ducking", "disabled in config")
	default:
		coord := ambient.NewPlatform(log.Default())
		if p, ok := coord.(prober); ok {
			n, err := p.Probe(ctx)
			if err != nil {
				check(w, false, "pactl", err.Error())
			} else {
				check(w, true, "pactl", fmt.Sprintf("%d playback streams", n))
			}
		} else {
			check(w, false, "ducking", "not supported here, other audio keeps its volume")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, keyword("Cache"))
	if !settings.Cache.Enabled {
		check(w, true, "cache", "disabled in config")
	} else if c, err := openCache(settings); err != nil {
		check(w, false, "cache", err.Error())
	} else {
		st := c.Stats()
		check(w, true, c.Dir(), st.Summary())
		if settings.Cache.TTL > 0 {
			check(w, true, "expiry", "entries older than "+strings.TrimSpace(humanize.RelTime(time.Now(), time.Now().Add(settings.Cache.TTL), "", ""))+" are removed")
		}
		_ = c.Close()
	}

	if environ.MockAudio {
		fmt.Fprintln(w)
		fmt.Fprintln(w, noteStyle("VOXD_MOCK_AUDIO is set: audio will not be played."))
	}

	if !currentOK {
		return fmt.Errorf("default engine %s is not usable", current)
	}
	return nil
}

func check(w io.Writer, ok bool, name, detail string) {
	mark := okStyle("✓")
	if !ok {
		mark = failStyle("✗")
	}
	fmt.Fprintf(w, "  %s %s\n", mark, name)
	if detail != "" {
		fmt.Fprintln(w, noteStyle(indent.String(wordwrap.String(detail, 72), 6)))
	}
}
