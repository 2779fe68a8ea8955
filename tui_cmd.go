package main

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/dgnsrekt/voxd/ui"
	"github.com/spf13/cobra"
)

var tuiMouse bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Type text to speak and adjust playback interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := env.ParseAs[ui.Config]()
		if err != nil {
			return fmt.Errorf("error parsing config: %v", err)
		}
		cfg.EnableMouse = tuiMouse

		p, err := newPipeline(settings, environ, withWatch())
		if err != nil {
			return err
		}
		defer p.close()
		defer p.restoreOnPanic()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if err := applyEngineFlag(cmd, p.speaker.State()); err != nil {
			return err
		}
		p.start(ctx)

		if _, err := ui.NewProgram(cfg, p.speaker).Run(); err != nil {
			return fmt.Errorf("unable to run tui program: %w", err)
		}
		// Leaving the companion stops speech mid-sentence.
		cancel()
		return nil
	},
}

func init() {
	tuiCmd.Flags().BoolVarP(&tuiMouse, "mouse", "m", false, "enable mouse support")
	_ = tuiCmd.Flags().MarkHidden("mouse")
}
