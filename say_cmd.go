package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/speaker"
	"github.com/dgnsrekt/voxd/internal/state"
	"github.com/dgnsrekt/voxd/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	sayFile      string
	sayClipboard bool
	sayPreview   bool

	errNothingToSay = errors.New("nothing to say: pass TEXT, --file or --clipboard, or pipe text on stdin")
)

var sayCmd = &cobra.Command{
	Use:   "say [TEXT...]",
	Short: "Speak text and wait until it has been heard",
	Long: paragraph(fmt.Sprintf("\n%s text given as arguments, from a file, from the clipboard or piped on stdin. "+
		"Markdown, links and code are cleaned up before speaking.", keyword("Speak"))),
	Example: paragraph("voxd say 'Build finished.'\ngit log -1 --format=%B | voxd say\nvoxd say --file NOTES.md --preview"),
	RunE:    runSay,
}

func init() {
	sayCmd.Flags().StringVarP(&sayFile, "file", "f", "", "read text from a file (- for stdin)")
	sayCmd.Flags().BoolVarP(&sayClipboard, "clipboard", "c", false, "read text from the clipboard")
	sayCmd.Flags().BoolVarP(&sayPreview, "preview", "p", false, "render the text as markdown while speaking")
}

func runSay(cmd *cobra.Command, args []string) error {
	raw, err := readSayInput(args, sayFile, sayClipboard, os.Stdin, term.IsTerminal(int(os.Stdin.Fd())))
	if err != nil {
		return err
	}

	if sayPreview {
		if err := renderPreview(cmd.OutOrStdout(), raw); err != nil {
			log.Warn("could not render preview", "err", err)
		}
	}

	delivered := make(chan worker.Report, 1)
	p, err := newPipeline(settings, environ, withReport(func(r worker.Report) {
		select {
		case delivered <- r:
		default:
		}
	}))
	if err != nil {
		return err
	}
	defer p.close()
	defer p.restoreOnPanic()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := applyEngineFlag(cmd, p.speaker.State()); err != nil {
		return err
	}
	p.start(ctx)

	res := p.speaker.Submit(raw)
	switch res.Outcome {
	case speaker.Skipped:
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle("Nothing speakable: "+res.Reason))
		return nil
	case speaker.Rejected:
		return fmt.Errorf("submission rejected: %s", res.Reason)
	}
	log.Debug("submitted", "batch", res.BatchID, "sentences", res.Sentences)

	select {
	case r := <-delivered:
		printReport(cmd.ErrOrStderr(), r)
	case <-ctx.Done():
		fmt.Fprintln(cmd.ErrOrStderr(), noteStyle("Interrupted."))
	}
	stop()
	return nil
}

// applyEngineFlag switches the engine for this run only; it is not saved.
func applyEngineFlag(cmd *cobra.Command, st *state.State) error {
	if !cmd.Flags().Changed("engine") {
		return nil
	}
	if _, err := st.Apply(state.Update{"engine": settings.Engine}); err != nil {
		return fmt.Errorf("invalid --engine: %w", err)
	}
	return nil
}

// readSayInput picks the text source: --file, --clipboard, arguments, then
// piped stdin.
func readSayInput(args []string, file string, fromClipboard bool, stdin io.Reader, stdinIsTerminal bool) (string, error) {
	var raw string
	switch {
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read stdin: %w", err)
		}
		raw = string(b)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("unable to read file: %w", err)
		}
		raw = string(b)
	case fromClipboard:
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		raw = s
	case len(args) > 0:
		raw = strings.Join(args, " ")
	case !stdinIsTerminal:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read stdin: %w", err)
		}
		raw = string(b)
	}

	if strings.TrimSpace(raw) == "" {
		return "", errNothingToSay
	}
	return raw, nil
}

func renderPreview(w io.Writer, raw string) error {
	width := 80
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw > 0 {
			width = min(tw, 120)
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(raw)
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func printReport(w io.Writer, r worker.Report) {
	switch {
	case r.Discarded:
		fmt.Fprintln(w, noteStyle("Muted, nothing was spoken."))
	case r.Panicked || r.Failed > 0:
		fmt.Fprintln(w, warnStyle(fmt.Sprintf("Spoke %d of %d sentences (%d failed), see the log.",
			r.Played, len(r.Batch.Sentences), r.Failed)))
	default:
		fmt.Fprintln(w, noteStyle(fmt.Sprintf("Spoke %d sentences in %s.", r.Played, r.Elapsed.Round(10*time.Millisecond))))
	}
}
