package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/speaker"
	"github.com/dgnsrekt/voxd/internal/state"
	"github.com/spf13/cobra"
)

// maxLine bounds one request line.
const maxLine = 1 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run voxd, reading JSON commands from stdin",
	Long: paragraph(fmt.Sprintf("\n%s the speech pipeline and read one JSON command per line from stdin. "+
		"Each command gets one JSON line back on stdout. Closing stdin finishes what is queued and exits.",
		keyword("Start"))),
	Example: paragraph(`echo '{"op":"submit","text":"Hello there."}' | voxd serve` + "\n" +
		`{"op":"configure","fields":{"speed":1.25,"muted":false}}` + "\n" +
		`{"op":"status"}`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log.SetOutput(io.MultiWriter(logOutput, os.Stderr))

		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			settings.Metrics.Addr = addr
		}

		p, err := newPipeline(settings, environ, withWatch())
		if err != nil {
			return err
		}
		defer p.close()
		defer p.restoreOnPanic()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		p.start(ctx)
		log.Info("voxd ready", "engine", p.speaker.Status().Config.Engine, "queue", p.queue.Cap())

		lines := make(chan []byte)
		go readLines(os.Stdin, lines)

		out := json.NewEncoder(os.Stdout)
		for {
			select {
			case <-ctx.Done():
				log.Info("interrupted, stopping")
				return nil
			case line, ok := <-lines:
				if !ok {
					log.Info("stdin closed, finishing queued speech")
					err := p.drain(ctx)
					stop()
					return err
				}
				if err := out.Encode(handleRequest(p.speaker, line)); err != nil {
					return fmt.Errorf("unable to write response: %w", err)
				}
			}
		}
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
}

func readLines(r io.Reader, lines chan<- []byte) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		if len(line) == 0 {
			continue
		}
		lines <- line
	}
	if err := sc.Err(); err != nil {
		log.Error("reading stdin", "err", err)
	}
}

// request is one command line on stdin.
type request struct {
	Op     string         `json:"op"`
	ID     string         `json:"id,omitempty"`
	Text   string         `json:"text,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// response answers exactly one request.
type response struct {
	Op      string          `json:"op"`
	ID      string          `json:"id,omitempty"`
	Result  *speaker.Result `json:"result,omitempty"`
	Changed []string        `json:"changed,omitempty"`
	Status  *speaker.Status `json:"status,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// backend is what handleRequest drives. *speaker.Speaker implements it.
type backend interface {
	Submit(raw string) speaker.Result
	Configure(u state.Update) ([]string, error)
	Status() speaker.Status
}

func handleRequest(b backend, line []byte) response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return response{Error: fmt.Sprintf("invalid request: %v", err)}
	}

	resp := response{Op: req.Op, ID: req.ID}
	switch req.Op {
	case "submit":
		res := b.Submit(req.Text)
		resp.Result = &res
	case "configure":
		changed, err := b.Configure(state.Update(req.Fields))
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Changed = changed
	case "status":
		st := b.Status()
		resp.Status = &st
	default:
		resp.Error = fmt.Sprintf("unknown op %q (use submit, configure or status)", req.Op)
	}
	return resp
}

// Compile-time check.
var _ backend = (*speaker.Speaker)(nil)
