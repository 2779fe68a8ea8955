package ambient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/execabs"
)

// Commander runs a command and returns its stdout.
type Commander interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCommander struct{}

func (execCommander) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return execabs.CommandContext(ctx, name, args...).Output()
}

// Pulse ducks PulseAudio and PipeWire sink inputs through pactl.
type Pulse struct {
	binary  string
	cmd     Commander
	pid     int
	timeout time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	ducked map[int]session // by sink input index; nil when not ducked
}

type session struct {
	name    string
	volumes []int // raw per-channel volume in channel map order
}

// PulseOption configures a Pulse coordinator.
type PulseOption func(*Pulse)

// WithCommander replaces the command runner, for tests.
func WithCommander(c Commander) PulseOption {
	return func(p *Pulse) { p.cmd = c }
}

// WithPID sets the process whose own streams are never ducked.
func WithPID(pid int) PulseOption {
	return func(p *Pulse) { p.pid = pid }
}

// WithLogger sets the logger for best-effort failures.
func WithLogger(l *log.Logger) PulseOption {
	return func(p *Pulse) { p.logger = l }
}

// WithBinary sets the pactl executable.
func WithBinary(path string) PulseOption {
	return func(p *Pulse) { p.binary = path }
}

// NewPulse creates a pactl-backed coordinator.
func NewPulse(opts ...PulseOption) *Pulse {
	p := &Pulse{
		binary:  "pactl",
		cmd:     execCommander{},
		pid:     os.Getpid(),
		timeout: 2 * time.Second,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithPrefix("ambient")
	return p
}

// sinkInput is the subset of `pactl -f json list sink-inputs` we read.
type sinkInput struct {
	Index      int                        `json:"index"`
	ChannelMap string                     `json:"channel_map"`
	Volume     map[string]channelVolume   `json:"volume"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type channelVolume struct {
	Value int `json:"value"`
}

// Duck halves every other sink input with a non-zero volume. A Duck while
// a previous one is still held does nothing, so volumes are never halved
// twice.
func (p *Pulse) Duck(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ducked != nil {
		p.logger.Debug("already ducked")
		return
	}

	inputs, err := p.list(ctx)
	if err != nil {
		p.logger.Warn("could not list audio sessions", "err", err)
		return
	}

	p.ducked = make(map[int]session)
	for _, in := range inputs {
		if in.pid() == p.pid {
			continue
		}
		vols := in.volumes()
		if len(vols) == 0 || allZero(vols) {
			continue
		}
		half := make([]int, len(vols))
		for i, v := range vols {
			half[i] = v / 2
		}
		if err := p.setVolume(ctx, in.Index, half); err != nil {
			p.logger.Warn("could not duck session", "session", in.name(), "err", err)
			continue
		}
		p.ducked[in.Index] = session{name: in.name(), volumes: vols}
		p.logger.Debug("ducked", "session", in.name(), "index", in.Index)
	}
}

// Unduck restores every session Duck lowered, skipping any that have gone
// away, and clears the snapshot.
func (p *Pulse) Unduck(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ducked == nil {
		return
	}
	snapshot := p.ducked
	p.ducked = nil

	if len(snapshot) == 0 {
		return
	}

	// Unduck also runs on shutdown paths where ctx may already be done.
	ctx = context.WithoutCancel(ctx)

	live := make(map[int]bool)
	if inputs, err := p.list(ctx); err == nil {
		for _, in := range inputs {
			live[in.Index] = true
		}
	} else {
		p.logger.Warn("could not list audio sessions", "err", err)
		live = nil
	}

	for index, s := range snapshot {
		if live != nil && !live[index] {
			p.logger.Debug("session vanished while ducked", "session", s.name, "index", index)
			continue
		}
		if err := p.setVolume(ctx, index, s.volumes); err != nil {
			p.logger.Warn("could not restore session", "session", s.name, "err", err)
		}
	}
}

// Ducked returns the number of sessions currently held lowered.
func (p *Pulse) Ducked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ducked)
}

// Probe checks that pactl answers, for `voxd doctor`.
func (p *Pulse) Probe(ctx context.Context) (int, error) {
	inputs, err := p.list(ctx)
	return len(inputs), err
}

func (p *Pulse) list(ctx context.Context) ([]sinkInput, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.cmd.Output(ctx, p.binary, "-f", "json", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list: %w", err)
	}
	var inputs []sinkInput
	if err := json.Unmarshal(out, &inputs); err != nil {
		return nil, fmt.Errorf("pactl list: %w", err)
	}
	return inputs, nil
}

func (p *Pulse) setVolume(ctx context.Context, index int, volumes []int) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{"set-sink-input-volume", strconv.Itoa(index)}
	for _, v := range volumes {
		args = append(args, strconv.Itoa(v))
	}
	_, err := p.cmd.Output(ctx, p.binary, args...)
	return err
}

// volumes returns channel volumes in channel map order, falling back to
// channel name order when no map is given.
func (in sinkInput) volumes() []int {
	var names []string
	if in.ChannelMap != "" {
		names = strings.Split(in.ChannelMap, ",")
	} else {
		for name := range in.Volume {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	vols := make([]int, 0, len(names))
	for _, name := range names {
		if v, ok := in.Volume[strings.TrimSpace(name)]; ok {
			vols = append(vols, v.Value)
		}
	}
	return vols
}

func (in sinkInput) pid() int {
	return in.intProperty("application.process.id")
}

func (in sinkInput) name() string {
	for _, key := range []string{"application.process.binary", "application.name"} {
		if s := in.stringProperty(key); s != "" {
			return s
		}
	}
	return "sink-input-" + strconv.Itoa(in.Index)
}

// Properties are strings in pactl's JSON but tolerate numbers too.
func (in sinkInput) stringProperty(key string) string {
	raw, ok := in.Properties[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func (in sinkInput) intProperty(key string) int {
	n, err := strconv.Atoi(in.stringProperty(key))
	if err != nil {
		return -1
	}
	return n
}

func allZero(vols []int) bool {
	for _, v := range vols {
		if v != 0 {
			return false
		}
	}
	return true
}
