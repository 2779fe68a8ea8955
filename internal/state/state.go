// Package state holds the runtime playback parameters shared by the
// configuration boundary and the delivery worker.
package state

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dgnsrekt/voxd/internal/engine"
	"github.com/mitchellh/go-homedir"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cast"
)

// Field names accepted by Apply.
const (
	FieldVoice       = "voice"
	FieldSpeed       = "speed"
	FieldVolume      = "volume"
	FieldMuted       = "muted"
	FieldEngine      = "engine"
	FieldPreCuePath  = "pre_cue_path"
	FieldPostCuePath = "post_cue_path"

	fieldSpeaking = "speaking"
)

// Bounds for numeric fields.
const (
	MinSpeed  = 0.5
	MaxSpeed  = 2.0
	MinVolume = 0.0
	MaxVolume = 2.0
)

var (
	// ErrUnknownField indicates an update key that is not a writable field.
	ErrUnknownField = errors.New("unknown field")

	// ErrReadOnlyField indicates an attempt to write a field only the
	// worker may change.
	ErrReadOnlyField = errors.New("read-only field")

	// ErrOutOfRange indicates a numeric value outside its bounds.
	ErrOutOfRange = errors.New("value out of range")

	// ErrInvalidValue indicates a value of the wrong type or content.
	ErrInvalidValue = errors.New("invalid value")
)

var writable = []string{
	FieldVoice, FieldSpeed, FieldVolume, FieldMuted,
	FieldEngine, FieldPreCuePath, FieldPostCuePath,
}

// Snapshot is a consistent copy of the runtime state.
type Snapshot struct {
	Voice       string      `json:"voice" yaml:"voice" toml:"voice"`
	Speed       float64     `json:"speed" yaml:"speed" toml:"speed"`
	Volume      float64     `json:"volume" yaml:"volume" toml:"volume"`
	Muted       bool        `json:"muted" yaml:"muted" toml:"muted"`
	Engine      engine.Kind `json:"engine" yaml:"engine" toml:"engine"`
	PreCuePath  string      `json:"pre_cue_path,omitempty" yaml:"pre_cue_path,omitempty" toml:"pre_cue_path,omitempty"`
	PostCuePath string      `json:"post_cue_path,omitempty" yaml:"post_cue_path,omitempty" toml:"post_cue_path,omitempty"`

	// Speaking is owned by the worker and never persisted.
	Speaking bool `json:"speaking" yaml:"-" toml:"-"`
}

// Defaults returns the state a fresh process starts with.
func Defaults() Snapshot {
	return Snapshot{
		Voice:  engine.DefaultPiperVoice,
		Speed:  1.0,
		Volume: 1.0,
		Engine: engine.KindPiper,
	}
}

// Update is a partial set of field values keyed by field name. Values may
// be of any type that converts cleanly, e.g. "1.5" for a speed.
type Update map[string]any

// State is the single shared runtime record. Reads return copies; writes
// are visible to the next sentence the worker dispatches.
type State struct {
	applyMu sync.Mutex // serializes Apply so validation runs unlocked
	mu      sync.RWMutex
	snap    Snapshot
}

// New creates the state seeded with initial. Speaking always starts false.
func New(initial Snapshot) *State {
	initial.Speaking = false
	return &State{snap: initial}
}

// Snapshot returns a consistent copy of every field.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Muted reports whether delivery is muted.
func (s *State) Muted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Muted
}

// Speaking reports whether the worker is delivering a batch.
func (s *State) Speaking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Speaking
}

// SetSpeaking is called by the worker only.
func (s *State) SetSpeaking(speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Speaking = speaking
}

// Apply validates every field in u and, only if all are valid, writes them.
// It returns the names of fields whose value changed, sorted.
func (s *State) Apply(u Update) ([]string, error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.RLock()
	next := s.snap
	s.mu.RUnlock()

	var errs []error
	for _, name := range sortedKeys(u) {
		if err := set(&next, name, u[name]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Speaking may have moved while validating; it is not ours to change.
	next.Speaking = s.snap.Speaking
	changed := diff(s.snap, next)
	s.snap = next
	return changed, nil
}

func set(snap *Snapshot, name string, value any) error {
	switch name {
	case FieldVoice:
		v, err := cast.ToStringE(value)
		if err != nil {
			return invalid(name, value, err)
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidValue, name)
		}
		snap.Voice = v

	case FieldSpeed:
		v, err := toFloat(name, value, MinSpeed, MaxSpeed)
		if err != nil {
			return err
		}
		snap.Speed = v

	case FieldVolume:
		v, err := toFloat(name, value, MinVolume, MaxVolume)
		if err != nil {
			return err
		}
		snap.Volume = v

	case FieldMuted:
		v, err := cast.ToBoolE(value)
		if err != nil {
			return invalid(name, value, err)
		}
		snap.Muted = v

	case FieldEngine:
		v, err := cast.ToStringE(value)
		if err != nil {
			return invalid(name, value, err)
		}
		kind, err := engine.ParseKind(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, name, err)
		}
		snap.Engine = kind

	case FieldPreCuePath, FieldPostCuePath:
		path, err := cuePath(name, value)
		if err != nil {
			return err
		}
		if name == FieldPreCuePath {
			snap.PreCuePath = path
		} else {
			snap.PostCuePath = path
		}

	case fieldSpeaking:
		return fmt.Errorf("%w: %s", ErrReadOnlyField, name)

	default:
		if hint := suggest(name); hint != "" {
			return fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownField, name, hint)
		}
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	return nil
}

func toFloat(name string, value any, lo, hi float64) (float64, error) {
	if _, ok := value.(bool); ok {
		return 0, invalid(name, value, errors.New("expected a number"))
	}
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, invalid(name, value, err)
	}
	if math.IsNaN(v) || v < lo || v > hi {
		return 0, fmt.Errorf("%w: %s %v not in [%g, %g]", ErrOutOfRange, name, value, lo, hi)
	}
	return v, nil
}

// cuePath expands ~ and requires the file to exist. An empty or nil value
// clears the cue.
func cuePath(name string, value any) (string, error) {
	if value == nil {
		return "", nil
	}
	p, err := cast.ToStringE(value)
	if err != nil {
		return "", invalid(name, value, err)
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "", nil
	}
	p, err = homedir.Expand(p)
	if err != nil {
		return "", invalid(name, value, err)
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidValue, name, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s: %s is a directory", ErrInvalidValue, name, p)
	}
	return p, nil
}

func invalid(name string, value any, err error) error {
	return fmt.Errorf("%w: %s=%v: %v", ErrInvalidValue, name, value, err)
}

func suggest(name string) string {
	matches := fuzzy.Find(strings.ToLower(name), writable)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

func diff(a, b Snapshot) []string {
	var changed []string
	if a.Voice != b.Voice {
		changed = append(changed, FieldVoice)
	}
	if a.Speed != b.Speed {
		changed = append(changed, FieldSpeed)
	}
	if a.Volume != b.Volume {
		changed = append(changed, FieldVolume)
	}
	if a.Muted != b.Muted {
		changed = append(changed, FieldMuted)
	}
	if a.Engine != b.Engine {
		changed = append(changed, FieldEngine)
	}
	if a.PreCuePath != b.PreCuePath {
		changed = append(changed, FieldPreCuePath)
	}
	if a.PostCuePath != b.PostCuePath {
		changed = append(changed, FieldPostCuePath)
	}
	sort.Strings(changed)
	return changed
}

func sortedKeys(u Update) []string {
	keys := make([]string, 0, len(u))
	for k := range u {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fields returns the names Apply accepts.
func Fields() []string {
	return append([]string(nil), writable...)
}
