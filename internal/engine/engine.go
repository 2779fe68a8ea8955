package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dgnsrekt/voxd/internal/audio"
	"github.com/sahilm/fuzzy"
)

// Kind names a synthesis backend.
type Kind string

// Supported engines.
const (
	KindPiper  Kind = "piper"
	KindGTTS   Kind = "gtts"
	KindOpenAI Kind = "openai"
	KindEspeak Kind = "espeak"
	KindMock   Kind = "mock"
)

// Kinds returns every supported engine in a stable order.
func Kinds() []Kind {
	return []Kind{KindPiper, KindGTTS, KindOpenAI, KindEspeak, KindMock}
}

// ParseKind validates an engine name. Unknown names yield ErrUnknownEngine
// with the closest supported name as a hint.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	if hint := Suggest(name); hint != "" {
		return "", fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownEngine, name, hint)
	}
	return "", fmt.Errorf("%w %q", ErrUnknownEngine, name)
}

// Suggest returns the supported engine name closest to name, if any.
func Suggest(name string) string {
	names := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	matches := fuzzy.Find(strings.ToLower(name), names)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// Request is one sentence to synthesize with the parameters in effect when
// it was dispatched.
type Request struct {
	Text  string
	Voice string
	Speed float64
}

// Info describes an engine's capabilities.
type Info struct {
	Name         Kind
	Online       bool
	DefaultVoice string
	MaxTextSize  int
}

// Engine synthesizes speech. Implementations must be safe for use by one
// goroutine at a time; the delivery worker never calls concurrently.
type Engine interface {
	// Synthesize returns mono or stereo 16-bit PCM at the clip's own rate.
	Synthesize(ctx context.Context, req Request) (audio.Clip, error)

	// Info returns engine capabilities and configuration.
	Info() Info

	// Validate checks that the engine's dependencies are present.
	Validate(ctx context.Context) error
}

// checkText applies the limits shared by every engine.
func checkText(kind Kind, text string, max int) error {
	if strings.TrimSpace(text) == "" {
		return wrap(kind, "synthesize", ErrEmptyText)
	}
	if n := utf8.RuneCountInString(text); max > 0 && n > max {
		return wrap(kind, "synthesize", fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, n, max))
	}
	return nil
}

// Registry maps engine kinds to configured engines.
type Registry struct {
	mu      sync.RWMutex
	engines map[Kind]Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[Kind]Engine)}
}

// Register adds or replaces the engine for kind.
func (r *Registry) Register(kind Kind, e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[kind] = e
}

// Get returns the engine for kind.
func (r *Registry) Get(kind Kind) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.engines[kind]; ok {
		return e, nil
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotRegistered, kind)
}

// Registered returns the kinds with a configured engine, sorted by name.
func (r *Registry) Registered() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.engines))
	for k := range r.engines {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
