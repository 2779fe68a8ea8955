package engine

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/dgnsrekt/voxd/internal/audio"
)

// Mock is an engine for tests and for running without any TTS installed.
// It renders each sentence as a short tone whose length follows the text.
type Mock struct {
	// SampleRate of the returned clips. Defaults to 22050.
	SampleRate int

	// PerChar is the tone length per character at speed 1. Defaults to 2ms.
	PerChar time.Duration

	// Amplitude of the tone, 0 to 1. Defaults to 0.3.
	Amplitude float64

	// Fail, when set, is consulted before each synthesis; a non-nil error
	// is returned instead of audio.
	Fail func(req Request) error

	// Panic, when set, makes Synthesize panic for matching requests.
	Panic func(req Request) bool

	mu    sync.Mutex
	calls []Request
}

// NewMock creates a mock engine with default settings.
func NewMock() *Mock {
	return &Mock{}
}

// Synthesize records the request and returns a tone.
func (m *Mock) Synthesize(ctx context.Context, req Request) (audio.Clip, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	fail, panicky := m.Fail, m.Panic
	m.mu.Unlock()

	if err := checkText(KindMock, req.Text, 0); err != nil {
		return audio.Clip{}, err
	}
	if panicky != nil && panicky(req) {
		panic("mock engine: synthesis panic for " + req.Text)
	}
	if fail != nil {
		if err := fail(req); err != nil {
			return audio.Clip{}, wrap(KindMock, "synthesize", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return audio.Clip{}, wrap(KindMock, "synthesize", err)
	}

	return m.tone(req), nil
}

func (m *Mock) tone(req Request) audio.Clip {
	rate := m.SampleRate
	if rate <= 0 {
		rate = 22050
	}
	perChar := m.PerChar
	if perChar <= 0 {
		perChar = 2 * time.Millisecond
	}
	amp := m.Amplitude
	if amp <= 0 {
		amp = 0.3
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1
	}

	d := time.Duration(float64(perChar) * float64(len([]rune(req.Text))) / speed)
	clip := audio.Silence(d, rate, 1)
	for i := 0; i < clip.Frames(); i++ {
		v := amp * math.MaxInt16 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
		binary.LittleEndian.PutUint16(clip.PCM[i*2:], uint16(int16(v)))
	}
	return clip
}

// Calls returns every request received, in order.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Info returns engine capabilities and configuration.
func (m *Mock) Info() Info {
	return Info{Name: KindMock, DefaultVoice: "mock"}
}

// Validate always succeeds.
func (m *Mock) Validate(ctx context.Context) error {
	return nil
}
