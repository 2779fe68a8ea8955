package state

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/dgnsrekt/voxd/internal/engine"
)

func TestDefaults(t *testing.T) {
	s := New(Defaults()).Snapshot()
	want := Snapshot{
		Voice:  "en_US-lessac-medium",
		Speed:  1.0,
		Volume: 1.0,
		Engine: engine.KindPiper,
	}
	if s != want {
		t.Errorf("Expected %+v, got %+v", want, s)
	}
}

func TestNewClearsSpeaking(t *testing.T) {
	initial := Defaults()
	initial.Speaking = true
	if New(initial).Speaking() {
		t.Error("Expected speaking to start false")
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		update  Update
		changed []string
		check   func(Snapshot) bool
	}{
		{
			name:    "volume",
			update:  Update{"volume": 1.5},
			changed: []string{"volume"},
			check:   func(s Snapshot) bool { return s.Volume == 1.5 },
		},
		{
			name:    "string coercion",
			update:  Update{"speed": "1.25", "muted": "true"},
			changed: []string{"muted", "speed"},
			check:   func(s Snapshot) bool { return s.Speed == 1.25 && s.Muted },
		},
		{
			name:    "integer speed",
			update:  Update{"speed": 2},
			changed: []string{"speed"},
			check:   func(s Snapshot) bool { return s.Speed == 2 },
		},
		{
			name:    "engine",
			update:  Update{"engine": "ESpeak"},
			changed: []string{"engine"},
			check:   func(s Snapshot) bool { return s.Engine == engine.KindEspeak },
		},
		{
			name:    "unchanged value",
			update:  Update{"voice": "en_US-lessac-medium"},
			changed: nil,
			check:   func(s Snapshot) bool { return s.Voice == "en_US-lessac-medium" },
		},
		{
			name:    "volume zero",
			update:  Update{"volume": 0},
			changed: []string{"volume"},
			check:   func(s Snapshot) bool { return s.Volume == 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := New(Defaults())
			changed, err := st.Apply(tt.update)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(changed, tt.changed) {
				t.Errorf("Expected changed %v, got %v", tt.changed, changed)
			}
			if !tt.check(st.Snapshot()) {
				t.Errorf("Unexpected state %+v", st.Snapshot())
			}
		})
	}
}

func TestApplyRejects(t *testing.T) {
	tests := []struct {
		name    string
		update  Update
		wantErr error
		mention string
	}{
		{"unknown field", Update{"pitch": 1}, ErrUnknownField, "pitch"},
		{"unknown with hint", Update{"vol": 1}, ErrUnknownField, `did you mean "volume"`},
		{"speaking", Update{"speaking": true}, ErrReadOnlyField, "speaking"},
		{"speed too low", Update{"speed": 0.1}, ErrOutOfRange, "speed"},
		{"speed too high", Update{"speed": 2.5}, ErrOutOfRange, "speed"},
		{"negative volume", Update{"volume": -0.1}, ErrOutOfRange, "volume"},
		{"volume too high", Update{"volume": 3}, ErrOutOfRange, "volume"},
		{"speed not a number", Update{"speed": "fast"}, ErrInvalidValue, "speed"},
		{"bool speed", Update{"speed": true}, ErrInvalidValue, "speed"},
		{"muted not a bool", Update{"muted": "maybe"}, ErrInvalidValue, "muted"},
		{"empty voice", Update{"voice": "  "}, ErrInvalidValue, "voice"},
		{"unknown engine", Update{"engine": "pipr"}, ErrInvalidValue, `did you mean "piper"`},
		{"missing cue", Update{"pre_cue_path": "/does/not/exist.wav"}, ErrInvalidValue, "pre_cue_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := New(Defaults())
			before := st.Snapshot()

			changed, err := st.Apply(tt.update)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("Expected error to mention %q, got %q", tt.mention, err.Error())
			}
			if changed != nil {
				t.Errorf("Expected no changed fields, got %v", changed)
			}
			if st.Snapshot() != before {
				t.Errorf("Expected state unchanged, got %+v", st.Snapshot())
			}
		})
	}
}

func TestApplyIsAllOrNothing(t *testing.T) {
	st := New(Defaults())
	_, err := st.Apply(Update{"volume": 0.5, "speed": 9, "bogus": 1})
	if !errors.Is(err, ErrOutOfRange) || !errors.Is(err, ErrUnknownField) {
		t.Fatalf("Expected both errors reported, got %v", err)
	}
	if st.Snapshot().Volume != 1.0 {
		t.Error("Expected valid field in a rejected update to be left unchanged")
	}
}

func TestApplyCuePaths(t *testing.T) {
	cue := filepath.Join(t.TempDir(), "ding.wav")
	if err := os.WriteFile(cue, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := New(Defaults())
	if _, err := st.Apply(Update{"pre_cue_path": cue, "post_cue_path": cue}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s := st.Snapshot(); s.PreCuePath != cue || s.PostCuePath != cue {
		t.Errorf("Expected cue paths set, got %+v", s)
	}

	changed, err := st.Apply(Update{"pre_cue_path": "", "post_cue_path": nil})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{"post_cue_path", "pre_cue_path"}) {
		t.Errorf("Expected both cues cleared, got %v", changed)
	}

	if _, err := st.Apply(Update{"pre_cue_path": filepath.Dir(cue)}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected directory rejected, got %v", err)
	}
}

func TestApplyPreservesSpeaking(t *testing.T) {
	st := New(Defaults())
	st.SetSpeaking(true)
	if _, err := st.Apply(Update{"muted": true}); err != nil {
		t.Fatal(err)
	}
	if !st.Speaking() || !st.Muted() {
		t.Errorf("Expected speaking and muted, got %+v", st.Snapshot())
	}
}

func TestConcurrentApply(t *testing.T) {
	st := New(Defaults())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = st.Apply(Update{"volume": float64(i%20) / 10})
		}(i)
		go func() {
			defer wg.Done()
			_ = st.Snapshot()
			st.SetSpeaking(true)
		}()
	}
	wg.Wait()

	if v := st.Snapshot().Volume; v < MinVolume || v > MaxVolume {
		t.Errorf("Expected volume in range, got %v", v)
	}
}

func TestFields(t *testing.T) {
	if got := Fields(); len(got) != 7 {
		t.Errorf("Expected 7 writable fields, got %v", got)
	}
}
