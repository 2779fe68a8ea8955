package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     Kind
		wantErr  bool
		wantHint string
	}{
		{"piper", "piper", KindPiper, false, ""},
		{"upper case", "GTTS", KindGTTS, false, ""},
		{"padded", " espeak ", KindEspeak, false, ""},
		{"openai", "openai", KindOpenAI, false, ""},
		{"typo", "pipr", "", true, "piper"},
		{"unknown", "festival", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if err != nil && !errors.Is(err, ErrUnknownEngine) {
				t.Errorf("Expected ErrUnknownEngine, got %v", err)
			}
			if tt.wantHint != "" && !strings.Contains(err.Error(), tt.wantHint) {
				t.Errorf("Expected hint %q in %q", tt.wantHint, err.Error())
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	mock := NewMock()
	r.Register(KindMock, mock)

	e, err := r.Get(KindMock)
	if err != nil {
		t.Fatalf("Expected mock engine, got %v", err)
	}
	if e != mock {
		t.Error("Expected the registered instance")
	}

	if _, err := r.Get(KindPiper); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Expected ErrNotRegistered for piper, got %v", err)
	}
	if _, err := r.Get(Kind("nope")); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("Expected ErrUnknownEngine, got %v", err)
	}

	r.Register(KindEspeak, NewMock())
	got := r.Registered()
	if len(got) != 2 || got[0] != KindEspeak || got[1] != KindMock {
		t.Errorf("Expected [espeak mock], got %v", got)
	}
}

func TestCheckText(t *testing.T) {
	if err := checkText(KindMock, "  \n", 0); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
	if err := checkText(KindMock, "héllo", 4); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("Expected ErrTextTooLong, got %v", err)
	}
	if err := checkText(KindMock, "héllo", 5); err != nil {
		t.Errorf("Expected five runes to fit, got %v", err)
	}

	var engErr *Error
	if !errors.As(checkText(KindPiper, "", 0), &engErr) {
		t.Fatal("Expected *Error")
	}
	if engErr.Engine != KindPiper || engErr.Op != "synthesize" {
		t.Errorf("Expected piper synthesize, got %s %s", engErr.Engine, engErr.Op)
	}
}

func TestMock(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	short, err := m.Synthesize(ctx, Request{Text: "Hi.", Speed: 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	long, err := m.Synthesize(ctx, Request{Text: "This sentence is much longer.", Speed: 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if long.Duration() <= short.Duration() {
		t.Errorf("Expected longer text to give longer audio, got %v <= %v", long.Duration(), short.Duration())
	}
	if short.SampleRate != 22050 || short.Channels != 1 {
		t.Errorf("Expected 22050 Hz mono, got %d Hz %d ch", short.SampleRate, short.Channels)
	}

	fast, _ := m.Synthesize(ctx, Request{Text: "This sentence is much longer.", Speed: 2})
	if fast.Duration() >= long.Duration() {
		t.Errorf("Expected speed 2 to shorten audio, got %v >= %v", fast.Duration(), long.Duration())
	}

	if calls := m.Calls(); len(calls) != 3 || calls[0].Text != "Hi." {
		t.Errorf("Expected 3 recorded calls, got %v", calls)
	}
}

func TestMockFailAndPanic(t *testing.T) {
	boom := errors.New("boom")
	m := NewMock()
	m.Fail = func(req Request) error {
		if req.Text == "bad" {
			return boom
		}
		return nil
	}
	m.Panic = func(req Request) bool { return req.Text == "explode" }

	if _, err := m.Synthesize(context.Background(), Request{Text: "bad"}); !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
	if _, err := m.Synthesize(context.Background(), Request{Text: "fine"}); err != nil {
		t.Errorf("Expected success, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected panic")
		}
	}()
	_, _ = m.Synthesize(context.Background(), Request{Text: "explode"})
}
