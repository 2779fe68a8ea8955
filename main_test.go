package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/voxd/internal/audio"
	"github.com/dgnsrekt/voxd/internal/config"
	"github.com/dgnsrekt/voxd/internal/engine"
	"github.com/dgnsrekt/voxd/internal/queue"
	"github.com/dgnsrekt/voxd/internal/speaker"
	"github.com/dgnsrekt/voxd/internal/worker"
	"github.com/spf13/viper"
)

func newTestSpeaker() *speaker.Speaker {
	return speaker.New(queue.New(queue.DefaultCapacity))
}

func TestHandleRequest(t *testing.T) {
	testCases := []struct {
		name  string
		line  string
		check func(t *testing.T, r response)
	}{
		{
			name: "submit",
			line: `{"op":"submit","id":"1","text":"Hello there. How are you?"}`,
			check: func(t *testing.T, r response) {
				if r.ID != "1" || r.Result == nil || r.Result.Outcome != speaker.Accepted || r.Result.Sentences != 2 {
					t.Errorf("Unexpected response %+v", r)
				}
			},
		},
		{
			name: "submit code only",
			line: `{"op":"submit","text":"{}[]();"}`,
			check: func(t *testing.T, r response) {
				if r.Result == nil || r.Result.Outcome != speaker.Skipped {
					t.Errorf("Expected skipped, got %+v", r)
				}
			},
		},
		{
			name: "configure",
			line: `{"op":"configure","fields":{"speed":1.5,"muted":true}}`,
			check: func(t *testing.T, r response) {
				if r.Error != "" || strings.Join(r.Changed, ",") != "muted,speed" {
					t.Errorf("Unexpected response %+v", r)
				}
			},
		},
		{
			name: "configure invalid",
			line: `{"op":"configure","fields":{"speed":9}}`,
			check: func(t *testing.T, r response) {
				if r.Error == "" || r.Changed != nil {
					t.Errorf("Expected error, got %+v", r)
				}
			},
		},
		{
			name: "status",
			line: `{"op":"status"}`,
			check: func(t *testing.T, r response) {
				if r.Status == nil || r.Status.Phase != "idle" || r.Status.QueueCapacity != queue.DefaultCapacity {
					t.Errorf("Unexpected status %+v", r.Status)
				}
			},
		},
		{
			name: "unknown op",
			line: `{"op":"shout"}`,
			check: func(t *testing.T, r response) {
				if !strings.Contains(r.Error, "unknown op") {
					t.Errorf("Expected unknown op error, got %+v", r)
				}
			},
		},
		{
			name: "malformed",
			line: `{"op":`,
			check: func(t *testing.T, r response) {
				if !strings.Contains(r.Error, "invalid request") {
					t.Errorf("Expected invalid request error, got %+v", r)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, handleRequest(newTestSpeaker(), []byte(tc.line)))
		})
	}
}

func TestResponseIsOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	r := handleRequest(newTestSpeaker(), []byte(`{"op":"submit","text":"Hi there."}`))
	if err := json.NewEncoder(&buf).Encode(r); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("Expected a single line, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"outcome":"accepted"`) {
		t.Errorf("Expected outcome by name, got %s", buf.String())
	}
}

func TestReadLinesSkipsBlank(t *testing.T) {
	lines := make(chan []byte)
	go readLines(strings.NewReader("{\"op\":\"status\"}\n\n{\"op\":\"status\"}\n"), lines)

	n := 0
	for range lines {
		n++
	}
	if n != 2 {
		t.Errorf("Expected 2 lines, got %d", n)
	}
}

func TestReadSayInput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "note.md")
	if err := os.WriteFile(file, []byte("# Note\nFrom a file."), 0o644); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name     string
		args     []string
		file     string
		stdin    string
		terminal bool
		want     string
		wantErr  error
	}{
		{name: "args", args: []string{"Hello", "there."}, terminal: true, want: "Hello there."},
		{name: "file", file: file, args: []string{"ignored"}, want: "# Note\nFrom a file."},
		{name: "stdin dash", file: "-", stdin: "piped", terminal: true, want: "piped"},
		{name: "piped stdin", stdin: "from a pipe", want: "from a pipe"},
		{name: "terminal without args", stdin: "ignored", terminal: true, wantErr: errNothingToSay},
		{name: "blank", args: []string{"  "}, terminal: true, wantErr: errNothingToSay},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readSayInput(tc.args, tc.file, false, strings.NewReader(tc.stdin), tc.terminal)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("Expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("Expected %q, got %q (%v)", tc.want, got, err)
			}
		})
	}
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("engine", "mock")
	v.Set("ambient.duck", false)
	v.Set("cache.dir", filepath.Join(t.TempDir(), "cache"))
	v.Set("state_file", filepath.Join(t.TempDir(), "state.toml"))
	s, err := config.Load(v)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPipelineDeliversAndPersists(t *testing.T) {
	s := testSettings(t)
	reports := make(chan worker.Report, 4)
	p, err := newPipeline(s, config.Env{MockAudio: true}, withReport(func(r worker.Report) { reports <- r }))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := p.speaker.Status().Config.Engine; got != engine.KindMock {
		t.Errorf("Expected mock engine from settings, got %s", got)
	}
	if _, err := p.speaker.Configure(map[string]any{"speed": 1.5}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := testContext()
	defer cancel()
	p.start(ctx)

	res := p.speaker.Submit("First sentence. Second sentence.")
	if res.Outcome != speaker.Accepted {
		t.Fatalf("Expected accepted, got %+v", res)
	}
	if err := p.drain(ctx); err != nil {
		t.Fatalf("Unexpected drain error: %v", err)
	}
	if got := p.worker.Delivered(); got != 1 {
		t.Errorf("Expected 1 batch delivered before drain returned, got %d", got)
	}
	cancel()
	p.close()

	r := <-reports
	if r.Played != 2 || r.Failed != 0 {
		t.Errorf("Expected 2 sentences played, got %+v", r)
	}

	// A new pipeline picks up the saved speed.
	p2, err := newPipeline(s, config.Env{MockAudio: true})
	if err != nil {
		t.Fatal(err)
	}
	defer p2.close()
	if got := p2.speaker.Status().Config.Speed; got != 1.5 {
		t.Errorf("Expected persisted speed 1.5, got %v", got)
	}
}

func TestPlayerConfig(t *testing.T) {
	var s config.Settings
	if got := playerConfig(s); got != audio.DefaultPlayerConfig() {
		t.Errorf("Expected defaults for unset audio settings, got %+v", got)
	}

	s.Audio.SampleRate = 48000
	s.Audio.Buffer = 250 * time.Millisecond
	got := playerConfig(s)
	if got.SampleRate != 48000 || got.BufferSize != 250*time.Millisecond || got.Channels != 1 {
		t.Errorf("Expected configured rate and buffer over mono defaults, got %+v", got)
	}
}

func TestBuildRegistry(t *testing.T) {
	s := testSettings(t)
	r := buildRegistry(s, config.Env{}, nil)
	if got := len(r.Registered()); got != len(engine.Kinds()) {
		t.Errorf("Expected every engine registered, got %d", got)
	}
	e, err := r.Get(engine.KindOpenAI)
	if err != nil {
		t.Fatal(err)
	}
	if _, cached := e.(*engine.Cached); cached {
		t.Error("Expected no caching without a store")
	}
}

func testContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
