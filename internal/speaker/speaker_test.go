package speaker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/queue"
	"github.com/dgnsrekt/voxd/internal/state"
	"github.com/dgnsrekt/voxd/internal/worker"
)

func newTestSpeaker(opts ...Option) (*Speaker, *queue.Queue) {
	q := queue.New(queue.DefaultCapacity)
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	return New(q, opts...), q
}

func TestSubmitLinkScenario(t *testing.T) {
	s, q := newTestSpeaker()

	r := s.Submit("Check out [my site](https://example.com) for more.")
	if r.Outcome != Accepted || r.Sentences != 1 || r.BatchID == "" {
		t.Fatalf("Expected accepted single sentence, got %+v", r)
	}

	q.Close()
	b, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Sentences) != 1 || b.Sentences[0] != "Check out my site for more." {
		t.Errorf("Unexpected batch %q", b.Sentences)
	}
	if b.ID != r.BatchID {
		t.Errorf("Expected batch ID %s, got %s", r.BatchID, b.ID)
	}
}

func TestSubmitCodeOnlyIsSkipped(t *testing.T) {
	s, q := newTestSpeaker()

	r := s.Submit("```go\nfunc main() {}\n```")
	if r.Outcome != Skipped || r.Reason != ReasonNoSpeakable {
		t.Errorf("Expected skipped, got %+v", r)
	}
	if q.Len() != 0 {
		t.Errorf("Expected nothing queued, got %d", q.Len())
	}

	for _, in := range []string{"", "   ", `{"k":1}`} {
		if r := s.Submit(in); r.Outcome != Skipped {
			t.Errorf("Submit(%q): Expected skipped, got %s", in, r.Outcome)
		}
	}
}

func TestSubmitBackpressure(t *testing.T) {
	s, q := newTestSpeaker()

	accepted, rejected := 0, 0
	for i := 0; i < 10; i++ {
		switch r := s.Submit("Hello there."); r.Outcome {
		case Accepted:
			accepted++
		case Rejected:
			rejected++
			if r.Reason != ReasonOverloaded {
				t.Errorf("Expected overloaded reason, got %q", r.Reason)
			}
		}
	}
	if accepted != 3 || rejected != 7 {
		t.Errorf("Expected 3 accepted and 7 rejected, got %d and %d", accepted, rejected)
	}
	if q.Len() != 3 {
		t.Errorf("Expected 3 queued, got %d", q.Len())
	}
}

func TestSubmitConcurrent(t *testing.T) {
	s, _ := newTestSpeaker()

	results := make([]Result, 3)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Submit("One sentence. Two sentences.")
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.Outcome != Accepted || r.Sentences != 2 {
			t.Errorf("Submission %d: Expected accepted, got %+v", i, r)
		}
	}
	if r := s.Submit("A fourth one."); r.Outcome != Rejected {
		t.Errorf("Expected fourth rejected, got %+v", r)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	s, q := newTestSpeaker()
	q.Close()
	if r := s.Submit("Hello."); r.Outcome != Rejected || r.Reason != ReasonClosed {
		t.Errorf("Expected rejected while shutting down, got %+v", r)
	}
}

func TestConfigure(t *testing.T) {
	var persisted []state.Snapshot
	s, _ := newTestSpeaker(WithPersist(func(snap state.Snapshot) {
		persisted = append(persisted, snap)
	}))

	changed, err := s.Configure(state.Update{"volume": 1.5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(changed) != 1 || changed[0] != "volume" {
		t.Errorf("Expected [volume], got %v", changed)
	}
	if s.Status().Config.Volume != 1.5 {
		t.Errorf("Expected volume 1.5 in status, got %v", s.Status().Config.Volume)
	}
	if len(persisted) != 1 || persisted[0].Volume != 1.5 {
		t.Errorf("Expected one persisted snapshot, got %+v", persisted)
	}

	// A successful update persists even when nothing changed.
	changed, err = s.Configure(state.Update{"volume": 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Errorf("Expected no changed fields, got %v", changed)
	}
	if len(persisted) != 2 || persisted[1].Volume != 1.5 {
		t.Errorf("Expected a second persisted snapshot for a no-op update, got %+v", persisted)
	}

	if _, err := s.Configure(state.Update{"colour": "red"}); !errors.Is(err, state.ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField, got %v", err)
	}
	if len(persisted) != 2 {
		t.Error("Expected rejected update not persisted")
	}
}

func TestWithInitial(t *testing.T) {
	initial := state.Defaults()
	initial.Speed = 1.5
	initial.Muted = true

	s, _ := newTestSpeaker(WithInitial(initial))
	got := s.Status().Config
	if got.Speed != 1.5 || !got.Muted {
		t.Errorf("Expected seeded state, got %+v", got)
	}
	if s.State().Snapshot() != got {
		t.Error("Expected State to share the seeded state")
	}
}

type fixedPhase worker.Phase

func (p fixedPhase) Phase() worker.Phase { return worker.Phase(p) }

func TestStatus(t *testing.T) {
	s, _ := newTestSpeaker()
	s.Submit("Hello.")
	s.State().SetSpeaking(true)

	st := s.Status()
	if !st.Speaking || st.QueueDepth != 1 || st.QueueCapacity != 3 || st.Phase != "idle" {
		t.Errorf("Unexpected status %+v", st)
	}

	s.Attach(fixedPhase(worker.PhaseSpeaking))
	if got := s.Status().Phase; got != "speaking" {
		t.Errorf("Expected speaking phase, got %q", got)
	}
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Result{Outcome: Rejected, Sentences: 2, Reason: ReasonOverloaded})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"outcome":"rejected","sentences":2,"reason":"overloaded"}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil || r.Outcome != Rejected {
		t.Errorf("Expected round trip, got %+v (%v)", r, err)
	}
}
