// Package speaker is the boundary the outside world talks to: it turns raw
// text into queued batches, applies configuration and reports status.
package speaker

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/metrics"
	"github.com/dgnsrekt/voxd/internal/queue"
	"github.com/dgnsrekt/voxd/internal/state"
	"github.com/dgnsrekt/voxd/internal/text"
	"github.com/dgnsrekt/voxd/internal/worker"
)

// Reasons reported with non-accepted outcomes.
const (
	ReasonNoSpeakable = "no speakable content"
	ReasonOverloaded  = "overloaded"
	ReasonClosed      = "shutting down"
)

// Outcome classifies a submission.
type Outcome int

// Submission outcomes.
const (
	Accepted Outcome = iota + 1
	Skipped
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Skipped:
		return "skipped"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "accepted":
		*o = Accepted
	case "skipped":
		*o = Skipped
	case "rejected":
		*o = Rejected
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// Result is the immediate answer to Submit. Submit never blocks on speech.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	Sentences int     `json:"sentences"`
	BatchID   string  `json:"batch_id,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// Status is a non-blocking view of the pipeline.
type Status struct {
	Speaking      bool           `json:"speaking"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	Config        state.Snapshot `json:"config"`
	Phase         string         `json:"phase"`
}

// PhaseSource reports the worker's phase. *worker.Worker implements it.
type PhaseSource interface {
	Phase() worker.Phase
}

// Speaker accepts submissions and configuration from any goroutine.
type Speaker struct {
	queue     *queue.Queue
	state     *state.State
	segmenter *text.Segmenter
	logger    *log.Logger
	metrics   *metrics.Metrics

	configMu sync.Mutex // orders Apply and persist
	persist  func(state.Snapshot)

	phaseMu sync.RWMutex
	phase   PhaseSource
}

// Option configures a Speaker.
type Option func(*Speaker)

// WithInitial seeds the runtime state, e.g. from a persisted file.
func WithInitial(snap state.Snapshot) Option {
	return func(s *Speaker) { s.state = state.New(snap) }
}

// WithPersist receives the full state after every successful Configure,
// including updates that changed nothing.
func WithPersist(fn func(state.Snapshot)) Option {
	return func(s *Speaker) { s.persist = fn }
}

// WithSegmenter sets the sentence segmenter, for non-English text.
func WithSegmenter(seg *text.Segmenter) Option {
	return func(s *Speaker) { s.segmenter = seg }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Speaker) { s.logger = l }
}

// WithMetrics records submission outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Speaker) { s.metrics = m }
}

// New creates a speaker feeding q. The runtime state starts at
// state.Defaults unless WithInitial is given.
func New(q *queue.Queue, opts ...Option) *Speaker {
	s := &Speaker{
		queue:  q,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.state == nil {
		s.state = state.New(state.Defaults())
	}
	if s.segmenter == nil {
		s.segmenter = text.SegmenterFor("")
	}
	s.logger = s.logger.WithPrefix("speaker")
	return s
}

// State returns the shared runtime state for the worker.
func (s *Speaker) State() *state.State {
	return s.state
}

// Attach sets where Status reads the worker phase from.
func (s *Speaker) Attach(p PhaseSource) {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	s.phase = p
}

// Submit preprocesses raw and enqueues the speakable sentences as one
// batch. It returns immediately; overload drops the submission.
func (s *Speaker) Submit(raw string) Result {
	sentences := text.PreprocessWith(s.segmenter, raw)
	if len(sentences) == 0 {
		s.metrics.Submission(Skipped.String())
		s.logger.Debug("skipped submission", "reason", ReasonNoSpeakable, "chars", len(raw))
		return Result{Outcome: Skipped, Reason: ReasonNoSpeakable}
	}

	b := queue.NewBatch(sentences)
	if err := s.queue.TryEnqueue(b); err != nil {
		reason := ReasonOverloaded
		if errors.Is(err, queue.ErrQueueClosed) {
			reason = ReasonClosed
		}
		s.metrics.Submission(Rejected.String())
		s.logger.Warn("rejected submission", "reason", reason, "sentences", len(sentences))
		return Result{Outcome: Rejected, Sentences: len(sentences), Reason: reason}
	}

	s.metrics.Submission(Accepted.String())
	s.metrics.QueueDepth(s.queue.Len())
	s.logger.Debug("accepted submission", "batch", b.ID, "sentences", len(sentences))
	return Result{Outcome: Accepted, Sentences: len(sentences), BatchID: b.ID}
}

// Configure applies a partial update. Either every field is applied or
// none is.
func (s *Speaker) Configure(u state.Update) ([]string, error) {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	changed, err := s.state.Apply(u)
	if err != nil {
		s.logger.Warn("rejected configuration", "err", err)
		return nil, err
	}
	if len(changed) > 0 {
		s.logger.Info("configuration changed", "fields", strings.Join(changed, ","))
	}
	if s.persist != nil {
		s.persist(s.state.Snapshot())
	}
	return changed, nil
}

// Status reports the current state without blocking on the worker.
func (s *Speaker) Status() Status {
	snap := s.state.Snapshot()
	phase := worker.PhaseIdle
	s.phaseMu.RLock()
	if s.phase != nil {
		phase = s.phase.Phase()
	}
	s.phaseMu.RUnlock()

	return Status{
		Speaking:      snap.Speaking,
		QueueDepth:    s.queue.Len(),
		QueueCapacity: s.queue.Cap(),
		Config:        snap,
		Phase:         phase.String(),
	}
}
