// Package worker runs the single delivery loop: it takes batches off the
// queue and speaks them one sentence at a time, bracketed by cues and
// ambient ducking.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/ambient"
	"github.com/dgnsrekt/voxd/internal/audio"
	"github.com/dgnsrekt/voxd/internal/engine"
	"github.com/dgnsrekt/voxd/internal/metrics"
	"github.com/dgnsrekt/voxd/internal/queue"
	"github.com/dgnsrekt/voxd/internal/state"
)

// Engines resolves an engine kind. *engine.Registry implements it.
type Engines interface {
	Get(kind engine.Kind) (engine.Engine, error)
}

// CueLoader decodes cue files. *audio.Cues implements it.
type CueLoader interface {
	Load(path string) (audio.Clip, error)
}

// Report summarizes one delivered batch.
type Report struct {
	Batch     queue.Batch
	Discarded bool // muted at dispatch
	Played    int
	Failed    int
	Panicked  bool
	Elapsed   time.Duration
}

// Worker is the sole consumer of the queue.
type Worker struct {
	queue   *queue.Queue
	state   *state.State
	engines Engines
	player  audio.Player
	cues    CueLoader
	ambient ambient.Coordinator

	logger  *log.Logger
	metrics *metrics.Metrics
	onDone  func(Report)

	phase     atomic.Int32
	delivered atomic.Int64
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithMetrics records delivery metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithReport calls fn after every batch, on the worker goroutine.
func WithReport(fn func(Report)) Option {
	return func(w *Worker) { w.onDone = fn }
}

// New creates a worker. A nil coordinator disables ducking.
func New(q *queue.Queue, st *state.State, engines Engines, player audio.Player, cues CueLoader, coord ambient.Coordinator, opts ...Option) *Worker {
	if coord == nil {
		coord = ambient.Noop{}
	}
	w := &Worker{
		queue:   q,
		state:   st,
		engines: engines,
		player:  player,
		cues:    cues,
		ambient: coord,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithPrefix("worker")
	return w
}

// Phase returns the current delivery phase. It never blocks.
func (w *Worker) Phase() Phase {
	return Phase(w.phase.Load())
}

// Delivered returns the number of batches taken off the queue.
func (w *Worker) Delivered() int64 {
	return w.delivered.Load()
}

// Run delivers batches until ctx is cancelled or the queue is closed and
// drained. A closed queue returns nil.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Debug("started")
	for {
		w.setPhase(PhaseIdle)
		b, err := w.queue.Dequeue(ctx)
		if errors.Is(err, queue.ErrQueueClosed) {
			w.logger.Debug("queue closed, stopping")
			return nil
		}
		if err != nil {
			return err
		}
		w.metrics.QueueDepth(w.queue.Len())
		w.delivered.Add(1)
		w.deliver(ctx, b)
	}
}

// deliver runs one batch through CheckMute to PostCue. Nothing inside may
// take the loop down.
func (w *Worker) deliver(ctx context.Context, b queue.Batch) {
	start := time.Now()
	report := Report{Batch: b}

	defer func() {
		if r := recover(); r != nil {
			report.Panicked = true
			w.logger.Error("recovered from panic in batch", "batch", b.ID, "panic", r)
		}
		report.Elapsed = time.Since(start)
		w.setPhase(PhaseIdle)
		if w.onDone != nil {
			w.onDone(report)
		}
	}()

	w.setPhase(PhaseCheckMute)
	w.state.SetSpeaking(true)
	w.metrics.Speaking(true)
	defer func() {
		w.state.SetSpeaking(false)
		w.metrics.Speaking(false)
	}()

	if w.state.Muted() {
		report.Discarded = true
		w.metrics.BatchDiscarded()
		w.logger.Debug("muted, discarding batch", "batch", b.ID, "sentences", len(b.Sentences))
		return
	}

	w.playCue(ctx, PhasePreCue, w.state.Snapshot().PreCuePath)
	w.speak(ctx, b, &report)
	w.playCue(ctx, PhasePostCue, w.state.Snapshot().PostCuePath)

	w.logger.Debug("batch delivered",
		"batch", b.ID,
		"played", report.Played,
		"failed", report.Failed,
		"took", time.Since(start))
}

// speak ducks ambient audio, plays every sentence and always unducks.
func (w *Worker) speak(ctx context.Context, b queue.Batch, report *Report) {
	w.setPhase(PhaseDuck)
	w.ambient.Duck(ctx)
	defer func() {
		w.setPhase(PhaseUnduck)
		w.ambient.Unduck(context.WithoutCancel(ctx))
	}()

	w.setPhase(PhaseSpeaking)
	for i, sentence := range b.Sentences {
		if err := w.speakSentence(ctx, sentence); err != nil {
			report.Failed++
			w.metrics.Sentence(metrics.SentenceFailed)
			w.logger.Warn("skipping sentence", "batch", b.ID, "index", i, "err", err)
			continue
		}
		report.Played++
		w.metrics.Sentence(metrics.SentencePlayed)
	}
}

// speakSentence reads the state at this instant, so changes made mid-batch
// apply from the next sentence on.
func (w *Worker) speakSentence(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	snap := w.state.Snapshot()
	eng, err := w.engines.Get(snap.Engine)
	if err != nil {
		return err
	}

	start := time.Now()
	clip, err := eng.Synthesize(ctx, engine.Request{
		Text:  text,
		Voice: snap.Voice,
		Speed: snap.Speed,
	})
	w.metrics.Synthesis(string(snap.Engine), time.Since(start))
	if err != nil {
		return err
	}
	if clip.Empty() {
		return fmt.Errorf("%w: empty audio", engine.ErrSynthesisFailed)
	}

	out := audio.ApplyGain(clip, snap.Volume)
	if w.logger.GetLevel() <= log.DebugLevel {
		w.logger.Debug("playing sentence", "engine", snap.Engine, "volume", snap.Volume, "peak", audio.Peak(out))
	}
	return w.player.Play(ctx, out)
}

// playCue plays the cue at path to completion. Missing or broken cues are
// logged and skipped.
func (w *Worker) playCue(ctx context.Context, phase Phase, path string) {
	if path == "" || w.cues == nil {
		return
	}
	w.setPhase(phase)

	clip, err := w.cues.Load(path)
	if err != nil {
		w.logger.Warn("could not load cue", "phase", phase, "path", path, "err", err)
		return
	}
	if err := w.player.Play(ctx, audio.ApplyGain(clip, w.state.Snapshot().Volume)); err != nil {
		w.logger.Warn("could not play cue", "phase", phase, "path", path, "err", err)
	}
}

func (w *Worker) setPhase(p Phase) {
	w.phase.Store(int32(p))
}
