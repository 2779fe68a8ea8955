// Package metrics exposes delivery counters to Prometheus. All methods are
// safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sentence results.
const (
	SentencePlayed = "played"
	SentenceFailed = "failed"
)

// Metrics holds voxd's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	submissions      *prometheus.CounterVec
	sentences        *prometheus.CounterVec
	batchesDiscarded prometheus.Counter
	synthesis        *prometheus.HistogramVec
	queueDepth       prometheus.Gauge
	speaking         prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxd_submissions_total",
			Help: "Submissions by outcome (accepted, skipped, rejected)",
		}, []string{"outcome"}),
		sentences: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxd_sentences_total",
			Help: "Sentences delivered or skipped after an error",
		}, []string{"result"}),
		batchesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "voxd_batches_discarded_total",
			Help: "Batches dropped because delivery was muted",
		}),
		synthesis: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxd_synthesis_seconds",
			Help:    "Time to synthesize one sentence",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}, []string{"engine"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxd_queue_depth",
			Help: "Batches waiting for the worker",
		}),
		speaking: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxd_speaking",
			Help: "1 while a batch is being delivered",
		}),
	}
}

// Submission counts one Submit outcome.
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// Sentence counts one sentence result.
func (m *Metrics) Sentence(result string) {
	if m == nil {
		return
	}
	m.sentences.WithLabelValues(result).Inc()
}

// BatchDiscarded counts a batch dropped while muted.
func (m *Metrics) BatchDiscarded() {
	if m == nil {
		return
	}
	m.batchesDiscarded.Inc()
}

// Synthesis observes how long an engine took.
func (m *Metrics) Synthesis(engine string, d time.Duration) {
	if m == nil {
		return
	}
	m.synthesis.WithLabelValues(engine).Observe(d.Seconds())
}

// QueueDepth sets the current queue length.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Speaking sets the speaking gauge.
func (m *Metrics) Speaking(on bool) {
	if m == nil {
		return
	}
	if on {
		m.speaking.Set(1)
	} else {
		m.speaking.Set(0)
	}
}

// Registry returns the registry holding voxd's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
