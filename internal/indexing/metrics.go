package indexing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes indexing progress to Prometheus.
//
//   - docsearch_indexing_files_total{outcome} - indexed, failed, skipped
//   - docsearch_indexing_failures_total{stage} - read, embed, store
//   - docsearch_indexing_runs_total
//   - docsearch_indexing_run_duration_seconds
//   - docsearch_indexing_redactions_total{rule}
//   - docsearch_indexing_state - 0 not started, 1 in progress, 2 completed
type Metrics struct {
	files       *prometheus.CounterVec
	failures    *prometheus.CounterVec
	runs        prometheus.Counter
	runDuration prometheus.Histogram
	redactions  *prometheus.CounterVec
	state       prometheus.Gauge
}

// NewMetrics registers indexing metrics with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		files: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docsearch_indexing_files_total",
			Help: "Files processed by the indexer, by outcome",
		}, []string{"outcome"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docsearch_indexing_failures_total",
			Help: "Files that failed to index, by pipeline stage",
		}, []string{"stage"}),
		runs: f.NewCounter(prometheus.CounterOpts{
			Name: "docsearch_indexing_runs_total",
			Help: "Completed indexing runs",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docsearch_indexing_run_duration_seconds",
			Help:    "Wall time of an indexing run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		redactions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docsearch_indexing_redactions_total",
			Help: "Secrets masked before embedding, by detection rule",
		}, []string{"rule"}),
		state: f.NewGauge(prometheus.GaugeOpts{
			Name: "docsearch_indexing_state",
			Help: "Indexer state: 0 not started, 1 in progress, 2 completed",
		}),
	}
}

// RegisterDocumentGauge exports the stored document count.
func RegisterDocumentGauge(reg prometheus.Registerer, count func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "docsearch_documents",
		Help: "Documents currently held in the store",
	}, func() float64 { return float64(count()) })
}

func (m *Metrics) indexed() {
	if m != nil {
		m.files.WithLabelValues("indexed").Inc()
	}
}

func (m *Metrics) failed(stage Stage) {
	if m != nil {
		m.files.WithLabelValues("failed").Inc()
		m.failures.WithLabelValues(string(stage)).Inc()
	}
}

func (m *Metrics) skipped(n int) {
	if m != nil && n > 0 {
		m.files.WithLabelValues("skipped").Add(float64(n))
	}
}

func (m *Metrics) runFinished(d time.Duration) {
	if m != nil {
		m.runs.Inc()
		m.runDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) redacted(rule string) {
	if m != nil {
		m.redactions.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}
