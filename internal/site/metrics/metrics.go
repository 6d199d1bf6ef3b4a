package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for site generation.
type Metrics struct {
	// Generations by outcome: success, invalid, not_found, registry_error, error
	Generations *prometheus.CounterVec

	// Rendered documents by status: success, failure
	Documents *prometheus.CounterVec

	// Archive packaging by result: created, unavailable, error
	Archives *prometheus.CounterVec

	HistoryFailures prometheus.Counter

	GenerateLatency prometheus.Histogram
}

// New creates the site metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Generations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegen_generations_total",
			Help: "Site generation requests by outcome",
		}, []string{"outcome"}),
		Documents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegen_documents_total",
			Help: "Rendered documents by status",
		}, []string{"status"}),
		Archives: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegen_archives_total",
			Help: "Archive packaging attempts by result",
		}, []string{"result"}),
		HistoryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sitegen_history_append_failures_total",
			Help: "History appends that failed",
		}),
		GenerateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitegen_generate_duration_seconds",
			Help:    "Duration of full site generation including registry lookup",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementGeneration records a finished generation.
func (m *Metrics) IncrementGeneration(outcome string) {
	if m != nil {
		m.Generations.WithLabelValues(outcome).Inc()
	}
}

// AddDocuments records rendered documents.
func (m *Metrics) AddDocuments(status string, n int) {
	if m != nil && n > 0 {
		m.Documents.WithLabelValues(status).Add(float64(n))
	}
}

// IncrementArchive records an archive packaging result.
func (m *Metrics) IncrementArchive(result string) {
	if m != nil {
		m.Archives.WithLabelValues(result).Inc()
	}
}

// IncrementHistoryFailure records a failed history append.
func (m *Metrics) IncrementHistoryFailure() {
	if m != nil {
		m.HistoryFailures.Inc()
	}
}

// ObserveGenerateLatency records the total generation duration.
func (m *Metrics) ObserveGenerateLatency(d time.Duration) {
	if m != nil {
		m.GenerateLatency.Observe(d.Seconds())
	}
}
