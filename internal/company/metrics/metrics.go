package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for company resolution.
type Metrics struct {
	// Registry calls by outcome: ok, not_found, remote, unexpected_status, malformed_response.
	RegistryRequests *prometheus.CounterVec
	RegistryLatency  prometheus.Histogram

	// Cache lookups by result: hit, miss, stale, error.
	CacheLookups *prometheus.CounterVec
	CacheWrites  *prometheus.CounterVec

	// Lookups that joined an in-flight registry call for the same CNPJ.
	CoalescedLookups prometheus.Counter
}

// New creates the company metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegen_registry_requests_total",
			Help: "Registry lookups by outcome",
		}, []string{"outcome"}),
		RegistryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitegen_registry_request_duration_seconds",
			Help:    "Duration of registry lookups",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegen_company_cache_lookups_total",
			Help: "Resolution cache lookups by result",
		}, []string{"result"}),
		CacheWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegen_company_cache_writes_total",
			Help: "Resolution cache writes by status",
		}, []string{"status"}),
		CoalescedLookups: factory.NewCounter(prometheus.CounterOpts{
			Name: "sitegen_company_coalesced_lookups_total",
			Help: "Resolutions served by another caller's in-flight registry lookup",
		}),
	}
}

// ObserveRegistryRequest records one registry call.
func (m *Metrics) ObserveRegistryRequest(outcome string, d time.Duration) {
	if m != nil {
		m.RegistryRequests.WithLabelValues(outcome).Inc()
		m.RegistryLatency.Observe(d.Seconds())
	}
}

// RecordCacheLookup records a cache lookup result.
func (m *Metrics) RecordCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// RecordCacheWrite records a cache write as "ok" or "error".
func (m *Metrics) RecordCacheWrite(status string) {
	if m != nil {
		m.CacheWrites.WithLabelValues(status).Inc()
	}
}

// IncrementCoalesced records a lookup that shared another caller's result.
func (m *Metrics) IncrementCoalesced() {
	if m != nil {
		m.CoalescedLookups.Inc()
	}
}
