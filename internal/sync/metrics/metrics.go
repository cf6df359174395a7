package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the sync subsystem.
type Metrics struct {
	HouseholdOutcomes *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	RegistryCalls     *prometheus.HistogramVec
	BatchDuration     prometheus.Histogram
}

// New creates and registers all sync metrics.
func New() *Metrics {
	return &Metrics{
		HouseholdOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldsync_household_sync_total",
			Help: "Household sync outcomes by status",
		}, []string{"status"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldsync_lookup_cache_total",
			Help: "Lookup cache hits and misses by cache kind",
		}, []string{"kind", "outcome"}),
		RegistryCalls: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldsync_registry_call_seconds",
			Help:    "Registry HTTP call latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldsync_batch_duration_seconds",
			Help:    "Duration of full batch sync runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

// RecordOutcome increments the per-status household counter.
func (m *Metrics) RecordOutcome(status string) {
	if m == nil {
		return
	}
	m.HouseholdOutcomes.WithLabelValues(status).Inc()
}

// RecordCacheHit records a cache hit for the given kind.
func (m *Metrics) RecordCacheHit(kind string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(kind, "hit").Inc()
}

// RecordCacheMiss records a cache miss for the given kind.
func (m *Metrics) RecordCacheMiss(kind string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(kind, "miss").Inc()
}

// ObserveRegistryCall records one registry HTTP call's latency.
func (m *Metrics) ObserveRegistryCall(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.RegistryCalls.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveBatch records a batch run's duration.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}
