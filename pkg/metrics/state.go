package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Catalog request outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeSuperseded = "superseded"
)

// StateMetrics records activity of the catalog query machine and the cart persistence adapter.
type StateMetrics struct {
	catalogRequests *prometheus.CounterVec
	catalogDuration *prometheus.HistogramVec
	cartSaves       *prometheus.CounterVec
	cartLoads       *prometheus.CounterVec
}

// NewStateMetrics registers the collectors on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewStateMetrics(reg prometheus.Registerer) *StateMetrics {
	if reg == nil {
		return &StateMetrics{}
	}
	catalogRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Catalog gateway requests by query kind and outcome.",
	}, []string{"kind", "outcome"})
	catalogDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Duration of catalog gateway requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	cartSaves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_snapshot_saves_total",
		Help: "Cart snapshot writes by outcome.",
	}, []string{"outcome"})
	cartLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_snapshot_loads_total",
		Help: "Cart snapshot reads at startup by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(catalogRequests, catalogDuration, cartSaves, cartLoads)
	return &StateMetrics{
		catalogRequests: catalogRequests,
		catalogDuration: catalogDuration,
		cartSaves:       cartSaves,
		cartLoads:       cartLoads,
	}
}

// ObserveCatalogRequest records one completed gateway call.
func (m *StateMetrics) ObserveCatalogRequest(kind, outcome string, duration time.Duration) {
	if m == nil || m.catalogRequests == nil {
		return
	}
	kind = normalizeLabel(kind)
	m.catalogRequests.WithLabelValues(kind, normalizeLabel(outcome)).Inc()
	m.catalogDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// IncCartSave counts a snapshot write attempt.
func (m *StateMetrics) IncCartSave(outcome string) {
	if m == nil || m.cartSaves == nil {
		return
	}
	m.cartSaves.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCartLoad counts the startup read (success, missing, failure).
func (m *StateMetrics) IncCartLoad(outcome string) {
	if m == nil || m.cartLoads == nil {
		return
	}
	m.cartLoads.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
