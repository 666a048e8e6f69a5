// Package metrics holds the Prometheus collectors of the booking engine.
// All collectors live on a dedicated registry so tests can create as many
// instances as they like without clashing on the default registerer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid_input"
	OutcomeTaken   = "seat_taken"
	OutcomeMissing = "not_found"
	OutcomeError   = "internal"
)

// Metrics is safe for concurrent use.  A nil *Metrics records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	txSeconds  *prometheus.HistogramVec
	swept      prometheus.Counter
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Booking operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		txSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "booking_transaction_seconds",
			Help:    "Wall time of booking transactions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_sweep_expired_total",
			Help: "PENDING bookings flipped to EXPIRED by the lazy sweep.",
		}),
	}
	m.registry.MustRegister(
		m.operations,
		m.txSeconds,
		m.swept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOp counts one finished operation and records its duration.
func (m *Metrics) ObserveOp(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.txSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// AddSwept adds n bookings expired by a sweep.
func (m *Metrics) AddSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
