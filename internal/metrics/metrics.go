// Package metrics exposes Prometheus instrumentation for the seat ledger and
// the registration state machine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registrationOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_operations_total",
			Help: "Register and cancel calls by outcome",
		},
		[]string{"operation", "outcome"},
	)

	registrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registration_operation_duration_seconds",
			Help:    "Duration of register and cancel calls, including the storage transaction",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	seatsAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_seats_available",
			Help: "Seats left per event after the last committed transition",
		},
		[]string{"event_id"},
	)

	ledgerFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_consistency_faults_total",
			Help: "Seat counts observed outside [0, capacity]",
		},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

// ObserveOperation records one register/cancel call.
func ObserveOperation(operation, outcome string, d time.Duration) {
	registrationOperations.WithLabelValues(operation, outcome).Inc()
	registrationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetSeatsAvailable publishes the seats left for an event.
func SetSeatsAvailable(eventID string, n int) {
	seatsAvailable.WithLabelValues(eventID).Set(float64(n))
}

// LedgerFault counts an internal-consistency fault.
func LedgerFault() {
	ledgerFaults.Inc()
}

// RateLimited counts a rejected request.
func RateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
