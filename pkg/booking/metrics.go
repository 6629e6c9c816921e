package booking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus counters for the booking core.
type Metrics struct {
	// BookingsCreated counts confirmed bookings by caller role.
	BookingsCreated *prometheus.CounterVec

	// BookingsCancelled counts explicit cancellations.
	BookingsCancelled prometheus.Counter

	// BookingsRescheduled counts successful reschedules.
	BookingsRescheduled prometheus.Counter

	// PendingExpired counts bookings cancelled by the expiry reaper.
	PendingExpired prometheus.Counter

	// ReaperSweeps counts reaper runs by outcome.
	ReaperSweeps *prometheus.CounterVec
}

// NewMetrics creates and registers booking metrics on the given
// registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		BookingsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_created_total",
				Help:      "Total number of bookings created",
			},
			[]string{"role"},
		),
		BookingsCancelled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_cancelled_total",
				Help:      "Total number of bookings cancelled explicitly",
			},
		),
		BookingsRescheduled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_rescheduled_total",
				Help:      "Total number of bookings rescheduled",
			},
		),
		PendingExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_expired_total",
				Help:      "Total number of stale pending bookings cancelled by the reaper",
			},
		),
		ReaperSweeps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reaper_sweeps_total",
				Help:      "Total number of reaper sweeps",
			},
			[]string{"status"},
		),
	}
}

func (metrics *Metrics) countBookingCreated(role string) {
	if metrics == nil {
		return
	}
	metrics.BookingsCreated.WithLabelValues(role).Inc()
}

func (metrics *Metrics) countBookingCancelled() {
	if metrics == nil {
		return
	}
	metrics.BookingsCancelled.Inc()
}

func (metrics *Metrics) countBookingRescheduled() {
	if metrics == nil {
		return
	}
	metrics.BookingsRescheduled.Inc()
}

func (metrics *Metrics) countExpiredPending(count int64) {
	if metrics == nil || count <= 0 {
		return
	}
	metrics.PendingExpired.Add(float64(count))
}

func (metrics *Metrics) countReaperSweep(status string) {
	if metrics == nil {
		return
	}
	metrics.ReaperSweeps.WithLabelValues(status).Inc()
}
