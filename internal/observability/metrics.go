package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ReservationsCreated    *prometheus.CounterVec
	ReservationsRejected   *prometheus.CounterVec
	ReservationsCancelled  prometheus.Counter
	ReservationDuration    *prometheus.HistogramVec
	InventoryConflicts     prometheus.Counter
	ConfirmationRetries    prometheus.Counter
	NotificationsPublished prometheus.Counter
	NotificationsFailed    prometheus.Counter
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReservationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reservations_created_total",
			Help: "Total number of reservations created, by item type",
		}, []string{"item_type"}),
		ReservationsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reservations_rejected_total",
			Help: "Total number of reservation requests rejected, by item type and error code",
		}, []string{"item_type", "code"}),
		ReservationsCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "reservations_cancelled_total",
			Help: "Total number of reservations cancelled",
		}),
		ReservationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reservation_duration_seconds",
			Help:    "Reservation creation duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5},
		}, []string{"item_type"}),
		InventoryConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "inventory_conflicts_total",
			Help: "Total number of write-time room/date conflicts",
		}),
		ConfirmationRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "confirmation_code_retries_total",
			Help: "Total number of confirmation code collisions retried",
		}),
		NotificationsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of notification events published",
		}),
		NotificationsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of notification events that could not be published",
		}),
	}
}

func (m *Metrics) RecordReservationCreated(itemType string, duration time.Duration) {
	m.ReservationsCreated.WithLabelValues(itemType).Inc()
	m.ReservationDuration.WithLabelValues(itemType).Observe(duration.Seconds())
}

func (m *Metrics) RecordReservationRejected(itemType, code string) {
	m.ReservationsRejected.WithLabelValues(itemType, code).Inc()
}

func (m *Metrics) RecordCancellation() {
	m.ReservationsCancelled.Inc()
}

func (m *Metrics) RecordInventoryConflict() {
	m.InventoryConflicts.Inc()
}

func (m *Metrics) RecordConfirmationRetry() {
	m.ConfirmationRetries.Inc()
}

func (m *Metrics) RecordNotification(err error) {
	if err != nil {
		m.NotificationsFailed.Inc()
		return
	}
	m.NotificationsPublished.Inc()
}
