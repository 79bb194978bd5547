// Package metrics holds the booking service's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BookingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_attempts_total",
		Help: "Booking attempts by outcome.",
	}, []string{"kind", "outcome"})

	TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_total",
		Help: "Appointment status transitions.",
	}, []string{"from", "to", "trigger"})

	SweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_sweep_runs_total",
		Help: "Reconciliation sweep runs by result.",
	}, []string{"sweep", "result"})

	SweepRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_sweep_rows_total",
		Help: "Appointments changed by reconciliation sweeps.",
	}, []string{"sweep"})

	SweepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_sweep_duration_seconds",
		Help:    "Reconciliation sweep latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweep"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_notifications_total",
		Help: "Notification deliveries by sender and result.",
	}, []string{"sender", "result"})

	OutboxPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_outbox_published_total",
		Help: "Outbox events written to Kafka.",
	})

	ConsumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_consumed_events_total",
		Help: "Directory events consumed by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		BookingsTotal,
		TransitionsTotal,
		SweepRunsTotal,
		SweepRowsTotal,
		SweepDuration,
		NotificationsTotal,
		OutboxPublishedTotal,
		ConsumedTotal,
	)
}
