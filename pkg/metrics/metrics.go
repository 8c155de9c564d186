package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SchedulesPublished counts due schedules handled by the publisher,
	// partitioned by scenario and outcome (published, skipped, deactivated).
	SchedulesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_schedules_published_total",
			Help: "Total number of due schedules processed by the publisher",
		},
		[]string{"scenario", "status"},
	)

	PublishCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outreach_publish_cycle_duration_seconds",
			Help:    "Duration of a full due-schedule polling cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	DueBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outreach_due_backlog",
			Help: "Number of schedules claimed in the last polling cycle",
		},
	)

	BrokerReconnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_broker_reconnections_total",
			Help: "Total number of RabbitMQ reconnection attempts",
		},
	)

	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outreach_health_status",
			Help: "Health of the service (1 = healthy, 0 = unhealthy)",
		},
	)
)
