package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksDispatched counts chat tasks processed by the dispatcher workers,
	// partitioned by final outcome (success, failed, fatal).
	TasksDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_tasks_dispatched_total",
			Help: "Total number of chat dispatch tasks processed",
		},
		[]string{"status"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_dispatch_duration_seconds",
			Help:    "End-to-end duration of a single chat dispatch task",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_messages_sent_total",
			Help: "Total number of individual chat messages delivered",
		},
	)

	DeadLetteredMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_dead_lettered_total",
			Help: "Total number of broker messages routed to the dead-letter queue",
		},
	)

	SessionRebuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_session_rebuilds_total",
			Help: "Total number of browser sessions torn down and rebuilt after errors",
		},
	)
)
