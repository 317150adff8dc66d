package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackdesk_feed_build_duration_seconds",
			Help:    "Duration of feed builds across all sources",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 10},
		},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdesk_source_failures_total",
			Help: "Sources that could not be loaded while building a feed",
		},
		[]string{"source"},
	)

	ReminderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdesk_reminder_transitions_total",
			Help: "Reminder state transitions by target state and outcome",
		},
		[]string{"to", "result"},
	)

	RemindersMaterialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackdesk_reminders_materialized_total",
			Help: "Reminder states created for newly overdue invoices",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdesk_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"route", "status"},
	)
)
