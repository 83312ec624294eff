package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatusChangeOutcomes counts status-change submissions by outcome (applied, pending, degraded, rejected).
	StatusChangeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_status_change_outcomes_total",
		Help: "Total number of admin status-change submissions by outcome",
	}, []string{"outcome"})

	// StatusChangeResolutions counts approve/reject decisions.
	StatusChangeResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_status_change_resolutions_total",
		Help: "Total number of resolved admin status-change requests",
	}, []string{"decision"})

	// NotificationFailures counts failed notification deliveries by channel (email, in_app).
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_notification_failures_total",
		Help: "Total number of failed notification deliveries",
	}, []string{"channel"})

	// BulkUserActions counts per-user results of bulk administrative actions.
	BulkUserActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_bulk_user_actions_total",
		Help: "Total number of per-user bulk action results",
	}, []string{"action", "result"})
)
