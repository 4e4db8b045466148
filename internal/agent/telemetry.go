package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Self-metrics for the agent, exposed on the status API's /metrics.
var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serverstriker_checks_total",
		Help: "Check evaluations, by check.",
	}, []string{"check"})

	checkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serverstriker_check_failures_total",
		Help: "Unreadable samples and recovered panics, by check.",
	}, []string{"check"})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serverstriker_alert_events_total",
		Help: "Alert events emitted by the trackers, by check and kind.",
	}, []string{"check", "kind"})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serverstriker_deliveries_total",
		Help: "Webhook deliveries, by outcome.",
	}, []string{"outcome"})
)
