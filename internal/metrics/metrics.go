// Package metrics exposes the Prometheus counters/histograms the service
// reports: HTTP request shape (for C7) and payout/event business metrics
// (for C5/C3). Ambient observability — carried regardless of spec.md's
// Non-goals, per SPEC_FULL.md §9.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)
)

var (
	PayoutsIntakeTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payouts_intake_total",
			Help: "Total number of payouts created by intake (idempotent replays are not counted)",
		},
	)

	PayoutTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_transitions_total",
			Help: "Total number of payout state transitions",
		},
		[]string{"from", "to"},
	)

	PayoutRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payout_retries_total",
			Help: "Total number of payout processing retries scheduled",
		},
	)

	LedgerTransactionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Total number of balanced ledger transactions committed",
		},
	)

	EventAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_appended_total",
			Help: "Total number of events appended to the event log",
		},
		[]string{"event_type"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Duration of external payout provider calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

// RecordTransition increments the transition counter for a from->to move.
func RecordTransition(from, to string) {
	PayoutTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordEventAppended increments the event counter for an event type.
func RecordEventAppended(eventType string) {
	EventAppendedTotal.WithLabelValues(eventType).Inc()
}
