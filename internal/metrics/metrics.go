// Package metrics exposes Prometheus counters for webhook ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts inbound webhook deliveries by classified source
	// and terminal status ("accepted", "rejected", "error").
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countersign_events_total",
			Help: "Total number of webhook deliveries received",
		},
		[]string{"source", "status"},
	)

	// VerificationFailures counts signature rejections by internal reason.
	// Reasons stay internal; callers only ever see a generic 401.
	VerificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countersign_verification_failures_total",
			Help: "Total number of signature verification failures",
		},
		[]string{"source", "reason"},
	)

	// TriggerCalls counts downstream signing-trigger attempts by outcome
	// ("triggered", "soft_failure", "unconfigured").
	TriggerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countersign_trigger_calls_total",
			Help: "Total number of downstream signing-trigger attempts",
		},
		[]string{"outcome"},
	)

	// EventBytesTotal counts raw body bytes accepted for verification.
	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "countersign_event_bytes_total",
			Help: "Total bytes of webhook payload received",
		},
	)
)
