package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncAttemptsTotal tracks integration sync attempts by outcome.
	SyncAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_sync_attempts_total",
			Help: "Total number of integration sync attempts",
		},
		[]string{"integration", "result"},
	)

	// SyncSkipsTotal tracks attempts rejected by the healing policy.
	SyncSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_sync_skips_total",
			Help: "Total number of sync attempts skipped by the healing policy",
		},
		[]string{"integration", "reason"},
	)

	// CircuitOpen reports whether an integration's circuit is currently open.
	CircuitOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keeper_circuit_open",
			Help: "1 when the integration's circuit breaker is open",
		},
		[]string{"integration"},
	)

	// QueueItemsTotal tracks sync queue item outcomes per processing round.
	QueueItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_queue_items_total",
			Help: "Total number of sync queue item outcomes",
		},
		[]string{"result"},
	)

	// QueuePending tracks the number of pending sync queue items.
	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "keeper_queue_pending",
			Help: "Number of pending sync queue items",
		},
	)

	// QueueDeadLettered tracks terminally failed sync queue items.
	QueueDeadLettered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "keeper_queue_dead_lettered",
			Help: "Number of dead-lettered sync queue items",
		},
	)

	// PushSendsTotal tracks push delivery outcomes per subscriber.
	PushSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_push_sends_total",
			Help: "Total number of push delivery outcomes",
		},
		[]string{"result"},
	)
)

// Sync attempt result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Queue item result labels.
const (
	ResultCompleted  = "completed"
	ResultRetried    = "retried"
	ResultDeadLetter = "dead_letter"
)

// Push result labels.
const (
	ResultDelivered = "delivered"
	ResultDropped   = "dropped"
	ResultFailed    = "failed"
	ResultDeduped   = "deduped"
)
