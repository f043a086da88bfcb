package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parley_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of active push-channel connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketConnectionsReplaced counts connections displaced by a newer one
	// for the same user.
	WebSocketConnectionsReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_websocket_connections_replaced_total",
		Help: "Total number of WebSocket connections displaced by a newer connection",
	})

	// WebSocketBackpressureDrops counts events dropped because a client's send
	// queue was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket events dropped due to backpressure",
	}, []string{"hub", "reason"})

	// FanoutDeliveries counts push attempts by event type and outcome.
	FanoutDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_fanout_deliveries_total",
		Help: "Push delivery attempts by event type and outcome",
	}, []string{"event_type", "outcome"})

	// MessageThroughput counts persisted messages by chat kind and payload type.
	MessageThroughput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_message_throughput_total",
		Help: "Total number of messages persisted",
	}, []string{"kind", "message_type"})

	// SweepDeletes counts entities removed by retention sweeps.
	SweepDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_sweep_deletes_total",
		Help: "Entities deleted by retention sweeps",
	}, []string{"entity"})

	// SweepErrors counts per-entity sweep failures (the sweep itself continues).
	SweepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_sweep_errors_total",
		Help: "Per-entity errors encountered during retention sweeps",
	}, []string{"entity"})

	// MediaProcessorFailures counts failed calls to the media collaborator.
	MediaProcessorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_media_processor_failures_total",
		Help: "Failed media processor calls by operation",
	}, []string{"operation"})

	// BansLifted counts lazy ban expirations applied at auth time.
	BansLifted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_bans_lifted_total",
		Help: "Bans lifted lazily when an expired-ban user authenticated",
	})
)

// DatabaseMetrics records query latency for repository hot paths.
type DatabaseMetrics struct{}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}

// RecordFanout increments the delivery counter for one push attempt.
func RecordFanout(eventType string, delivered bool) {
	outcome := "delivered"
	if !delivered {
		outcome = "dropped"
	}
	FanoutDeliveries.WithLabelValues(eventType, outcome).Inc()
}
