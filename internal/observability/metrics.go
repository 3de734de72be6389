// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec
	WSReconnects   prometheus.Counter

	// Snapshot metrics
	SnapshotLoads         *prometheus.CounterVec
	SnapshotDuration      prometheus.Histogram
	TreasuryReadFailures  prometheus.Counter
	MirrorVersion         prometheus.Gauge
	MirrorRounds          prometheus.Gauge
	LastSuccessfulRefresh prometheus.Gauge

	// Transaction metrics
	IntentsTotal         *prometheus.CounterVec
	IntentsInFlight      prometheus.Gauge
	FinalityWaitDuration *prometheus.HistogramVec

	// Gateway metrics
	PendingConfirmations prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voting_client"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "Total number of failed JSON-RPC calls by method",
		}, []string{"method"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnect attempts",
		}),

		SnapshotLoads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "loads_total",
			Help:      "Total number of snapshot loads by status",
		}, []string{"status"}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "load_duration_seconds",
			Help:      "Snapshot load duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		TreasuryReadFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "treasury_read_failures_total",
			Help:      "Total number of best-effort treasury reads that failed",
		}),
		MirrorVersion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "version",
			Help:      "Number of snapshots swapped into the mirror",
		}),
		MirrorRounds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "rounds",
			Help:      "Number of rounds held by the mirror",
		}),
		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful mirror refresh",
		}),

		IntentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "intents_total",
			Help:      "Total number of intents by action, final state and error class",
		}, []string{"action", "state", "class"}),
		IntentsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "in_flight",
			Help:      "Number of intents currently holding an in-flight marker",
		}),
		FinalityWaitDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "finality_wait_seconds",
			Help:      "Time from submission to finality in seconds",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		}, []string{"action"}),

		PendingConfirmations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "pending_confirmations",
			Help:      "Number of confirmation requests awaiting an answer",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCCall records JSON-RPC call latency and failures.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordWSReconnect increments the reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordSnapshotLoad records a snapshot load.
func RecordSnapshotLoad(status string, durationSeconds float64) {
	DefaultMetrics.SnapshotLoads.WithLabelValues(status).Inc()
	DefaultMetrics.SnapshotDuration.Observe(durationSeconds)
}

// RecordTreasuryReadFailure increments the best-effort treasury failure counter.
func RecordTreasuryReadFailure() {
	DefaultMetrics.TreasuryReadFailures.Inc()
}

// UpdateMirror records the mirror state after a swap or clear.
func UpdateMirror(version uint64, rounds int, refreshedAtUnix int64) {
	DefaultMetrics.MirrorVersion.Set(float64(version))
	DefaultMetrics.MirrorRounds.Set(float64(rounds))
	if refreshedAtUnix > 0 {
		DefaultMetrics.LastSuccessfulRefresh.Set(float64(refreshedAtUnix))
	}
}

// RecordIntent records the final state of an intent.
func RecordIntent(action, state, class string) {
	DefaultMetrics.IntentsTotal.WithLabelValues(action, state, class).Inc()
}

// AddInFlight adjusts the in-flight gauge by delta.
func AddInFlight(delta int) {
	DefaultMetrics.IntentsInFlight.Add(float64(delta))
}

// RecordFinalityWait records how long an intent waited for finality.
func RecordFinalityWait(action string, seconds float64) {
	DefaultMetrics.FinalityWaitDuration.WithLabelValues(action).Observe(seconds)
}

// AddPendingConfirmations adjusts the pending confirmation gauge by delta.
func AddPendingConfirmations(delta int) {
	DefaultMetrics.PendingConfirmations.Add(float64(delta))
}
