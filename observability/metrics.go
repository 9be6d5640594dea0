package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records solvency-engine operation activity segmented by
// operation and outcome.
type EngineMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the lazily-initialised engine metrics registry.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablemint",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablemint",
				Subsystem: "engine",
				Name:      "failures_total",
				Help:      "Engine operation failures segmented by operation and error class.",
			}, []string{"operation", "class"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stablemint",
				Subsystem: "engine",
				Name:      "operation_seconds",
				Help:      "Engine operation latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(engineRegistry.operations, engineRegistry.failures, engineRegistry.latency)
	})
	return engineRegistry
}

// Observe records one completed operation.
func (m *EngineMetrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.failures.WithLabelValues(op, errorClass(err)).Inc()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// errorClass collapses error text into a low-cardinality label. The engine
// error taxonomy keys off the static prefix before the first colon.
func errorClass(err error) string {
	msg := err.Error()
	if idx := strings.IndexByte(msg, ':'); idx > 0 {
		msg = msg[:idx]
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "unknown"
	}
	return strings.ReplaceAll(msg, " ", "_")
}
