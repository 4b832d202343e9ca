package server

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/dockagent/internal/executor"
)

var (
	toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dockagent_tool_duration_seconds",
		Help:    "Wall-clock duration of tool invocations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool", "success"})

	toolTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dockagent_tool_timeouts_total",
		Help: "Tool invocations aborted at their deadline.",
	}, []string{"tool"})

	sessionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dockagent_sessions_accepted_total",
		Help: "Docking sessions accepted over the HTTP API.",
	})
)

func init() {
	prometheus.MustRegister(toolDuration, toolTimeouts, sessionsAccepted)
}

// toolMetrics bridges invoker callbacks into the collectors exposed on
// /metrics.
func toolMetrics() executor.Metrics {
	return executor.Metrics{
		Duration: func(_ context.Context, tool string, d time.Duration, success bool) {
			toolDuration.WithLabelValues(tool, strconv.FormatBool(success)).Observe(d.Seconds())
		},
		Timeout: func(_ context.Context, tool string) {
			toolTimeouts.WithLabelValues(tool).Inc()
		},
	}
}
