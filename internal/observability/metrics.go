package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Protocol-Lattice/calendar-agent/pkg/orchestrator"
)

// Metrics implements orchestrator.Metrics with Prometheus collectors.
type Metrics struct {
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	toolCalls      *prometheus.CounterVec
	toolLatency    *prometheus.HistogramVec
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
}

var _ orchestrator.Metrics = (*Metrics)(nil)

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_agent_runs_total",
			Help: "Orchestration runs by outcome and failure reason",
		}, []string{"outcome", "reason"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "calendar_agent_run_duration_seconds",
			Help:    "Wall time of orchestration runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_agent_tool_calls_total",
			Help: "Tool invocations by tool and status",
		}, []string{"tool", "status"}),
		toolLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calendar_agent_tool_latency_seconds",
			Help:    "Tool invocation latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"tool"}),
		gatewayCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_agent_gateway_requests_total",
			Help: "Language model requests by phase and status",
		}, []string{"phase", "status"}),
		gatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calendar_agent_gateway_latency_seconds",
			Help:    "Language model latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"phase"}),
	}
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func (m *Metrics) RunFinished(outcome orchestrator.Outcome, reason orchestrator.ErrorKind, elapsed time.Duration) {
	r := string(reason)
	if r == "" {
		r = "none"
	}
	m.runs.WithLabelValues(string(outcome), r).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ToolCall(tool string, success bool, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(tool, status(success)).Inc()
	m.toolLatency.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func (m *Metrics) GatewayCall(phase string, err error, elapsed time.Duration) {
	m.gatewayCalls.WithLabelValues(phase, status(err == nil)).Inc()
	m.gatewayLatency.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
