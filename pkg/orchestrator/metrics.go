package orchestrator

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/corebridge/agentcore/pkg/orchestrator")

// Metrics holds the Prometheus instruments the loop reports against,
// mirroring the teacher's agent/LLM/tool counter-vec shape.
type Metrics struct {
	rounds       prometheus.Counter
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	outcomes     *prometheus.CounterVec
}

// NewMetrics registers the orchestrator's instruments against reg. A
// nil reg is valid and yields a Metrics whose methods are no-ops.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_orchestrator_rounds_total",
			Help: "Total PLAN rounds entered across all requests.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_orchestrator_tool_calls_total",
			Help: "Total tool calls dispatched, labeled by capability, tool and outcome.",
		}, []string{"capability", "tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_orchestrator_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"capability", "tool"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_orchestrator_requests_total",
			Help: "Completed requests, labeled by terminal state.",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.rounds, m.toolCalls, m.toolDuration, m.outcomes)
	}
	return m
}

func (m *Metrics) observeRound() {
	if m == nil {
		return
	}
	m.rounds.Inc()
}

func (m *Metrics) observeToolCall(rec ExecutionRecord) {
	if m == nil {
		return
	}
	outcome := "success"
	if !rec.Success {
		outcome = "failure"
	}
	m.toolCalls.WithLabelValues(rec.Capability, rec.Tool, outcome).Inc()
	m.toolDuration.WithLabelValues(rec.Capability, rec.Tool).Observe(rec.Duration.Seconds())
}

func (m *Metrics) observeOutcome(state State) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(state)).Inc()
}

// startRoundSpan opens an OTel span for one PLAN round.
func startRoundSpan(ctx context.Context, round int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "orchestrator.round", trace.WithAttributes(attribute.Int("round", round)))
}
