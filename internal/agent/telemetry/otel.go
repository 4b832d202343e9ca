package telemetry

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	agentMetricsOnce sync.Once
	sessionsTotal    otelmetric.Int64Counter
	sessionSeconds   otelmetric.Float64Histogram
	toolRuns         otelmetric.Int64Counter
	toolSeconds      otelmetric.Float64Histogram
	llmRequests      otelmetric.Int64Counter
	llmTokens        otelmetric.Int64Counter
	llmCostUSD       otelmetric.Float64Counter
)

func initAgentMetrics() {
	meter := otel.Meter("dockagent/agent/telemetry")
	var err error
	sessionsTotal, err = meter.Int64Counter(
		"agent_sessions_total",
		otelmetric.WithDescription("Completed orchestration sessions by terminal state"),
	)
	if err != nil {
		log.Printf("agent telemetry metrics init: agent_sessions_total: %v", err)
	}
	sessionSeconds, err = meter.Float64Histogram(
		"agent_session_seconds",
		otelmetric.WithDescription("Wall-clock duration of orchestration sessions"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Printf("agent telemetry metrics init: agent_session_seconds: %v", err)
	}
	toolRuns, err = meter.Int64Counter(
		"agent_tool_runs_total",
		otelmetric.WithDescription("Tool executions by tool name and outcome"),
	)
	if err != nil {
		log.Printf("agent telemetry metrics init: agent_tool_runs_total: %v", err)
	}
	toolSeconds, err = meter.Float64Histogram(
		"agent_tool_seconds",
		otelmetric.WithDescription("Tool execution duration"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Printf("agent telemetry metrics init: agent_tool_seconds: %v", err)
	}
	llmRequests, err = meter.Int64Counter(
		"agent_llm_requests_total",
		otelmetric.WithDescription("Completion calls by model and loop phase"),
	)
	if err != nil {
		log.Printf("agent telemetry metrics init: agent_llm_requests_total: %v", err)
	}
	llmTokens, err = meter.Int64Counter(
		"agent_llm_tokens_total",
		otelmetric.WithDescription("Tokens consumed by completion calls"),
	)
	if err != nil {
		log.Printf("agent telemetry metrics init: agent_llm_tokens_total: %v", err)
	}
	llmCostUSD, err = meter.Float64Counter(
		"agent_llm_cost_usd_total",
		otelmetric.WithDescription("Estimated completion spend in USD"),
	)
	if err != nil {
		log.Printf("agent telemetry metrics init: agent_llm_cost_usd_total: %v", err)
	}
}

func recordSessionMetrics(ctx context.Context, event SessionEvent) {
	agentMetricsOnce.Do(initAgentMetrics)
	attrs := otelmetric.WithAttributes(attribute.String("state", event.State))
	if sessionsTotal != nil {
		sessionsTotal.Add(contextOrBackground(ctx), 1, attrs)
	}
	if sessionSeconds != nil && event.Duration > 0 {
		sessionSeconds.Record(contextOrBackground(ctx), event.Duration.Seconds(), attrs)
	}
}

func recordToolMetrics(ctx context.Context, event ToolEvent) {
	agentMetricsOnce.Do(initAgentMetrics)
	attrs := otelmetric.WithAttributes(
		attribute.String("tool", event.Tool),
		attribute.Bool("success", event.Success),
	)
	if toolRuns != nil {
		toolRuns.Add(contextOrBackground(ctx), 1, attrs)
	}
	if toolSeconds != nil && event.Duration > 0 {
		toolSeconds.Record(contextOrBackground(ctx), event.Duration.Seconds(), attrs)
	}
}

func recordLLMMetrics(ctx context.Context, event LLMEvent) {
	agentMetricsOnce.Do(initAgentMetrics)
	attrs := otelmetric.WithAttributes(
		attribute.String("model", event.Model),
		attribute.String("phase", event.Phase),
	)
	if llmRequests != nil {
		llmRequests.Add(contextOrBackground(ctx), 1, attrs)
	}
	if llmTokens != nil {
		if total := event.InputTokens + event.OutputTokens; total > 0 {
			llmTokens.Add(contextOrBackground(ctx), total, attrs)
		}
	}
	if llmCostUSD != nil && event.Cost > 0 {
		llmCostUSD.Add(contextOrBackground(ctx), event.Cost, attrs)
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
