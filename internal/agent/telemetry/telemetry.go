package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/dockagent/config"
)

// Telemetry provides monitoring and cost tracking for agent sessions
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	mu          sync.RWMutex
}

// Metrics holds various performance metrics
type Metrics struct {
	// Session metrics
	TotalSessions      int64
	FinishedSessions   int64
	AbortedSessions    int64
	AverageSessionTime time.Duration

	// Tool metrics
	ToolExecutions   map[string]int64
	ToolSuccessRates map[string]float64
	ToolAverageTimes map[string]time.Duration

	// LLM metrics
	LLMRequests       map[string]int64
	LLMTokensUsed     map[string]int64
	LLMAverageLatency map[string]time.Duration
}

// CostTracker tracks costs across LLM models and loop phases
type CostTracker struct {
	// Daily costs
	DailyCosts map[string]float64 // day -> cost

	// Phase costs
	PhaseCosts map[string]float64 // planning/decision/refinement/synthesis -> cost

	// Model costs
	ModelCosts map[string]float64 // model -> cost

	// Total costs
	TotalCost   float64
	TotalTokens int64
}

// SessionEvent represents one complete orchestration session
type SessionEvent struct {
	SessionID  string
	Query      string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	State      string
	Steps      int
	Success    bool
	Error      string
	Cost       float64
	TokensUsed int64
	ToolsUsed  []string
}

// ToolEvent represents a single tool execution
type ToolEvent struct {
	SessionID string
	Tool      string
	Category  string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// LLMEvent represents one completion call made by a loop phase
type LLMEvent struct {
	SessionID    string
	Phase        string
	Model        string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Success      bool
	Error        string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(config config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: config,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			ToolExecutions:    make(map[string]int64),
			ToolSuccessRates:  make(map[string]float64),
			ToolAverageTimes:  make(map[string]time.Duration),
			LLMRequests:       make(map[string]int64),
			LLMTokensUsed:     make(map[string]int64),
			LLMAverageLatency: make(map[string]time.Duration),
		},
		costTracker: &CostTracker{
			DailyCosts: make(map[string]float64),
			PhaseCosts: make(map[string]float64),
			ModelCosts: make(map[string]float64),
		},
	}

	// Start background tasks (periodic logs can be disabled via config)
	if config.Enabled && config.PeriodicLogs {
		go t.startMetricsCollection()
		go t.startCostReporting()
	}

	return t
}

// RecordSessionEvent records a complete session event
func (t *Telemetry) RecordSessionEvent(ctx context.Context, event SessionEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalSessions++
	if event.Success {
		t.metrics.FinishedSessions++
	} else {
		t.metrics.AbortedSessions++
	}

	// Update average session time
	if t.metrics.TotalSessions == 1 {
		t.metrics.AverageSessionTime = event.Duration
	} else {
		total := t.metrics.AverageSessionTime * time.Duration(t.metrics.TotalSessions-1)
		t.metrics.AverageSessionTime = (total + event.Duration) / time.Duration(t.metrics.TotalSessions)
	}

	for _, tool := range event.ToolsUsed {
		t.metrics.ToolExecutions[tool]++
	}

	// Update cost tracking
	if t.config.CostTracking {
		t.costTracker.TotalCost += event.Cost
		t.costTracker.TotalTokens += event.TokensUsed
		day := event.EndTime.Format("2006-01-02")
		t.costTracker.DailyCosts[day] += event.Cost
	}

	recordSessionMetrics(ctx, event)

	t.logger.Printf("Session Event: ID=%s, State=%s, Steps=%d, Duration=%v, Cost=$%.4f, Tokens=%d",
		event.SessionID, event.State, event.Steps, event.Duration, event.Cost, event.TokensUsed)
}

// RecordToolEvent records a tool execution event
func (t *Telemetry) RecordToolEvent(ctx context.Context, event ToolEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.ToolExecutions[event.Tool]++

	// Update success rate
	currentSuccess := t.metrics.ToolSuccessRates[event.Tool] * float64(t.metrics.ToolExecutions[event.Tool]-1)
	if event.Success {
		currentSuccess += 1.0
	}
	t.metrics.ToolSuccessRates[event.Tool] = currentSuccess / float64(t.metrics.ToolExecutions[event.Tool])

	// Update average time
	currentAvg := t.metrics.ToolAverageTimes[event.Tool]
	currentExecutions := t.metrics.ToolExecutions[event.Tool]
	if currentExecutions == 1 {
		t.metrics.ToolAverageTimes[event.Tool] = event.Duration
	} else {
		total := currentAvg * time.Duration(currentExecutions-1)
		t.metrics.ToolAverageTimes[event.Tool] = (total + event.Duration) / time.Duration(currentExecutions)
	}

	recordToolMetrics(ctx, event)

	t.logger.Printf("Tool Event: Tool=%s, Category=%s, Success=%t, Duration=%v",
		event.Tool, event.Category, event.Success, event.Duration)
}

// RecordLLMEvent records a completion call event
func (t *Telemetry) RecordLLMEvent(ctx context.Context, event LLMEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.LLMRequests[event.Model]++
	t.metrics.LLMTokensUsed[event.Model] += event.InputTokens + event.OutputTokens

	// Update average latency
	currentAvg := t.metrics.LLMAverageLatency[event.Model]
	currentRequests := t.metrics.LLMRequests[event.Model]
	if currentRequests == 1 {
		t.metrics.LLMAverageLatency[event.Model] = event.Duration
	} else {
		total := currentAvg * time.Duration(currentRequests-1)
		t.metrics.LLMAverageLatency[event.Model] = (total + event.Duration) / time.Duration(currentRequests)
	}

	// Update cost tracking
	if t.config.CostTracking {
		t.costTracker.TotalCost += event.Cost
		t.costTracker.TotalTokens += event.InputTokens + event.OutputTokens
		t.costTracker.ModelCosts[event.Model] += event.Cost
		t.costTracker.PhaseCosts[event.Phase] += event.Cost
	}

	recordLLMMetrics(ctx, event)

	t.logger.Printf("LLM Event: Phase=%s, Model=%s, Success=%t, Duration=%v, Cost=$%.4f",
		event.Phase, event.Model, event.Success, event.Duration, event.Cost)
}

// GetMetrics returns current metrics snapshot
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	// Create a deep copy to avoid race conditions
	metrics := *t.metrics
	metrics.ToolExecutions = make(map[string]int64)
	metrics.ToolSuccessRates = make(map[string]float64)
	metrics.ToolAverageTimes = make(map[string]time.Duration)
	metrics.LLMRequests = make(map[string]int64)
	metrics.LLMTokensUsed = make(map[string]int64)
	metrics.LLMAverageLatency = make(map[string]time.Duration)

	for k, v := range t.metrics.ToolExecutions {
		metrics.ToolExecutions[k] = v
	}
	for k, v := range t.metrics.ToolSuccessRates {
		metrics.ToolSuccessRates[k] = v
	}
	for k, v := range t.metrics.ToolAverageTimes {
		metrics.ToolAverageTimes[k] = v
	}
	for k, v := range t.metrics.LLMRequests {
		metrics.LLMRequests[k] = v
	}
	for k, v := range t.metrics.LLMTokensUsed {
		metrics.LLMTokensUsed[k] = v
	}
	for k, v := range t.metrics.LLMAverageLatency {
		metrics.LLMAverageLatency[k] = v
	}

	return metrics
}

// GetCostSummary returns current cost summary
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := CostSummary{
		TotalCost:   t.costTracker.TotalCost,
		TotalTokens: t.costTracker.TotalTokens,
		DailyCosts:  make(map[string]float64),
		ModelCosts:  make(map[string]float64),
		PhaseCosts:  make(map[string]float64),
	}

	for k, v := range t.costTracker.DailyCosts {
		summary.DailyCosts[k] = v
	}
	for k, v := range t.costTracker.ModelCosts {
		summary.ModelCosts[k] = v
	}
	for k, v := range t.costTracker.PhaseCosts {
		summary.PhaseCosts[k] = v
	}

	return summary
}

// CostSummary provides a summary of costs
type CostSummary struct {
	TotalCost   float64
	TotalTokens int64
	DailyCosts  map[string]float64
	ModelCosts  map[string]float64
	PhaseCosts  map[string]float64
}

// startMetricsCollection starts periodic metrics collection
func (t *Telemetry) startMetricsCollection() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		metrics := t.GetMetrics()
		costs := t.GetCostSummary()

		t.logger.Printf("Metrics Snapshot: Sessions=%d/%d, AvgTime=%v, TotalCost=$%.4f, TotalTokens=%d",
			metrics.FinishedSessions, metrics.TotalSessions,
			metrics.AverageSessionTime, costs.TotalCost, costs.TotalTokens)
	}
}

// startCostReporting starts periodic cost reporting
func (t *Telemetry) startCostReporting() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		costs := t.GetCostSummary()

		t.logger.Printf("Cost Report: Total=$%.4f, Tokens=%d", costs.TotalCost, costs.TotalTokens)

		for model, cost := range costs.ModelCosts {
			t.logger.Printf("  Model %s: $%.4f", model, cost)
		}
		for phase, cost := range costs.PhaseCosts {
			t.logger.Printf("  Phase %s: $%.4f", phase, cost)
		}
	}
}

// Shutdown logs a final report before the process exits
func (t *Telemetry) Shutdown() {
	t.logger.Println("Shutting down telemetry system...")

	metrics := t.GetMetrics()
	costs := t.GetCostSummary()

	t.logger.Printf("Final Report:")
	t.logger.Printf("  Total Sessions: %d", metrics.TotalSessions)
	t.logger.Printf("  Finish Rate: %.2f%%", percent(metrics.FinishedSessions, metrics.TotalSessions))
	t.logger.Printf("  Average Session Time: %v", metrics.AverageSessionTime)
	t.logger.Printf("  Total Cost: $%.4f", costs.TotalCost)
	t.logger.Printf("  Total Tokens: %d", costs.TotalTokens)
}

// CalculateCost calculates the cost for a given number of tokens and model
func (t *Telemetry) CalculateCost(inputTokens, outputTokens int64, costPer1KInput, costPer1KOutput float64) float64 {
	inputCost := float64(inputTokens) / 1000.0 * costPer1KInput
	outputCost := float64(outputTokens) / 1000.0 * costPer1KOutput
	return inputCost + outputCost
}

// GetPerformanceReport returns a detailed performance report
func (t *Telemetry) GetPerformanceReport() string {
	metrics := t.GetMetrics()
	costs := t.GetCostSummary()

	report := fmt.Sprintf(`
=== PERFORMANCE REPORT ===
Overall Metrics:
  Total Sessions: %d
  Finished: %d (%.2f%%)
  Aborted: %d (%.2f%%)
  Average Session Time: %v
  Total Cost: $%.4f
  Total Tokens: %d

Tool Performance:
`, metrics.TotalSessions, metrics.FinishedSessions,
		percent(metrics.FinishedSessions, metrics.TotalSessions),
		metrics.AbortedSessions, percent(metrics.AbortedSessions, metrics.TotalSessions),
		metrics.AverageSessionTime, costs.TotalCost, costs.TotalTokens)

	for tool, executions := range metrics.ToolExecutions {
		successRate := metrics.ToolSuccessRates[tool]
		avgTime := metrics.ToolAverageTimes[tool]
		report += fmt.Sprintf("  %s: %d executions, %.2f%% success, %v avg time\n",
			tool, executions, successRate*100, avgTime)
	}

	report += "\nLLM Usage:\n"
	for model, requests := range metrics.LLMRequests {
		tokens := metrics.LLMTokensUsed[model]
		cost := costs.ModelCosts[model]
		report += fmt.Sprintf("  %s: %d requests, %d tokens, $%.4f\n",
			model, requests, tokens, cost)
	}

	return report
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
