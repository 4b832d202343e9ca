package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/dockagent/config"
	"github.com/mohammad-safakhou/dockagent/internal/agent/telemetry"
	"github.com/mohammad-safakhou/dockagent/internal/capability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator drives the plan -> act -> judge -> adapt loop for one docking
// session at a time per Run call. Sessions are independent; the registry is
// the only shared collaborator and is read-only by the time Run is called.
type Orchestrator struct {
	config    *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	registry  *capability.Registry

	// Core components
	planner     *Planner
	decider     *DecisionEngine
	refiner     *RefinementEngine
	synthesizer LLMProvider
	invoker     ToolInvoker
	storage     Storage

	// Processing state
	processing map[string]*ProcessingStatus
	mu         sync.RWMutex

	// Concurrency control
	semaphore chan struct{}
}

var orchestratorTracer trace.Tracer = otel.Tracer("dockagent/internal/agent/orchestrator")

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(cfg *config.Config, logger *log.Logger, tel *telemetry.Telemetry, registry *capability.Registry, provider LLMProvider, invoker ToolInvoker, storage Storage) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if invoker == nil {
		return nil, fmt.Errorf("tool invoker is required")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	if tel == nil {
		tel = telemetry.NewTelemetry(cfg.Telemetry)
	}

	active := cfg.LLM.Active()
	maxConcurrent := cfg.Server.MaxConcurrentSessions
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Orchestrator{
		config:      cfg,
		logger:      logger,
		telemetry:   tel,
		registry:    registry,
		planner:     NewPlanner(meterLLM(provider, tel, active, "planning"), registry),
		decider:     NewDecisionEngine(meterLLM(provider, tel, active, "decision")),
		refiner:     NewRefinementEngine(meterLLM(provider, tel, active, "refinement"), registry),
		synthesizer: meterLLM(provider, tel, active, "synthesis"),
		invoker:     invoker,
		storage:     storage,
		processing:  make(map[string]*ProcessingStatus),
		semaphore:   make(chan struct{}, maxConcurrent),
	}, nil
}

// Run executes one complete docking session and returns its result. Tool
// failures and unknown tools degrade to failure observations; the only hard
// aborts are a per-tool timeout and caller cancellation, which surface as an
// error after the partial session is persisted.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*RunResult, error) {
	startTime := time.Now()
	memory := NewSessionMemoryWithID(req.SessionID, req.Query)
	sessionID := memory.SessionID()

	ctx, span := orchestratorTracer.Start(ctx, "agent.session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("session.query", req.Query),
		))
	defer span.End()

	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = o.config.Agent.MaxSteps
	}
	if maxSteps <= 0 {
		maxSteps = 10
	}

	status := &ProcessingStatus{
		SessionID:   sessionID,
		Status:      StatusPlanning,
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	}
	o.mu.Lock()
	o.processing[sessionID] = status
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.processing, sessionID)
		o.mu.Unlock()
	}()

	// Acquire semaphore for concurrency control
	select {
	case o.semaphore <- struct{}{}:
		defer func() { <-o.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sessionEvent := telemetry.SessionEvent{
		SessionID: sessionID,
		Query:     req.Query,
		StartTime: startTime,
	}
	defer func() {
		sessionEvent.EndTime = time.Now()
		sessionEvent.Duration = sessionEvent.EndTime.Sub(sessionEvent.StartTime)
		o.telemetry.RecordSessionEvent(ctx, sessionEvent)
	}()

	o.logger.Printf("Starting session %s: %s", sessionID, req.Query)

	created := memory.Snapshot()
	created.ProteinPDB = req.ProteinPDB
	created.LigandSDF = req.LigandSDF
	created.Status = StatusPlanning
	if err := o.storage.CreateSession(ctx, created); err != nil {
		o.logger.Printf("warn: creating session record failed: %v", err)
	}
	o.updateStatus(ctx, status, StatusPlanning, 0.1, "Creating docking plan")

	// Phase 1: Planning
	planCtx, planSpan := orchestratorTracer.Start(ctx, "agent.plan")
	plan := o.planner.CreatePlan(planCtx, req)
	planSpan.SetAttributes(
		attribute.String("plan.strategy", plan.Strategy),
		attribute.Int("plan.step_count", len(plan.Steps)),
	)
	planSpan.SetStatus(codes.Ok, "completed")
	planSpan.End()
	o.logger.Printf("Plan ready: strategy=%s steps=%d estimated=%.0fs",
		plan.Strategy, len(plan.Steps), plan.EstimatedTimeSeconds)

	// Phase 2: Execute plan
	results := NewResults()
	state, runErr := o.executePlan(ctx, req, plan, memory, results, status, maxSteps)
	if runErr != nil {
		memory.Finalize(time.Since(startTime))
		o.updateStatus(ctx, status, StatusAborted, 1.0, runErr.Error())
		o.persistSession(memory, plan, results, StatusAborted, req)
		sessionEvent.State = StatusAborted
		sessionEvent.Steps = memory.StepCount()
		sessionEvent.Error = runErr.Error()
		sessionEvent.ToolsUsed = toolNames(memory.Steps())
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return nil, fmt.Errorf("session %s aborted: %w", sessionID, runErr)
	}

	// Phase 3: Final synthesis. Runs for finished sessions and step-ceiling
	// aborts alike; both still owe the caller an answer.
	o.updateStatus(ctx, status, StatusSynthesizing, 0.9, "Synthesizing final answer")
	synthCtx, synthSpan := orchestratorTracer.Start(ctx, "agent.synthesize")
	finalAnswer := o.synthesize(synthCtx, req.Query, memory, results)
	synthSpan.SetStatus(codes.Ok, "completed")
	synthSpan.End()

	if err := memory.SetFinalAnswer(finalAnswer); err != nil {
		o.logger.Printf("warn: setting final answer failed: %v", err)
	}
	memory.Finalize(time.Since(startTime))

	o.updateStatus(ctx, status, state, 1.0, "Session complete")
	o.persistSession(memory, plan, results, state, req)

	sessionEvent.State = state
	sessionEvent.Steps = memory.StepCount()
	sessionEvent.Success = state == StatusFinished
	sessionEvent.ToolsUsed = toolNames(memory.Steps())

	o.logger.Printf("Session %s %s in %v (%d steps)",
		sessionID, state, time.Since(startTime), memory.StepCount())
	span.SetAttributes(
		attribute.String("session.state", state),
		attribute.Int("session.steps", memory.StepCount()),
	)
	span.SetStatus(codes.Ok, "completed")

	return &RunResult{
		SessionID:   sessionID,
		State:       state,
		Plan:        plan,
		Results:     results.Snapshot(),
		FinalAnswer: finalAnswer,
		Trace:       memory.RenderTrace(),
		TotalTime:   memory.TotalTime().Seconds(),
	}, nil
}

// executePlan walks the plan steps in order. It returns the terminal state
// and a non-nil error only for the hard abort conditions.
func (o *Orchestrator) executePlan(ctx context.Context, req Request, plan *Plan, memory *SessionMemory, results *Results, status *ProcessingStatus, maxSteps int) (string, error) {
	totalSteps := len(plan.Steps)
	if totalSteps == 0 {
		totalSteps = 1
	}
	currentStep := 0

	for _, planStep := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return StatusAborted, err
		}
		currentStep++
		if currentStep > maxSteps {
			o.logger.Printf("Max steps (%d) reached", maxSteps)
			return StatusAborted, nil
		}

		progress := 0.2 + 0.6*float64(currentStep-1)/float64(totalSteps)
		o.updateStatus(ctx, status, StatusExecuting, progress,
			fmt.Sprintf("Executing step %d: %s", currentStep, planStep.Tool))

		stepCtx, stepSpan := orchestratorTracer.Start(ctx, "agent.step",
			trace.WithAttributes(
				attribute.Int("step.num", currentStep),
				attribute.String("step.tool", planStep.Tool),
			))
		o.logger.Printf("Executing step %d: %s", currentStep, planStep.Tool)

		started := time.Now()
		observation, category, invokeErr := o.executeStep(stepCtx, planStep, req, results)
		elapsed := time.Since(started)

		if invokeErr != nil {
			// Timeout (or caller cancellation): record the failure step, then
			// abort. This is the one step outcome the loop cannot absorb.
			observation = fmt.Sprintf("Error: %v", invokeErr)
			o.recordStep(ctx, memory, currentStep, planStep, observation)
			o.recordToolEvent(stepCtx, sessionToolEvent{
				sessionID: memory.SessionID(), tool: planStep.Tool, category: category,
				started: started, elapsed: elapsed, success: false, err: invokeErr,
			})
			stepSpan.RecordError(invokeErr)
			stepSpan.SetStatus(codes.Error, invokeErr.Error())
			stepSpan.End()
			return StatusAborted, invokeErr
		}

		o.recordStep(ctx, memory, currentStep, planStep, observation)
		softFailure := strings.HasPrefix(observation, "Error")
		o.recordToolEvent(stepCtx, sessionToolEvent{
			sessionID: memory.SessionID(), tool: planStep.Tool, category: category,
			started: started, elapsed: elapsed, success: !softFailure,
		})
		stepSpan.SetAttributes(attribute.String("step.observation", fmt.Sprintf("%.100s", observation)))
		if softFailure {
			stepSpan.SetStatus(codes.Error, "tool reported failure")
		} else {
			stepSpan.SetStatus(codes.Ok, "completed")
		}
		stepSpan.End()
		o.logger.Printf("Observation: %.100s", observation)

		// Judge the outcome and adapt
		decCtx, decSpan := orchestratorTracer.Start(ctx, "agent.decide")
		decision := o.decider.Decide(decCtx, currentStep, plan, results, observation)
		decSpan.SetAttributes(
			attribute.String("decision.next_action", decision.NextAction),
			attribute.Int("decision.confidence", decision.Confidence),
		)
		decSpan.End()
		o.logger.Printf("Decision after step %d: %s (confidence %d%%)",
			currentStep, decision.NextAction, decision.Confidence)

		switch decision.NextAction {
		case ActionFinish:
			o.logger.Printf("Agent satisfied with results")
			return StatusFinished, nil
		case ActionRefineResults:
			refCtx, refSpan := orchestratorTracer.Start(ctx, "agent.refine")
			record := o.refiner.Refine(refCtx, decision.Concerns, results)
			record.AfterStep = currentStep
			results.Set(capability.CategoryRefinement, record.asMap())
			refSpan.SetAttributes(attribute.String("refine.tool", record.Plan.RefinementTool))
			refSpan.End()
			if err := o.storage.SaveRefinement(ctx, memory.SessionID(), record); err != nil {
				o.logger.Printf("warn: saving refinement failed: %v", err)
			}
		}
	}

	return StatusFinished, nil
}

// executeStep resolves and invokes one planned tool. Unknown tools and tool
// errors come back as failure observations; only a timeout propagates as an
// error.
func (o *Orchestrator) executeStep(ctx context.Context, planStep PlanStep, req Request, results *Results) (string, capability.Category, error) {
	tool, err := o.registry.Get(planStep.Tool)
	if err != nil {
		return fmt.Sprintf("Tool %s is not registered", planStep.Tool), "", nil
	}

	outcome, err := o.invoker.Invoke(ctx, ToolCall{
		Tool:       tool,
		Parameters: planStep.Parameters,
		ProteinPDB: req.ProteinPDB,
		LigandSDF:  req.LigandSDF,
		Results:    results,
	})
	if err != nil {
		return "", tool.Category, err
	}

	observation := outcome.Observation
	if strings.TrimSpace(observation) == "" {
		observation = fmt.Sprintf("Tool %s returned no observation", tool.Name)
	}
	results.Set(tool.Category, outcome.Data)
	return observation, tool.Category, nil
}

// recordStep appends the step to session memory and mirrors it to storage.
func (o *Orchestrator) recordStep(ctx context.Context, memory *SessionMemory, stepNum int, planStep PlanStep, observation string) {
	step := Step{
		StepNum:     stepNum,
		Timestamp:   time.Now(),
		Thought:     fmt.Sprintf("Executing step %d of plan", stepNum),
		Action:      planStep.Tool,
		ActionInput: planStep.Parameters,
		Observation: observation,
		Reasoning:   planStep.Reasoning,
	}
	if err := memory.AddStep(step); err != nil {
		o.logger.Printf("warn: recording step %d failed: %v", stepNum, err)
		return
	}
	if err := o.storage.AppendStep(ctx, memory.SessionID(), step); err != nil {
		o.logger.Printf("warn: persisting step %d failed: %v", stepNum, err)
	}
}

// synthesize produces the session's final answer from the complete trace and
// accumulated results. A failed completion degrades to the plain results
// summary so a session always ends with an answer.
func (o *Orchestrator) synthesize(ctx context.Context, query string, memory *SessionMemory, results *Results) string {
	steps := memory.Steps()
	lines := make([]string, 0, len(steps))
	for _, s := range steps {
		lines = append(lines, fmt.Sprintf("Step %d: %s - %.100s...", s.StepNum, s.Action, s.Observation))
	}

	prompt := fmt.Sprintf(FinalAnalysisPrompt, query, strings.Join(lines, "\n"), results.Summary())
	answer, err := o.synthesizer.Complete(ctx, prompt)
	if err != nil {
		o.logger.Printf("warn: final synthesis failed, falling back to results summary: %v", err)
		return results.Summary()
	}
	return answer
}

// persistSession writes the two session artifacts: the structured record and
// the rendered trace. Persistence must survive caller cancellation, so it
// runs on its own deadline.
func (o *Orchestrator) persistSession(memory *SessionMemory, plan *Plan, results *Results, state string, req Request) {
	rec := memory.Snapshot()
	rec.Plan = plan
	rec.Results = results.Snapshot()
	rec.Status = state
	rec.ProteinPDB = req.ProteinPDB
	rec.LigandSDF = req.LigandSDF

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.storage.SaveSession(ctx, rec, memory.RenderTrace()); err != nil {
		o.logger.Printf("warn: saving session %s failed: %v", rec.SessionID, err)
	}
}

type sessionToolEvent struct {
	sessionID string
	tool      string
	category  capability.Category
	started   time.Time
	elapsed   time.Duration
	success   bool
	err       error
}

func (o *Orchestrator) recordToolEvent(ctx context.Context, ev sessionToolEvent) {
	event := telemetry.ToolEvent{
		SessionID: ev.sessionID,
		Tool:      ev.tool,
		Category:  string(ev.category),
		StartTime: ev.started,
		EndTime:   ev.started.Add(ev.elapsed),
		Duration:  ev.elapsed,
		Success:   ev.success,
	}
	if ev.err != nil {
		event.Error = ev.err.Error()
	}
	o.telemetry.RecordToolEvent(ctx, event)
}

// updateStatus updates the in-memory processing status and mirrors the
// transition to storage.
func (o *Orchestrator) updateStatus(ctx context.Context, status *ProcessingStatus, newStatus string, progress float64, currentStep string) {
	o.mu.Lock()
	status.Status = newStatus
	status.Progress = progress
	status.CurrentStep = currentStep
	status.LastUpdated = time.Now()
	o.mu.Unlock()

	if err := o.storage.UpdateStatus(ctx, status.SessionID, newStatus, progress); err != nil {
		o.logger.Printf("warn: updating session %s status failed: %v", status.SessionID, err)
	}
}

// GetStatus returns the current status of an in-flight session.
func (o *Orchestrator) GetStatus(sessionID string) (ProcessingStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	status, exists := o.processing[sessionID]
	if !exists {
		return ProcessingStatus{}, fmt.Errorf("session not found: %s", sessionID)
	}
	return *status, nil
}

func toolNames(steps []Step) []string {
	seen := make(map[string]bool, len(steps))
	var names []string
	for _, s := range steps {
		if !seen[s.Action] {
			seen[s.Action] = true
			names = append(names, s.Action)
		}
	}
	return names
}

// meteredProvider wraps an LLMProvider so every completion call lands in
// telemetry with its loop phase, latency and estimated cost.
type meteredProvider struct {
	inner           LLMProvider
	tel             *telemetry.Telemetry
	model           string
	phase           string
	costPer1KInput  float64
	costPer1KOutput float64
}

func meterLLM(inner LLMProvider, tel *telemetry.Telemetry, pc config.ProviderConfig, phase string) LLMProvider {
	if tel == nil {
		return inner
	}
	return &meteredProvider{
		inner:           inner,
		tel:             tel,
		model:           pc.Model,
		phase:           phase,
		costPer1KInput:  pc.CostPer1KInput,
		costPer1KOutput: pc.CostPer1KOutput,
	}
}

func (m *meteredProvider) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := m.inner.Complete(ctx, prompt)

	event := telemetry.LLMEvent{
		Phase:        m.phase,
		Model:        m.model,
		StartTime:    start,
		EndTime:      time.Now(),
		Duration:     time.Since(start),
		Success:      err == nil,
		InputTokens:  approxTokens(prompt),
		OutputTokens: approxTokens(response),
	}
	if err != nil {
		event.Error = err.Error()
	}
	event.Cost = m.tel.CalculateCost(event.InputTokens, event.OutputTokens, m.costPer1KInput, m.costPer1KOutput)
	m.tel.RecordLLMEvent(ctx, event)

	return response, err
}

// approxTokens estimates token usage at four bytes per token, close enough
// for cost trend lines without provider usage metadata.
func approxTokens(s string) int64 { return int64(len(s) / 4) }
