package core

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/dockagent/internal/capability"
)

// Session status values. A session moves planning -> executing ->
// synthesizing and terminates as finished or aborted.
const (
	StatusPlanning     = "planning"
	StatusExecuting    = "executing"
	StatusSynthesizing = "synthesizing"
	StatusFinished     = "finished"
	StatusAborted      = "aborted"
)

// Next actions a Decision may select.
const (
	ActionContinuePlan   = "continue_plan"
	ActionRefineResults  = "refine_results"
	ActionTryAlternative = "try_alternative"
	ActionFinish         = "finish"
)

// ErrToolTimeout is returned by a ToolInvoker when a tool exceeds its
// deadline. It is the single per-step condition that aborts a session; every
// other tool failure degrades to an observation.
var ErrToolTimeout = errors.New("tool timed out")

// Request describes one docking session to run.
type Request struct {
	Query      string `json:"query"`
	ProteinPDB string `json:"protein_pdb"`
	LigandSDF  string `json:"ligand_sdf"`
	// MaxSteps overrides the configured step ceiling when > 0.
	MaxSteps int `json:"max_steps,omitempty"`
	// SessionID is set by callers that hand out the identifier before the
	// run starts (the HTTP layer answers 202 with it). A fresh one is
	// generated when empty.
	SessionID string `json:"session_id,omitempty"`
}

// PlanStep is one planned tool invocation.
type PlanStep struct {
	StepNum    int                    `json:"step_num"`
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
	Reasoning  string                 `json:"reasoning"`
}

// Plan is the ordered execution plan for a session. Produced once per
// session, immutable afterwards.
type Plan struct {
	Intent               string     `json:"intent"`
	Strategy             string     `json:"strategy"`
	Steps                []PlanStep `json:"steps"`
	SuccessCriteria      []string   `json:"success_criteria"`
	EstimatedTimeSeconds float64    `json:"estimated_time_seconds"`
}

// Decision is the per-step judgment of the decision engine. Only its control
// effect persists; the struct itself is ephemeral.
type Decision struct {
	Evaluation string   `json:"evaluation"`
	Confidence int      `json:"confidence"`
	NextAction string   `json:"next_action"`
	Reasoning  string   `json:"reasoning"`
	Concerns   []string `json:"specific_concerns"`
}

// Proposal is a corrective action suggested by the refinement engine.
type Proposal struct {
	RefinementTool      string                 `json:"refinement_tool"`
	Parameters          map[string]interface{} `json:"parameters"`
	ExpectedImprovement string                 `json:"expected_improvement"`
	Reasoning           string                 `json:"reasoning"`
}

// RefinementRecord is the advisory outcome stored when a decision asks for
// refinement. Executed stays false until an execution path consumes
// proposals.
type RefinementRecord struct {
	AfterStep         int      `json:"after_step"`
	Plan              Proposal `json:"plan"`
	Executed          bool     `json:"executed"`
	ConcernsAddressed []string `json:"concerns_addressed"`
}

func (r RefinementRecord) asMap() map[string]interface{} {
	return map[string]interface{}{
		"after_step":         r.AfterStep,
		"plan":               r.Plan,
		"executed":           r.Executed,
		"concerns_addressed": r.ConcernsAddressed,
	}
}

// ProcessingStatus tracks an in-flight session for API consumers.
type ProcessingStatus struct {
	SessionID   string    `json:"session_id"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	CurrentStep string    `json:"current_step"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// RunResult is what Run returns to the caller once a session terminates.
type RunResult struct {
	SessionID   string                            `json:"session_id"`
	State       string                            `json:"state"`
	Plan        *Plan                             `json:"plan"`
	Results     map[string]map[string]interface{} `json:"results"`
	FinalAnswer string                            `json:"final_answer"`
	Trace       string                            `json:"reasoning_trace"`
	TotalTime   float64                           `json:"total_time"`
}

// LLMProvider is the opaque text-completion backend. No structural contract
// is enforced on responses; structure recovery goes through
// helpers.ExtractJSON.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ToolCall carries one tool invocation across the executor boundary. Results
// gives the runner read access to upstream outcomes.
type ToolCall struct {
	Tool       capability.Tool
	Parameters map[string]interface{}
	ProteinPDB string
	LigandSDF  string
	Results    *Results
}

// ToolOutcome is a runner's reply: a non-empty observation for the trace and
// the decision prompt, plus optional structured data for the accumulator.
type ToolOutcome struct {
	Observation string
	Data        map[string]interface{}
}

// ToolInvoker executes registered tools. Invoke returns an error only for
// ErrToolTimeout; every other failure comes back as an "Error: ..."
// observation with nil data.
type ToolInvoker interface {
	Invoke(ctx context.Context, call ToolCall) (ToolOutcome, error)
}

// Storage persists session state. The orchestrator writes status transitions
// as they happen and the full record plus rendered trace at session exit.
type Storage interface {
	CreateSession(ctx context.Context, rec SessionRecord) error
	UpdateStatus(ctx context.Context, sessionID, status string, progress float64) error
	AppendStep(ctx context.Context, sessionID string, step Step) error
	SaveRefinement(ctx context.Context, sessionID string, rec RefinementRecord) error
	SaveSession(ctx context.Context, rec SessionRecord, trace string) error
}
