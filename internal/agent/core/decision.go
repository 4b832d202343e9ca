package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/dockagent/internal/helpers"
)

// DecisionEngine judges each step's outcome and selects the next control
// action, one completion call per step.
type DecisionEngine struct {
	provider LLMProvider
	logger   *log.Logger
}

// NewDecisionEngine creates a new decision engine instance.
func NewDecisionEngine(provider LLMProvider) *DecisionEngine {
	return &DecisionEngine{
		provider: provider,
		logger:   log.New(log.Writer(), "[DECIDE] ", log.LstdFlags),
	}
}

// Decide runs one judgment call. A failed completion, unparseable response or
// unknown next_action degrades to the neutral default so the loop always
// progresses. Confidence is clamped to 0..100.
func (d *DecisionEngine) Decide(ctx context.Context, currentStep int, plan *Plan, results *Results, latestObservation string) Decision {
	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		planJSON = []byte("{}")
	}
	prompt := fmt.Sprintf(DecisionPrompt, currentStep, planJSON, results.Summary(), latestObservation)

	response, err := d.provider.Complete(ctx, prompt)
	if err != nil {
		d.logger.Printf("completion failed: %v, using fallback decision", err)
		return neutralDecision()
	}

	var wire struct {
		Evaluation string   `json:"evaluation"`
		Confidence float64  `json:"confidence"`
		NextAction string   `json:"next_action"`
		Reasoning  string   `json:"reasoning"`
		Concerns   []string `json:"specific_concerns"`
	}
	if err := decodeInto(helpers.ExtractJSON(response), &wire); err != nil || !validNextAction(wire.NextAction) {
		d.logger.Printf("unusable decision response, falling back to %s", ActionContinuePlan)
		return neutralDecision()
	}

	dec := Decision{
		Evaluation: wire.Evaluation,
		Confidence: clampConfidence(int(wire.Confidence)),
		NextAction: wire.NextAction,
		Reasoning:  wire.Reasoning,
		Concerns:   wire.Concerns,
	}
	if dec.Concerns == nil {
		dec.Concerns = []string{}
	}
	return dec
}

// neutralDecision keeps the loop moving when judgment is unavailable.
func neutralDecision() Decision {
	return Decision{
		Evaluation: "uncertain",
		Confidence: 50,
		NextAction: ActionContinuePlan,
		Reasoning:  "Fallback decision",
		Concerns:   []string{},
	}
}

func validNextAction(a string) bool {
	switch a {
	case ActionContinuePlan, ActionRefineResults, ActionTryAlternative, ActionFinish:
		return true
	}
	return false
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
