package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/dockagent/internal/capability"
	"github.com/mohammad-safakhou/dockagent/internal/helpers"
)

// Planner turns a docking request into an ordered execution plan with a
// single completion call grounded on the registry manifest.
type Planner struct {
	provider LLMProvider
	registry *capability.Registry
	logger   *log.Logger
}

// NewPlanner creates a new planner instance.
func NewPlanner(provider LLMProvider, registry *capability.Registry) *Planner {
	return &Planner{
		provider: provider,
		registry: registry,
		logger:   log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// CreatePlan asks the model for a plan and parses it. Completion failures,
// unparseable responses and plans without steps all degrade to the fixed
// fallback plan; planning never fails a session.
func (p *Planner) CreatePlan(ctx context.Context, req Request) *Plan {
	started := time.Now()
	prompt := fmt.Sprintf(PlanningPrompt, req.Query, req.ProteinPDB, req.LigandSDF, p.registry.DescribeForPlanner())

	response, err := p.provider.Complete(ctx, prompt)
	if err != nil {
		p.logger.Printf("completion failed: %v, using fallback plan", err)
		return FallbackPlan(req)
	}

	plan, ok := parsePlan(response)
	if !ok {
		p.logger.Printf("response had no usable steps, using fallback plan")
		return FallbackPlan(req)
	}

	p.logger.Printf("plan ready in %v: strategy=%s steps=%d", time.Since(started), plan.Strategy, len(plan.Steps))
	return plan
}

func parsePlan(response string) (*Plan, bool) {
	raw := helpers.ExtractJSON(response)
	if len(raw) == 0 {
		return nil, false
	}
	var plan Plan
	if err := decodeInto(raw, &plan); err != nil {
		return nil, false
	}
	if len(plan.Steps) == 0 {
		return nil, false
	}
	// Normalise whatever numbering the model chose to 1..n.
	for i := range plan.Steps {
		plan.Steps[i].StepNum = i + 1
		if plan.Steps[i].Parameters == nil {
			plan.Steps[i].Parameters = map[string]interface{}{}
		}
	}
	return &plan, true
}

// FallbackPlan is the fixed three-step plan substituted whenever planning
// output is unusable: fast docking, then scoring, then validation.
func FallbackPlan(req Request) *Plan {
	return &Plan{
		Intent:   "Find best binding pose",
		Strategy: "balanced",
		Steps: []PlanStep{
			{
				StepNum: 1,
				Tool:    "diffdock",
				Parameters: map[string]interface{}{
					"protein_pdb": req.ProteinPDB,
					"ligand_sdf":  req.LigandSDF,
					"num_poses":   40,
				},
				Reasoning: "Start with fast ML-based docking",
			},
			{
				StepNum:    2,
				Tool:       "detailed_scoring",
				Parameters: map[string]interface{}{"protein_pdb": req.ProteinPDB},
				Reasoning:  "Score all poses",
			},
			{
				StepNum:    3,
				Tool:       "validate_pose",
				Parameters: map[string]interface{}{"protein_pdb": req.ProteinPDB},
				Reasoning:  "Validate top pose",
			},
		},
		SuccessCriteria:      []string{"Top pose has good confidence", "No geometric issues"},
		EstimatedTimeSeconds: 300,
	}
}

// decodeInto re-marshals a generic extraction result into a typed struct.
func decodeInto(raw map[string]interface{}, v interface{}) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
