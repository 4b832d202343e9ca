package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/dockagent/internal/capability"
	"github.com/mohammad-safakhou/dockagent/internal/helpers"
)

// RefinementEngine proposes a corrective tool when a decision flags concerns.
// The proposal is advisory: it is recorded alongside the results but never
// executed automatically.
type RefinementEngine struct {
	provider LLMProvider
	registry *capability.Registry
	logger   *log.Logger
}

// NewRefinementEngine creates a new refinement engine instance.
func NewRefinementEngine(provider LLMProvider, registry *capability.Registry) *RefinementEngine {
	return &RefinementEngine{
		provider: provider,
		registry: registry,
		logger:   log.New(log.Writer(), "[REFINE] ", log.LstdFlags),
	}
}

// Refine asks for a corrective proposal grounded on the refinement-category
// manifest. Unusable responses record an empty proposal; refinement never
// fails a session.
func (r *RefinementEngine) Refine(ctx context.Context, concerns []string, results *Results) RefinementRecord {
	if concerns == nil {
		concerns = []string{}
	}

	var blocks []string
	for _, t := range r.registry.List(capability.CategoryRefinement) {
		blocks = append(blocks, t.DescribeForLLM())
	}
	prompt := fmt.Sprintf(RefinementPrompt, strings.Join(concerns, ", "), results.Summary(), strings.Join(blocks, "\n"))

	var proposal Proposal
	response, err := r.provider.Complete(ctx, prompt)
	if err != nil {
		r.logger.Printf("completion failed: %v, recording empty proposal", err)
	} else if err := decodeInto(helpers.ExtractJSON(response), &proposal); err != nil {
		r.logger.Printf("unusable proposal response: %v", err)
		proposal = Proposal{}
	}
	if proposal.Parameters == nil {
		proposal.Parameters = map[string]interface{}{}
	}

	r.logger.Printf("proposal: tool=%s improvement=%s", proposal.RefinementTool, proposal.ExpectedImprovement)
	return RefinementRecord{
		Plan:              proposal,
		Executed:          false,
		ConcernsAddressed: concerns,
	}
}
