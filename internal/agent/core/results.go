package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/dockagent/internal/capability"
)

// Results accumulates the latest structured outcome per tool category. Later
// same-category tools overwrite earlier ones; downstream tools, the decision
// engine and the refinement engine read it. Returned maps are shared, treat
// them as read-only.
type Results struct {
	mu    sync.RWMutex
	byCat map[capability.Category]map[string]interface{}
}

// NewResults returns an empty accumulator.
func NewResults() *Results {
	return &Results{byCat: make(map[capability.Category]map[string]interface{})}
}

// Set stores data as the latest outcome for cat. Nil data is ignored so soft
// failures never clobber earlier results.
func (r *Results) Set(cat capability.Category, data map[string]interface{}) {
	if data == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCat[cat] = data
}

// Get returns the latest outcome for cat.
func (r *Results) Get(cat capability.Category) (map[string]interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.byCat[cat]
	return data, ok
}

// Snapshot returns a string-keyed copy suitable for persistence.
func (r *Results) Snapshot() map[string]map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]interface{}, len(r.byCat))
	for cat, data := range r.byCat {
		out[string(cat)] = data
	}
	return out
}

// Summary renders the accumulated results for LLM consumption: the docking,
// scoring and validation sections the decision, refinement and synthesis
// prompts are grounded on. Empty when nothing has accumulated yet.
func (r *Results) Summary() string {
	var lines []string

	if docking, ok := r.Get(capability.CategoryDocking); ok {
		lines = append(lines, "DOCKING RESULTS:")
		lines = append(lines, fmt.Sprintf("  - Generated %v poses", valueOr(docking, "num_poses", 0)))
		lines = append(lines, fmt.Sprintf("  - Top confidence: %v", valueOr(docking, "top_confidence", "N/A")))
	}

	if scores, ok := r.Get(capability.CategoryScoring); ok {
		lines = append(lines, "\nSCORING RESULTS:")
		lines = append(lines, fmt.Sprintf("  - Best composite score: %v", valueOr(scores, "best_score", "N/A")))
		lines = append(lines, fmt.Sprintf("  - Top pose details: %v", valueOr(scores, "top_pose_summary", "N/A")))
	}

	if validation, ok := r.Get(capability.CategoryValidation); ok {
		lines = append(lines, "\nVALIDATION:")
		lines = append(lines, fmt.Sprintf("  - Status: %v", valueOr(validation, "status", "N/A")))
		lines = append(lines, fmt.Sprintf("  - Summary: %v", valueOr(validation, "summary", "N/A")))
	}

	return strings.Join(lines, "\n")
}

func valueOr(m map[string]interface{}, key string, def interface{}) interface{} {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return def
}
