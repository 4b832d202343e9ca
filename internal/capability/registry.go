package capability

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Category classifies a tool by the kind of work it performs. The enum order
// below is fixed and drives the grouping of the planner manifest.
type Category string

const (
	CategoryStructurePrediction Category = "structure_prediction"
	CategoryDocking             Category = "docking"
	CategoryScoring             Category = "scoring"
	CategoryValidation          Category = "validation"
	CategoryRefinement          Category = "refinement"
	CategoryKnowledge           Category = "knowledge"
	CategoryAnalysis            Category = "analysis"
)

// Categories returns every category in manifest order.
func Categories() []Category {
	return []Category{
		CategoryStructurePrediction,
		CategoryDocking,
		CategoryScoring,
		CategoryValidation,
		CategoryRefinement,
		CategoryKnowledge,
		CategoryAnalysis,
	}
}

// Tool describes one invocable capability. Parameters maps parameter names to
// human-readable descriptions; the planner receives it verbatim. A Tool is
// immutable once registered.
type Tool struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Category      Category          `json:"category"`
	Parameters    map[string]string `json:"parameters"`
	EstimatedTime float64           `json:"estimated_time"`
	RequiresGPU   bool              `json:"requires_gpu"`
}

// DescribeForLLM renders the tool block used inside the planner manifest.
func (t Tool) DescribeForLLM() string {
	params, err := json.MarshalIndent(t.Parameters, "", "  ")
	if err != nil {
		params = []byte("{}")
	}
	return fmt.Sprintf("\nTool: %s\nCategory: %s\nDescription: %s\nParameters: %s\nEstimated Time: %ss\nRequires GPU: %t\n",
		t.Name, t.Category, t.Description, params,
		strconv.FormatFloat(t.EstimatedTime, 'f', -1, 64), t.RequiresGPU)
}

// ErrToolNotFound indicates a lookup for a name nobody registered.
var ErrToolNotFound = fmt.Errorf("tool not found")

// ErrToolExists indicates a duplicate registration. Overriding an existing
// entry must go through Replace.
var ErrToolExists = fmt.Errorf("tool already registered")

// Registry is the catalog of invocable tools. Registration happens once at
// startup by a single writer; afterwards the registry is read concurrently by
// every session, so all access is guarded anyway.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry preloaded with the stock tools plus any extras.
func NewRegistry(extra ...Tool) (*Registry, error) {
	reg := &Registry{tools: make(map[string]Tool)}
	for _, t := range append(Defaults(), extra...) {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds a tool. Duplicate names are rejected with ErrToolExists.
func (r *Registry) Register(t Tool) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("register tool: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrToolExists, t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Replace overrides an existing entry, or registers the tool when absent. The
// tool keeps its original position in registration order.
func (r *Registry) Replace(t Tool) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("replace tool: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns tools in registration order. When categories are given, only
// tools belonging to one of them are returned.
func (r *Registry) List(categories ...Category) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		if len(categories) == 0 || containsCategory(categories, t.Category) {
			out = append(out, t)
		}
	}
	return out
}

// DescribeForPlanner renders the full manifest grounding the planning prompt:
// tools grouped by the fixed category order, empty categories skipped. The
// output is deterministic for a given registry state.
func (r *Registry) DescribeForPlanner() string {
	var parts []string
	for _, cat := range Categories() {
		tools := r.List(cat)
		if len(tools) == 0 {
			continue
		}
		parts = append(parts, "\n"+strings.Repeat("=", 60))
		parts = append(parts, strings.ToUpper(string(cat))+" TOOLS:")
		parts = append(parts, strings.Repeat("=", 60))
		for _, t := range tools {
			parts = append(parts, t.DescribeForLLM())
		}
	}
	return strings.Join(parts, "\n")
}

func containsCategory(cats []Category, c Category) bool {
	for _, cat := range cats {
		if cat == c {
			return true
		}
	}
	return false
}
