package capability

import (
	"errors"
	"strings"
	"testing"
)

func newTestRegistry(t *testing.T, extra ...Tool) *Registry {
	t.Helper()
	reg, err := NewRegistry(extra...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestNewRegistryLoadsDefaults(t *testing.T) {
	reg := newTestRegistry(t)
	tools := reg.List()
	if len(tools) != 9 {
		t.Fatalf("expected 9 stock tools, got %d", len(tools))
	}
	for i, want := range Defaults() {
		if tools[i].Name != want.Name {
			t.Fatalf("registration order broken at %d: got %s, want %s", i, tools[i].Name, want.Name)
		}
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	reg := newTestRegistry(t)
	err := reg.Register(Tool{Name: "diffdock", Category: CategoryDocking})
	if !errors.Is(err, ErrToolExists) {
		t.Fatalf("expected ErrToolExists, got %v", err)
	}
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.Register(Tool{Name: "  "}); err == nil {
		t.Fatalf("expected error for empty tool name")
	}
}

func TestReplaceKeepsRegistrationOrder(t *testing.T) {
	reg := newTestRegistry(t)
	patched := Tool{
		Name:          "vina",
		Description:   "patched description",
		Category:      CategoryDocking,
		EstimatedTime: 120,
	}
	if err := reg.Replace(patched); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	tools := reg.List()
	if tools[1].Name != "vina" || tools[1].Description != "patched description" {
		t.Fatalf("expected vina replaced in place, got %+v", tools[1])
	}
}

func TestReplaceRegistersWhenAbsent(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.Replace(Tool{Name: "gnina", Category: CategoryDocking}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	tools := reg.List()
	if tools[len(tools)-1].Name != "gnina" {
		t.Fatalf("expected gnina appended, got %s", tools[len(tools)-1].Name)
	}
}

func TestGetUnknownTool(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Get("alphafold"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestListFiltersByCategory(t *testing.T) {
	reg := newTestRegistry(t)
	docking := reg.List(CategoryDocking)
	if len(docking) != 2 || docking[0].Name != "diffdock" || docking[1].Name != "vina" {
		t.Fatalf("unexpected docking tools: %+v", docking)
	}
	if got := reg.List(CategoryAnalysis); len(got) != 0 {
		t.Fatalf("expected no analysis tools, got %+v", got)
	}
}

func TestDescribeForPlannerDeterministic(t *testing.T) {
	reg := newTestRegistry(t)
	first := reg.DescribeForPlanner()
	second := reg.DescribeForPlanner()
	if first != second {
		t.Fatalf("manifest not deterministic")
	}
	if first == "" {
		t.Fatalf("manifest empty")
	}
}

func TestDescribeForPlannerGroupsByEnumOrder(t *testing.T) {
	reg := newTestRegistry(t)
	manifest := reg.DescribeForPlanner()

	sections := []string{"DOCKING TOOLS:", "SCORING TOOLS:", "VALIDATION TOOLS:", "REFINEMENT TOOLS:", "KNOWLEDGE TOOLS:"}
	last := -1
	for _, s := range sections {
		idx := strings.Index(manifest, s)
		if idx < 0 {
			t.Fatalf("manifest missing section %q", s)
		}
		if idx < last {
			t.Fatalf("section %q out of order", s)
		}
		last = idx
	}
	if strings.Contains(manifest, "STRUCTURE_PREDICTION TOOLS:") {
		t.Fatalf("empty category rendered in manifest")
	}
	if !strings.Contains(manifest, "Tool: diffdock") || !strings.Contains(manifest, "Requires GPU: true") {
		t.Fatalf("tool block missing expected fields:\n%s", manifest)
	}
	if !strings.Contains(manifest, strings.Repeat("=", 60)) {
		t.Fatalf("manifest missing section rules")
	}
}

func TestDescribeForLLMRendersParameters(t *testing.T) {
	reg := newTestRegistry(t)
	tool, err := reg.Get("diffdock")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	desc := tool.DescribeForLLM()
	for _, want := range []string{
		"Tool: diffdock",
		"Category: docking",
		"\"num_poses\"",
		"Estimated Time: 180s",
		"Requires GPU: true",
	} {
		if !strings.Contains(desc, want) {
			t.Fatalf("description missing %q:\n%s", want, desc)
		}
	}
}
