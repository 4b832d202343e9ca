package core

import (
	"strings"
	"testing"

	"github.com/mohammad-safakhou/dockagent/internal/capability"
)

func TestResultsLatestWinsPerCategory(t *testing.T) {
	res := NewResults()
	res.Set(capability.CategoryDocking, map[string]interface{}{"num_poses": 40, "top_confidence": 0.91})
	res.Set(capability.CategoryDocking, map[string]interface{}{"num_poses": 20, "top_affinity": -9.4})

	docking, ok := res.Get(capability.CategoryDocking)
	if !ok {
		t.Fatalf("expected docking results")
	}
	if docking["num_poses"] != 20 {
		t.Fatalf("expected latest docking result to win, got %+v", docking)
	}
}

func TestResultsIgnoresNilData(t *testing.T) {
	res := NewResults()
	res.Set(capability.CategoryScoring, map[string]interface{}{"best_score": 8.2})
	res.Set(capability.CategoryScoring, nil)

	scores, ok := res.Get(capability.CategoryScoring)
	if !ok || scores["best_score"] != 8.2 {
		t.Fatalf("nil data overwrote stored result: %+v", scores)
	}
}

func TestSummarySections(t *testing.T) {
	res := NewResults()
	res.Set(capability.CategoryDocking, map[string]interface{}{"num_poses": 40, "top_confidence": 0.87})
	res.Set(capability.CategoryScoring, map[string]interface{}{"best_score": 7.5, "top_pose_summary": "rank 1, 3 H-bonds"})
	res.Set(capability.CategoryValidation, map[string]interface{}{"status": "acceptable", "summary": "Minor issues: 1 close contact"})

	got := res.Summary()
	for _, want := range []string{
		"DOCKING RESULTS:",
		"  - Generated 40 poses",
		"  - Top confidence: 0.87",
		"SCORING RESULTS:",
		"  - Best composite score: 7.5",
		"  - Top pose details: rank 1, 3 H-bonds",
		"VALIDATION:",
		"  - Status: acceptable",
		"  - Summary: Minor issues: 1 close contact",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestSummarySkipsMissingSections(t *testing.T) {
	res := NewResults()
	if got := res.Summary(); got != "" {
		t.Fatalf("empty accumulator produced summary %q", got)
	}

	res.Set(capability.CategoryValidation, map[string]interface{}{"status": "excellent"})
	got := res.Summary()
	if strings.Contains(got, "DOCKING RESULTS") || strings.Contains(got, "SCORING RESULTS") {
		t.Fatalf("summary rendered absent sections:\n%s", got)
	}
	if !strings.Contains(got, "  - Status: excellent") {
		t.Fatalf("validation section missing:\n%s", got)
	}
	if !strings.Contains(got, "  - Summary: N/A") {
		t.Fatalf("missing field should render N/A:\n%s", got)
	}
}

func TestSnapshotUsesStringKeys(t *testing.T) {
	res := NewResults()
	res.Set(capability.CategoryRefinement, map[string]interface{}{"executed": false})

	snap := res.Snapshot()
	if _, ok := snap["refinement"]; !ok {
		t.Fatalf("snapshot keys: %+v", snap)
	}
}
