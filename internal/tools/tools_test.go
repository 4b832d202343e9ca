package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/dockagent/internal/agent/core"
	"github.com/mohammad-safakhou/dockagent/internal/capability"
	"github.com/mohammad-safakhou/dockagent/internal/knowledge"
)

func testLibrary(t *testing.T) *knowledge.Library {
	t.Helper()
	lib, err := knowledge.NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	return lib
}

func dockingCall(t *testing.T, params map[string]interface{}) core.ToolCall {
	t.Helper()
	call := core.ToolCall{
		Parameters: params,
		ProteinPDB: "receptors/1iep.pdb",
		LigandSDF:  "ligands/imatinib.sdf",
		Results:    core.NewResults(),
	}
	outcome, err := Diffdock(context.Background(), call)
	if err != nil {
		t.Fatalf("Diffdock: %v", err)
	}
	call.Results.Set(capability.CategoryDocking, outcome.Data)
	return call
}

func TestDiffdockDeterministic(t *testing.T) {
	call := core.ToolCall{
		Parameters: map[string]interface{}{"num_poses": float64(10)},
		ProteinPDB: "receptors/1iep.pdb",
		LigandSDF:  "ligands/imatinib.sdf",
		Results:    core.NewResults(),
	}

	first, err := Diffdock(context.Background(), call)
	if err != nil {
		t.Fatalf("Diffdock: %v", err)
	}
	second, err := Diffdock(context.Background(), call)
	if err != nil {
		t.Fatalf("Diffdock: %v", err)
	}

	if first.Data["top_confidence"] != second.Data["top_confidence"] {
		t.Fatalf("same inputs produced different confidences: %v vs %v",
			first.Data["top_confidence"], second.Data["top_confidence"])
	}
	if first.Data["num_poses"] != 10 {
		t.Fatalf("num_poses = %v, want 10", first.Data["num_poses"])
	}
	if !strings.HasPrefix(first.Observation, "Generated 10 poses. Top pose confidence: ") {
		t.Fatalf("observation = %q", first.Observation)
	}

	poses := first.Data["poses"].([]map[string]interface{})
	for i := 1; i < len(poses); i++ {
		if poses[i]["confidence"].(float64) > poses[i-1]["confidence"].(float64) {
			t.Fatalf("confidence not descending at rank %d", i+1)
		}
	}
}

func TestVinaAffinitiesAscendWithRank(t *testing.T) {
	call := core.ToolCall{
		Parameters: map[string]interface{}{"num_modes": 9, "exhaustiveness": 8},
		ProteinPDB: "receptors/8aw3.pdb",
		LigandSDF:  "ligands/osimertinib.sdf",
		Results:    core.NewResults(),
	}

	outcome, err := Vina(context.Background(), call)
	if err != nil {
		t.Fatalf("Vina: %v", err)
	}
	if !strings.Contains(outcome.Observation, "kcal/mol") {
		t.Fatalf("observation = %q", outcome.Observation)
	}
	poses := outcome.Data["poses"].([]map[string]interface{})
	if len(poses) != 9 {
		t.Fatalf("got %d poses, want 9", len(poses))
	}
	top := poses[0]["affinity"].(float64)
	if top > -6.0 {
		t.Fatalf("top affinity %.2f too weak for a simulated binder", top)
	}
	for i := 1; i < len(poses); i++ {
		if poses[i]["affinity"].(float64) < poses[i-1]["affinity"].(float64) {
			t.Fatalf("affinity not ascending at rank %d", i+1)
		}
	}
}

func TestDetailedScoringRequiresPoses(t *testing.T) {
	call := core.ToolCall{Parameters: map[string]interface{}{}, Results: core.NewResults()}

	outcome, err := DetailedScoring(context.Background(), call)
	if err != nil {
		t.Fatalf("DetailedScoring: %v", err)
	}
	if outcome.Observation != "Error: No poses to score" {
		t.Fatalf("observation = %q", outcome.Observation)
	}
	if outcome.Data != nil {
		t.Fatalf("expected nil data on soft failure")
	}
}

func TestDetailedScoringScoresAccumulatedPoses(t *testing.T) {
	call := dockingCall(t, map[string]interface{}{"num_poses": 5})

	outcome, err := DetailedScoring(context.Background(), call)
	if err != nil {
		t.Fatalf("DetailedScoring: %v", err)
	}
	if !strings.HasPrefix(outcome.Observation, "Scored 5 poses.") {
		t.Fatalf("observation = %q", outcome.Observation)
	}
	scores := outcome.Data["scores"].([]map[string]interface{})
	if len(scores) != 5 {
		t.Fatalf("scored %d poses, want 5", len(scores))
	}
	summary, _ := outcome.Data["top_pose_summary"].(string)
	if !strings.HasPrefix(summary, "Rank ") || !strings.Contains(summary, "H-bonds") {
		t.Fatalf("top_pose_summary = %q", summary)
	}
	if _, ok := outcome.Data["best_score"].(float64); !ok {
		t.Fatalf("best_score missing: %v", outcome.Data)
	}
}

func TestValidatePoseRequiresPoses(t *testing.T) {
	call := core.ToolCall{Parameters: map[string]interface{}{}, Results: core.NewResults()}

	outcome, err := ValidatePose(context.Background(), call)
	if err != nil {
		t.Fatalf("ValidatePose: %v", err)
	}
	if outcome.Observation != "Error: No pose to validate" {
		t.Fatalf("observation = %q", outcome.Observation)
	}
}

func TestValidatePoseStatusMatchesIssueCount(t *testing.T) {
	call := dockingCall(t, nil)

	outcome, err := ValidatePose(context.Background(), call)
	if err != nil {
		t.Fatalf("ValidatePose: %v", err)
	}
	status, _ := outcome.Data["status"].(string)
	issues, _ := outcome.Data["issues"].([]string)
	switch {
	case len(issues) == 0 && status != "excellent":
		t.Fatalf("0 issues but status %q", status)
	case len(issues) >= 1 && len(issues) <= 2 && status != "acceptable":
		t.Fatalf("%d issues but status %q", len(issues), status)
	case len(issues) > 2 && status != "problematic":
		t.Fatalf("%d issues but status %q", len(issues), status)
	}
	if !strings.HasPrefix(outcome.Observation, "Validation: "+status) {
		t.Fatalf("observation = %q", outcome.Observation)
	}
	for _, key := range []string{"min_distance", "molecular_weight", "logp"} {
		if _, ok := outcome.Data[key].(float64); !ok {
			t.Fatalf("missing %s in %v", key, outcome.Data)
		}
	}
}

func TestMinimizePose(t *testing.T) {
	call := dockingCall(t, nil)

	outcome, err := MinimizePose(context.Background(), call)
	if err != nil {
		t.Fatalf("MinimizePose: %v", err)
	}
	if outcome.Data["force_field"] != "MMFF94" {
		t.Fatalf("force_field = %v, want default MMFF94", outcome.Data["force_field"])
	}
	delta := outcome.Data["energy_delta"].(float64)
	if delta >= 0 {
		t.Fatalf("minimization must lower energy, delta = %.2f", delta)
	}
	initial := outcome.Data["initial_energy"].(float64)
	final := outcome.Data["final_energy"].(float64)
	if final >= initial {
		t.Fatalf("final energy %.2f not below initial %.2f", final, initial)
	}
}

func TestMinimizePoseRequiresPoses(t *testing.T) {
	call := core.ToolCall{Parameters: map[string]interface{}{}, Results: core.NewResults()}
	outcome, err := MinimizePose(context.Background(), call)
	if err != nil {
		t.Fatalf("MinimizePose: %v", err)
	}
	if outcome.Observation != "Error: No pose to minimize" {
		t.Fatalf("observation = %q", outcome.Observation)
	}
}

func TestSearchPDBFindsSeededComplex(t *testing.T) {
	runner := SearchPDB(testLibrary(t))
	call := core.ToolCall{
		Parameters: map[string]interface{}{"protein_name": "Abl kinase", "ligand_name": "imatinib"},
		Results:    core.NewResults(),
	}

	outcome, err := runner(context.Background(), call)
	if err != nil {
		t.Fatalf("SearchPDB: %v", err)
	}
	if !strings.Contains(outcome.Observation, "1iep") {
		t.Fatalf("observation = %q", outcome.Observation)
	}
	if outcome.Data["top_match"] != "1iep" {
		t.Fatalf("top_match = %v", outcome.Data["top_match"])
	}
}

func TestSearchPDBRequiresProteinName(t *testing.T) {
	runner := SearchPDB(testLibrary(t))
	call := core.ToolCall{Parameters: map[string]interface{}{}, Results: core.NewResults()}

	outcome, err := runner(context.Background(), call)
	if err != nil {
		t.Fatalf("SearchPDB: %v", err)
	}
	if !strings.HasPrefix(outcome.Observation, "Error: ") {
		t.Fatalf("observation = %q", outcome.Observation)
	}
}

func TestCheckKnownInteractions(t *testing.T) {
	runner := CheckKnownInteractions(testLibrary(t))
	call := core.ToolCall{
		Parameters: map[string]interface{}{"protein_family": "kinase"},
		Results:    core.NewResults(),
	}

	outcome, err := runner(context.Background(), call)
	if err != nil {
		t.Fatalf("CheckKnownInteractions: %v", err)
	}
	n, _ := outcome.Data["num_interactions"].(int)
	if n < 1 {
		t.Fatalf("num_interactions = %d", n)
	}
	if !strings.Contains(outcome.Observation, "kinase") {
		t.Fatalf("observation = %q", outcome.Observation)
	}
}

func TestCheckKnownInteractionsUnknownFamily(t *testing.T) {
	runner := CheckKnownInteractions(testLibrary(t))
	call := core.ToolCall{
		Parameters: map[string]interface{}{"protein_family": "ion channel"},
		Results:    core.NewResults(),
	}

	outcome, err := runner(context.Background(), call)
	if err != nil {
		t.Fatalf("CheckKnownInteractions: %v", err)
	}
	if !strings.Contains(outcome.Observation, "known families") {
		t.Fatalf("observation = %q", outcome.Observation)
	}
}

func TestRunnersTableMatchesWiredTools(t *testing.T) {
	table := Runners(testLibrary(t))

	wired := []string{
		"diffdock", "vina", "detailed_scoring", "validate_pose",
		"minimize_pose", "search_pdb", "check_known_interactions",
	}
	for _, name := range wired {
		if _, ok := table[name]; !ok {
			t.Fatalf("runner table missing %s", name)
		}
	}
	for _, name := range []string{"compare_to_known", "short_md"} {
		if _, ok := table[name]; ok {
			t.Fatalf("%s must stay unwired", name)
		}
	}
	if len(table) != len(wired) {
		t.Fatalf("runner table has %d entries, want %d", len(table), len(wired))
	}
}
