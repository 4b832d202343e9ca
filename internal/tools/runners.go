// Package tools provides the stock runner table: deterministic simulators for
// the docking, scoring, validation and refinement tools plus knowledge
// lookups. The simulators reproduce the shapes and observation lines of the
// real executors without touching a GPU, so a full session runs anywhere.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/dockagent/internal/agent/core"
	"github.com/mohammad-safakhou/dockagent/internal/capability"
	"github.com/mohammad-safakhou/dockagent/internal/executor"
	"github.com/mohammad-safakhou/dockagent/internal/knowledge"
)

// Runners assembles the runner table for the stock catalog. compare_to_known
// and short_md are deliberately absent: invoking them yields the invoker's
// "not yet implemented" observation.
func Runners(lib *knowledge.Library) map[string]executor.Runner {
	return map[string]executor.Runner{
		"diffdock":                 Diffdock,
		"vina":                     Vina,
		"detailed_scoring":         DetailedScoring,
		"validate_pose":            ValidatePose,
		"minimize_pose":            MinimizePose,
		"search_pdb":               SearchPDB(lib),
		"check_known_interactions": CheckKnownInteractions(lib),
	}
}

// Diffdock simulates ML docking: num_poses poses with descending confidence,
// stable for a given protein/ligand pair.
func Diffdock(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error) {
	numPoses := intParam(call.Parameters, "num_poses", 40)
	if numPoses < 1 {
		numPoses = 1
	}
	rng := rngFor("diffdock", call.ProteinPDB, call.LigandSDF)

	outputDir := fmt.Sprintf("results/agent_diffdock/%08x", uint32(seedFor(call.ProteinPDB, call.LigandSDF)))
	poses := make([]map[string]interface{}, 0, numPoses)
	confidence := 0.82 + rng.Float64()*0.15
	for rank := 1; rank <= numPoses; rank++ {
		poses = append(poses, map[string]interface{}{
			"rank":       rank,
			"file_path":  fmt.Sprintf("%s/rank%d.sdf", outputDir, rank),
			"confidence": round2(confidence),
		})
		confidence -= 0.01 + rng.Float64()*0.03
		if confidence < 0.05 {
			confidence = 0.05
		}
	}
	top := poses[0]["confidence"].(float64)

	return core.ToolOutcome{
		Observation: fmt.Sprintf("Generated %d poses. Top pose confidence: %.2f", numPoses, top),
		Data: map[string]interface{}{
			"num_poses":      numPoses,
			"poses":          poses,
			"top_confidence": top,
			"output_dir":     outputDir,
		},
	}, nil
}

// Vina simulates physics-based docking. Affinities are kcal/mol, ascending
// (weakening) with rank; higher exhaustiveness digs out a better top pose.
func Vina(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error) {
	numModes := intParam(call.Parameters, "num_modes", 20)
	if numModes < 1 {
		numModes = 1
	}
	exhaustiveness := intParam(call.Parameters, "exhaustiveness", 8)
	if exhaustiveness < 1 {
		exhaustiveness = 1
	}
	rng := rngFor("vina", call.ProteinPDB, call.LigandSDF, fmt.Sprintf("exhaustiveness=%d", exhaustiveness))

	outputDir := fmt.Sprintf("results/agent_vina/%08x", uint32(seedFor(call.ProteinPDB, call.LigandSDF, "vina")))
	base := -8.2 - clampFloat(float64(exhaustiveness), 1, 32)/8.0 - rng.Float64()*1.2
	poses := make([]map[string]interface{}, 0, numModes)
	for rank := 1; rank <= numModes; rank++ {
		affinity := base + float64(rank-1)*0.35 + rng.Float64()*0.1
		poses = append(poses, map[string]interface{}{
			"rank":      rank,
			"affinity":  round2(affinity),
			"file_path": fmt.Sprintf("%s/mode%d.pdbqt", outputDir, rank),
		})
	}
	top := poses[0]["affinity"].(float64)

	return core.ToolOutcome{
		Observation: fmt.Sprintf("Vina generated %d poses. Top affinity: %.2f kcal/mol", numModes, top),
		Data: map[string]interface{}{
			"num_poses":    numModes,
			"poses":        poses,
			"top_affinity": top,
			"output_dir":   outputDir,
			"method":       "vina",
		},
	}, nil
}

// DetailedScoring scores the accumulated docking poses: per-pose interaction
// counts plus a weighted composite. Needs docking results upstream.
func DetailedScoring(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error) {
	docking, ok := call.Results.Get(capability.CategoryDocking)
	if !ok {
		return core.ToolOutcome{Observation: "Error: No poses to score"}, nil
	}
	poses := posesFrom(docking)
	if len(poses) == 0 {
		return core.ToolOutcome{Observation: "Error: No poses to score"}, nil
	}

	rng := rngFor("detailed_scoring", call.ProteinPDB, call.LigandSDF)
	scores := make([]map[string]interface{}, 0, len(poses))
	bestScore := 0.0
	bestRank, bestHbonds, bestContacts := 0, 0, 0
	for i, pose := range poses {
		rank := intField(pose, "rank", i+1)
		hbonds := clampInt(4-rank/8+rng.Intn(3), 0, 6)
		contacts := clampInt(55-rank+rng.Intn(12), 8, 80)
		hydrophobic := clampInt(30-rank/2+rng.Intn(10), 3, 50)
		shape := clampFloat(0.85-float64(rank)*0.01+rng.Float64()*0.08-0.04, 0.2, 0.95)
		lipinski := 0
		if rng.Intn(10) == 0 {
			lipinski = 1
		}

		// Composite weights: H-bonds 2.0, hydrophobic 1.0 per 10, contacts
		// 0.5 per 20, shape 1.5 x10, Lipinski violations -2.0 each.
		composite := 2.0*float64(hbonds) +
			1.0*float64(hydrophobic)/10.0 +
			0.5*float64(contacts)/20.0 +
			1.5*shape*10 -
			2.0*float64(lipinski)

		scores = append(scores, map[string]interface{}{
			"rank":                  rank,
			"num_hbonds":            hbonds,
			"num_contacts":          contacts,
			"num_hydrophobic":       hydrophobic,
			"shape_complementarity": round2(shape),
			"lipinski_violations":   lipinski,
			"diffdock_confidence":   floatField(pose, "confidence", 0),
			"composite_score":       round2(composite),
		})
		if bestRank == 0 || composite > bestScore {
			bestScore = composite
			bestRank, bestHbonds, bestContacts = rank, hbonds, contacts
		}
	}

	return core.ToolOutcome{
		Observation: fmt.Sprintf("Scored %d poses. Top composite score: %.2f", len(scores), bestScore),
		Data: map[string]interface{}{
			"scores":           scores,
			"best_score":       round2(bestScore),
			"top_pose_summary": fmt.Sprintf("Rank %d: %d H-bonds, %d contacts", bestRank, bestHbonds, bestContacts),
		},
	}, nil
}

// ValidatePose checks the top accumulated pose for physical sanity. Needs
// docking results upstream.
func ValidatePose(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error) {
	docking, ok := call.Results.Get(capability.CategoryDocking)
	if !ok {
		return core.ToolOutcome{Observation: "Error: No pose to validate"}, nil
	}
	if len(posesFrom(docking)) == 0 {
		return core.ToolOutcome{Observation: "Error: No pose to validate"}, nil
	}

	rng := rngFor("validate_pose", call.ProteinPDB, call.LigandSDF)
	minDist := 0.7 + rng.Float64()
	mw := 280 + rng.Float64()*360
	logp := 1.2 + rng.Float64()*5.4

	var issues []string
	if minDist < 0.8 {
		issues = append(issues, "atomic_clash")
	}
	if mw > 600 {
		issues = append(issues, "high_molecular_weight")
	}
	if logp > 6 {
		issues = append(issues, "high_logp")
	}

	var status, summary string
	switch {
	case len(issues) == 0:
		status = "excellent"
		summary = "Pose passes all validation checks"
	case len(issues) <= 2:
		status = "acceptable"
		summary = fmt.Sprintf("Minor issues: %s", strings.Join(issues, ", "))
	default:
		status = "problematic"
		summary = fmt.Sprintf("Multiple issues found: %s", strings.Join(issues, ", "))
	}

	return core.ToolOutcome{
		Observation: fmt.Sprintf("Validation: %s. %s", status, summary),
		Data: map[string]interface{}{
			"status":           status,
			"summary":          summary,
			"issues":           issues,
			"min_distance":     round2(minDist),
			"molecular_weight": round2(mw),
			"logp":             round2(logp),
		},
	}, nil
}

// MinimizePose relaxes the top accumulated pose under a force field and
// reports the energy delta. Needs docking results upstream.
func MinimizePose(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error) {
	docking, ok := call.Results.Get(capability.CategoryDocking)
	if !ok {
		return core.ToolOutcome{Observation: "Error: No pose to minimize"}, nil
	}
	poses := posesFrom(docking)
	if len(poses) == 0 {
		return core.ToolOutcome{Observation: "Error: No pose to minimize"}, nil
	}

	forceField := stringParam(call.Parameters, "force_field", "MMFF94")
	rng := rngFor("minimize_pose", call.ProteinPDB, call.LigandSDF, forceField)
	rank := intField(poses[0], "rank", 1)
	initial := 40 + rng.Float64()*120
	delta := 8 + rng.Float64()*30
	rmsd := 0.2 + rng.Float64()*0.8

	return core.ToolOutcome{
		Observation: fmt.Sprintf("Minimized rank %d pose with %s: energy delta %.2f kcal/mol, RMSD shift %.2f A",
			rank, forceField, -delta, rmsd),
		Data: map[string]interface{}{
			"pose_rank":      rank,
			"force_field":    forceField,
			"initial_energy": round2(initial),
			"final_energy":   round2(initial - delta),
			"energy_delta":   round2(-delta),
			"rmsd_change":    round2(rmsd),
		},
	}, nil
}

// SearchPDB returns a runner that looks up similar complexes in lib.
func SearchPDB(lib *knowledge.Library) executor.Runner {
	return func(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error) {
		var parts []string
		if name := stringParam(call.Parameters, "protein_name", ""); name != "" {
			parts = append(parts, name)
		}
		if name := stringParam(call.Parameters, "ligand_name", ""); name != "" {
			parts = append(parts, name)
		}
		query := strings.Join(parts, " ")
		if query == "" {
			return core.ToolOutcome{Observation: "Error: search_pdb requires protein_name"}, nil
		}

		hits, err := lib.Search(query, 5)
		if err != nil {
			return core.ToolOutcome{}, err
		}
		if len(hits) == 0 {
			return core.ToolOutcome{
				Observation: fmt.Sprintf("No known complexes match %q", query),
				Data: map[string]interface{}{
					"query":       query,
					"num_matches": 0,
					"matches":     []map[string]interface{}{},
				},
			}, nil
		}

		matches := make([]map[string]interface{}, 0, len(hits))
		for _, h := range hits {
			matches = append(matches, map[string]interface{}{
				"pdb_id":  h.PDBID,
				"target":  h.Target,
				"family":  h.Family,
				"ligand":  h.Ligand,
				"snippet": h.Snippet,
			})
		}
		top := hits[0]
		return core.ToolOutcome{
			Observation: fmt.Sprintf("Found %d known complexes for %q. Top match: %s (%s, %s)",
				len(hits), query, top.PDBID, top.Target, top.Ligand),
			Data: map[string]interface{}{
				"query":       query,
				"num_matches": len(hits),
				"matches":     matches,
				"top_match":   top.PDBID,
			},
		}, nil
	}
}

// CheckKnownInteractions returns a runner that reports the critical
// interaction motifs recorded for a protein family.
func CheckKnownInteractions(lib *knowledge.Library) executor.Runner {
	return func(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error) {
		family := stringParam(call.Parameters, "protein_family", "")
		if family == "" {
			return core.ToolOutcome{Observation: "Error: check_known_interactions requires protein_family"}, nil
		}
		notes, ok := lib.FamilyInteractions(family)
		if !ok {
			return core.ToolOutcome{Observation: fmt.Sprintf(
				"Error: No interaction data for family %q (known families: %s)",
				family, strings.Join(lib.Families(), ", "))}, nil
		}
		return core.ToolOutcome{
			Observation: fmt.Sprintf("Found %d known critical interactions for %s. Key: %s",
				len(notes), family, notes[0]),
			Data: map[string]interface{}{
				"family":           family,
				"interactions":     notes,
				"num_interactions": len(notes),
			},
		}, nil
	}
}
