package capability

// Defaults returns the stock tool catalog. Invocation handles live in the
// executor's runner table; the registry only carries metadata.
func Defaults() []Tool {
	return []Tool{
		{
			Name:        "diffdock",
			Description: "ML-based molecular docking. Fast, generates 40 poses. Best for initial screening.",
			Category:    CategoryDocking,
			Parameters: map[string]string{
				"protein_pdb": "str - path to protein PDB file",
				"ligand_sdf":  "str - path to ligand SDF file or SMILES",
				"num_poses":   "int - number of poses to generate (default: 40)",
			},
			EstimatedTime: 180.0,
			RequiresGPU:   true,
		},
		{
			Name:        "vina",
			Description: "Physics-based docking with AutoDock Vina. Slower but rigorous. Use for validation or when DiffDock results are uncertain.",
			Category:    CategoryDocking,
			Parameters: map[string]string{
				"protein_pdb":    "str - protein PDB",
				"ligand_sdf":     "str - ligand SDF",
				"exhaustiveness": "int - search effort (default: 8)",
			},
			EstimatedTime: 600.0,
		},
		{
			Name:        "detailed_scoring",
			Description: "Calculate H-bonds, contacts, shape complementarity, drug-likeness.",
			Category:    CategoryScoring,
			Parameters: map[string]string{
				"protein_pdb":       "str - protein structure",
				"ligand_sdf":        "str - ligand pose",
				"include_solvation": "bool - include solvation effects (default: False)",
			},
			EstimatedTime: 5.0,
		},
		{
			Name:        "validate_pose",
			Description: "Check if pose is physically reasonable (no clashes, proper geometry).",
			Category:    CategoryValidation,
			Parameters: map[string]string{
				"protein_pdb": "str - protein",
				"ligand_sdf":  "str - pose to validate",
			},
			EstimatedTime: 2.0,
		},
		{
			Name:        "compare_to_known",
			Description: "Compare pose to known crystal structures (if available).",
			Category:    CategoryValidation,
			Parameters: map[string]string{
				"ligand_sdf":    "str - predicted pose",
				"reference_pdb": "str - known structure",
			},
			EstimatedTime: 1.0,
		},
		{
			Name:        "minimize_pose",
			Description: "Energy minimize the pose to relax geometry.",
			Category:    CategoryRefinement,
			Parameters: map[string]string{
				"protein_pdb": "str - protein",
				"ligand_sdf":  "str - pose",
				"force_field": "str - MMFF94 or UFF (default: MMFF94)",
			},
			EstimatedTime: 10.0,
		},
		{
			Name:        "short_md",
			Description: "Run short MD simulation (1-5ns) to check stability.",
			Category:    CategoryRefinement,
			Parameters: map[string]string{
				"protein_pdb": "str - protein",
				"ligand_sdf":  "str - pose",
				"time_ns":     "float - simulation time (default: 1.0)",
			},
			EstimatedTime: 300.0,
			RequiresGPU:   true,
		},
		{
			Name:        "search_pdb",
			Description: "Search PDB for similar protein-ligand complexes.",
			Category:    CategoryKnowledge,
			Parameters: map[string]string{
				"protein_name": "str - protein name or PDB ID",
				"ligand_name":  "str - ligand name (optional)",
			},
			EstimatedTime: 5.0,
		},
		{
			Name:        "check_known_interactions",
			Description: "Look up known critical interactions for this protein family.",
			Category:    CategoryKnowledge,
			Parameters: map[string]string{
				"protein_family": "str - e.g., 'kinase', 'GPCR', 'protease'",
			},
			EstimatedTime: 2.0,
		},
	}
}
