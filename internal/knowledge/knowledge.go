package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
)

// Complex is one curated protein-ligand entry in the local lookup library.
type Complex struct {
	PDBID        string  `json:"pdb_id"`
	Target       string  `json:"target"`
	Family       string  `json:"family"`
	Ligand       string  `json:"ligand"`
	AffinityKcal float64 `json:"affinity_kcal"`
	Notes        string  `json:"notes"`
}

// Hit is one search result, best first.
type Hit struct {
	PDBID   string  `json:"pdb_id"`
	Target  string  `json:"target"`
	Family  string  `json:"family"`
	Ligand  string  `json:"ligand"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// Library is the in-process knowledge base behind the knowledge tools: a
// BM25 index over curated complexes plus per-family interaction notes. It is
// small enough to live entirely in memory and rebuilt at startup.
type Library struct {
	index    bleve.Index
	mu       sync.RWMutex
	meta     map[string]Complex
	families map[string][]string
}

// NewLibrary builds a library preloaded with the curated seed data.
func NewLibrary() (*Library, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("knowledge index: %w", err)
	}
	lib := &Library{
		index:    index,
		meta:     make(map[string]Complex),
		families: make(map[string][]string),
	}
	for _, c := range SeedComplexes() {
		if err := lib.Add(c); err != nil {
			return nil, err
		}
	}
	for family, notes := range seedFamilies() {
		lib.families[family] = notes
	}
	return lib, nil
}

// Add indexes one complex. Entries are keyed by lower-cased PDB id, so
// re-adding an id overwrites the previous entry.
func (l *Library) Add(c Complex) error {
	if strings.TrimSpace(c.PDBID) == "" {
		return fmt.Errorf("add complex: empty pdb id")
	}
	id := strings.ToLower(c.PDBID)
	l.mu.Lock()
	l.meta[id] = c
	l.mu.Unlock()
	return l.index.Index(id, c)
}

// Search runs a query-string search over the indexed complexes and returns
// at most k hits, best first.
func (l *Library) Search(q string, k int) ([]Hit, error) {
	if k < 1 {
		k = 1
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := l.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("knowledge search %q: %w", q, err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Hit
	for i, hit := range res.Hits {
		doc := l.meta[hit.ID]
		out = append(out, Hit{
			PDBID: doc.PDBID, Target: doc.Target, Family: doc.Family, Ligand: doc.Ligand,
			Snippet: snippet(doc.Notes),
			Score:   hit.Score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// FamilyInteractions returns the critical interaction notes for a protein
// family. Lookup is case-insensitive and tolerates qualified names such as
// "EGFR kinase domain" by substring match against the known families.
func (l *Library) FamilyInteractions(family string) ([]string, bool) {
	key := strings.ToLower(strings.TrimSpace(family))
	if key == "" {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if notes, ok := l.families[key]; ok {
		return notes, true
	}
	for fam, notes := range l.families {
		if strings.Contains(key, fam) {
			return notes, true
		}
	}
	return nil, false
}

// Families returns the known family names sorted alphabetically.
func (l *Library) Families() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.families))
	for fam := range l.families {
		out = append(out, fam)
	}
	sort.Strings(out)
	return out
}

// SeedComplexes returns the curated demo complexes the library starts with.
func SeedComplexes() []Complex {
	return []Complex{
		{
			PDBID: "6gfs", Target: "Beta-Lactoglobulin", Family: "lipocalin",
			Ligand: "palmitic acid", AffinityKcal: -7.2,
			Notes: "Lipocalin beta-barrel binding fatty acids inside the central calyx. " +
				"Productive poses bury the aliphatic tail deep in the calyx with the " +
				"carboxylate head group near Lys69 at the rim.",
		},
		{
			PDBID: "1iep", Target: "Abl Kinase Domain", Family: "kinase",
			Ligand: "imatinib", AffinityKcal: -11.4,
			Notes: "Type II inhibitor bound to the DFG-out conformation. Hinge hydrogen " +
				"bond to Met318 plus a buried contact with the Thr315 gatekeeper; the " +
				"piperazine tail reaches solvent.",
		},
		{
			PDBID: "8aw3", Target: "EGFR Kinase Domain", Family: "kinase",
			Ligand: "osimertinib", AffinityKcal: -10.1,
			Notes: "ATP-competitive quinazoline scaffold. Hinge hydrogen bond to Met793 " +
				"and a covalent-capable vector toward Cys797 at the lip of the pocket.",
		},
		{
			PDBID: "3poz", Target: "JAK2 Kinase Domain", Family: "kinase",
			Ligand: "ruxolitinib", AffinityKcal: -9.8,
			Notes: "Type I binder in the DFG-in state. Dual hinge hydrogen bonds and a " +
				"small hydrophobic back pocket behind the gatekeeper limit bulky " +
				"substituents.",
		},
		{
			PDBID: "2hyy", Target: "EGFR with Gefitinib", Family: "kinase",
			Ligand: "gefitinib", AffinityKcal: -9.5,
			Notes: "Anilinoquinazoline in the ATP site. Hinge hydrogen bond to Met793; " +
				"the aniline ring stacks against the gatekeeper and the morpholine tail " +
				"sits at the solvent front.",
		},
		{
			PDBID: "4yne", Target: "ALK Kinase Domain", Family: "kinase",
			Ligand: "crizotinib", AffinityKcal: -10.6,
			Notes: "Aminopyridine core with hinge hydrogen bonds to Met1199. Halogenated " +
				"phenyl ring packs under the glycine-rich loop; L1196M gatekeeper " +
				"mutation weakens this pose.",
		},
	}
}

func seedFamilies() map[string][]string {
	return map[string][]string{
		"kinase": {
			"One or two hydrogen bonds to the hinge backbone are required for ATP-competitive binders",
			"Occupying the hydrophobic back pocket behind the gatekeeper residue improves selectivity",
			"DFG-in favors type I binders; DFG-out opens the allosteric pocket for type II binders",
			"The glycine-rich loop closes over the ligand and penalizes bulky solvent-front groups",
		},
		"gpcr": {
			"Orthosteric binders anchor through a salt bridge to the conserved Asp3.32",
			"Aromatic stacking with the rotamer toggle switch Trp6.48 stabilizes the inactive state",
			"Extracellular loop 2 gates pocket access and shapes ligand residence time",
		},
		"protease": {
			"Occupying the S1 specificity pocket dominates affinity",
			"Warheads or transition-state mimics engage the catalytic residues directly",
			"Backbone hydrogen bonds along the substrate groove mimic the natural peptide",
		},
		"lipocalin": {
			"The hydrophobic calyx binds aliphatic tails; polar head groups exit at the rim",
			"Lys69 at the calyx entrance anchors carboxylate head groups",
			"The EF loop lid opens at low pH and releases bound lipids",
		},
	}
}

// snippet trims long note text for result payloads.
func snippet(s string) string {
	const max = 300
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
