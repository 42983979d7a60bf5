package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/inodb/xrefmap/internal/rules"
)

// Species holds the per-species mapping knobs. A zero Consortium means the
// species has no authoritative naming body.
type Species struct {
	// Alignment rules, in dump order.
	Rules []rules.Rule `yaml:"rules"`

	// Display-xref source names, highest priority first.
	DisplaySources []string `yaml:"display_sources"`

	// Case-insensitive regexes deleted from gene descriptions.
	DescriptionFilters []string `yaml:"description_filters"`

	// Consortium source name, e.g. ZFIN_ID for zebrafish.
	Consortium string `yaml:"consortium"`
}

// defaultRules is the rule set species inherit unless they override it:
// one strict best-in-genome pass over everything.
var defaultRules = []rules.Rule{
	{
		Method: "ExonerateGappedBest1",
		Pairs:  []rules.Pair{{Species: rules.Wildcard, Source: rules.Wildcard}},
	},
}

var defaultDisplaySources = []string{
	"HGNC",
	"MGI",
	"ZFIN_ID",
	"RefSeq_dna",
	"RefSeq_peptide",
	"Uniprot/SWISSPROT",
	"Uniprot/SPTREMBL",
}

var defaultDescriptionFilters = []string{
	`^\(CLONE REM\d+\)\s+`,
	`\s*\(FRAGMENTS?\)`,
	`\s*\(EC [0-9\.\-]+\)`,
	`^\s*\(\d+\)\s*`,
	`\{.+\}`,
}

// builtin species configs, keyed by species name. The "default" entry is the
// fallback for species with no entry of their own.
var builtin = map[string]Species{
	"default": {
		Rules:              defaultRules,
		DisplaySources:     defaultDisplaySources,
		DescriptionFilters: defaultDescriptionFilters,
	},
	"danio_rerio": {
		Rules: []rules.Rule{
			{
				Method: "ExonerateGappedBest1",
				Pairs:  []rules.Pair{{Species: rules.Wildcard, Source: rules.Wildcard}},
			},
			{
				Method: "ExonerateGappedBest5",
				Pairs:  []rules.Pair{{Species: "danio_rerio", Source: "ZFIN"}},
			},
		},
		DisplaySources:     []string{"ZFIN_ID", "RefSeq_dna", "RefSeq_peptide", "Uniprot/SWISSPROT"},
		DescriptionFilters: defaultDescriptionFilters,
		Consortium:         "ZFIN_ID",
	},
	"homo_sapiens": {
		Rules:              defaultRules,
		DisplaySources:     []string{"HGNC", "RefSeq_dna", "RefSeq_peptide", "Uniprot/SWISSPROT", "Uniprot/SPTREMBL"},
		DescriptionFilters: defaultDescriptionFilters,
	},
}

// BuiltinSpecies lists the packaged species entries in sorted order.
func BuiltinSpecies() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveSpecies returns the configuration for the named species. A YAML file
// at path, if given, overrides the packaged defaults; otherwise the builtin
// table is consulted, falling back to the "default" entry. The bool reports
// whether the species had its own entry (false means the fallback was used).
func ResolveSpecies(species, path string) (Species, bool, error) {
	table := builtin
	if path != "" {
		loaded, err := loadSpeciesFile(path)
		if err != nil {
			return Species{}, false, err
		}
		table = loaded
	}

	if sc, ok := table[species]; ok {
		return withDefaults(sc), true, nil
	}
	if sc, ok := table["default"]; ok {
		return withDefaults(sc), false, nil
	}
	return Species{}, false, fmt.Errorf("no configuration for species %q and no default entry", species)
}

// withDefaults fills empty sections from the packaged defaults so a species
// entry can override only the parts it cares about.
func withDefaults(sc Species) Species {
	if len(sc.Rules) == 0 {
		sc.Rules = defaultRules
	}
	if len(sc.DisplaySources) == 0 {
		sc.DisplaySources = defaultDisplaySources
	}
	if len(sc.DescriptionFilters) == 0 {
		sc.DescriptionFilters = defaultDescriptionFilters
	}
	return sc
}

func loadSpeciesFile(path string) (map[string]Species, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read species config: %w", err)
	}

	var table map[string]Species
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse species config %s: %w", path, err)
	}
	return table, nil
}
