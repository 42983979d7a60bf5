// Package rules translates the per-species mapping rule table into SQL
// predicates that select the primary xrefs each alignment method should see.
package rules

import (
	"fmt"
	"sort"
	"strings"
)

// Wildcard matches any species or source name in a rule pair.
const Wildcard = "*"

// Pair restricts a rule to xrefs of one species/source combination.
// Either side may be the wildcard.
type Pair struct {
	Species string `yaml:"species"`
	Source  string `yaml:"source"`
}

// Rule binds an alignment method to the xref subsets it aligns.
type Rule struct {
	Method string `yaml:"method"`
	Pairs  []Pair `yaml:"pairs"`
}

// SequenceKind is the primary-xref sequence type a predicate selects.
type SequenceKind string

const (
	DNA     SequenceKind = "dna"
	Peptide SequenceKind = "peptide"
)

// Predicate is the WHERE fragment for one (rule, sequence kind) dump query.
// An empty Where means "fetch everything of that kind".
type Predicate struct {
	Kind  SequenceKind
	Where string
}

// Predicates expands a rule into its dna and peptide predicates. Species and
// source names are resolved against the given name→id maps; an unknown name
// is a configuration error listing the valid names.
func Predicates(r Rule, speciesIDs, sourceIDs map[string]int64) ([2]Predicate, error) {
	var out [2]Predicate

	clause, err := pairClause(r.Pairs, speciesIDs, sourceIDs)
	if err != nil {
		return out, fmt.Errorf("rule %s: %w", r.Method, err)
	}

	for i, kind := range []SequenceKind{DNA, Peptide} {
		where := fmt.Sprintf("primary_xref.sequence_type = '%s'", kind)
		if clause != "" {
			where += " AND ( " + clause + " )"
		} else {
			// All pairs were fully wildcarded: no restriction at all.
			where = ""
		}
		out[i] = Predicate{Kind: kind, Where: where}
	}

	return out, nil
}

// pairClause builds the OR-joined species/source restriction. Fully
// wildcarded pairs contribute nothing; if every pair is wildcarded the
// clause is empty.
func pairClause(pairs []Pair, speciesIDs, sourceIDs map[string]int64) (string, error) {
	var terms []string

	for _, p := range pairs {
		var conds []string

		if p.Species != Wildcard {
			id, ok := speciesIDs[p.Species]
			if !ok {
				return "", fmt.Errorf("unknown species %q, valid names: %s",
					p.Species, knownNames(speciesIDs))
			}
			conds = append(conds, fmt.Sprintf("species_id = %d", id))
		}

		if p.Source != Wildcard {
			id, ok := sourceIDs[p.Source]
			if !ok {
				return "", fmt.Errorf("unknown source %q, valid names: %s",
					p.Source, knownNames(sourceIDs))
			}
			conds = append(conds, fmt.Sprintf("source_id = %d", id))
		}

		if len(conds) == 0 {
			continue
		}
		terms = append(terms, "("+strings.Join(conds, " AND ")+")")
	}

	return strings.Join(terms, " OR "), nil
}

func knownNames(ids map[string]int64) string {
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
