package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSpecies = map[string]int64{"danio_rerio": 7955, "homo_sapiens": 9606}
	testSources = map[string]int64{"ZFIN": 3, "Uniprot/SWISSPROT": 11}
)

func TestPredicates_SpeciesAndSource(t *testing.T) {
	r := Rule{
		Method: "ExonerateGappedBest1",
		Pairs:  []Pair{{Species: "danio_rerio", Source: "ZFIN"}},
	}

	preds, err := Predicates(r, testSpecies, testSources)
	require.NoError(t, err)

	assert.Equal(t, DNA, preds[0].Kind)
	assert.Equal(t,
		"primary_xref.sequence_type = 'dna' AND ( (species_id = 7955 AND source_id = 3) )",
		preds[0].Where)
	assert.Equal(t, Peptide, preds[1].Kind)
	assert.Equal(t,
		"primary_xref.sequence_type = 'peptide' AND ( (species_id = 7955 AND source_id = 3) )",
		preds[1].Where)
}

func TestPredicates_WildcardSource(t *testing.T) {
	r := Rule{
		Method: "ExonerateGappedBest1",
		Pairs: []Pair{
			{Species: "danio_rerio", Source: "ZFIN"},
			{Species: "homo_sapiens", Source: Wildcard},
		},
	}

	preds, err := Predicates(r, testSpecies, testSources)
	require.NoError(t, err)
	assert.Equal(t,
		"primary_xref.sequence_type = 'dna' AND ( (species_id = 7955 AND source_id = 3) OR (species_id = 9606) )",
		preds[0].Where)
}

func TestPredicates_AllWildcard(t *testing.T) {
	r := Rule{
		Method: "ExonerateGappedBest5",
		Pairs:  []Pair{{Species: Wildcard, Source: Wildcard}},
	}

	preds, err := Predicates(r, testSpecies, testSources)
	require.NoError(t, err)

	// Fully wildcarded rules fetch everything: no predicate at all.
	assert.Empty(t, preds[0].Where)
	assert.Empty(t, preds[1].Where)
}

func TestPredicates_UnknownSpeciesIsFatal(t *testing.T) {
	r := Rule{
		Method: "ExonerateGappedBest1",
		Pairs:  []Pair{{Species: "mus_musculus", Source: "ZFIN"}},
	}

	_, err := Predicates(r, testSpecies, testSources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mus_musculus")
	// The error enumerates the valid names so the config can be fixed.
	assert.Contains(t, err.Error(), "danio_rerio")
	assert.Contains(t, err.Error(), "homo_sapiens")
}

func TestPredicates_UnknownSourceIsFatal(t *testing.T) {
	r := Rule{
		Method: "ExonerateGappedBest1",
		Pairs:  []Pair{{Species: "danio_rerio", Source: "HGNC"}},
	}

	_, err := Predicates(r, testSpecies, testSources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HGNC")
	assert.Contains(t, err.Error(), "ZFIN")
}
