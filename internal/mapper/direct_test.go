package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/xrefmap/internal/emit"
	"github.com/inodb/xrefmap/internal/xrefdb"
)

func newDirectContext() *Context {
	ctx := newTestContext()
	ctx.SourceNames[3] = "CCDS"
	ctx.ExternalDB[3] = 2700
	ctx.StableIDs[Gene] = map[string]int64{"G-001": 11}
	ctx.StableIDs[Transcript] = map[string]int64{"T-001": 401}
	ctx.StableIDs[Translation] = map[string]int64{"P-001": 501}
	ctx.TranscriptStableTranslation = map[string]string{"T-001": "P-001"}
	return ctx
}

// CCDS direct xrefs on transcripts land on the owning translation.
func TestDirect_CCDSRetargeting(t *testing.T) {
	ctx := newDirectContext()
	ctx.XrefSource[30] = 3

	store := &fakeXrefStore{
		directs: []xrefdb.Direct{{
			StableID:   "T-001",
			ObjectType: "transcript",
			Xref:       xrefdb.Xref{ID: 30, Accession: "CCDS100.1", SourceID: 3},
		}},
	}

	files, dir := newTestFiles(t)
	require.NoError(t, NewPropagator(ctx, files, store).Run())
	require.NoError(t, files.Close())

	objectXrefs := readLines(t, dir, emit.ObjectXrefFile)
	require.Len(t, objectXrefs, 1)
	assert.Equal(t, "1\t501\tTranslation\t31", objectXrefs[0])

	// The retargeted translation's pool sees the xref.
	assert.Equal(t, []int64{30}, ctx.Mappings[ObjectKey{Type: Translation, ID: 501}])
}

// A CCDS xref on a transcript without a translation is dropped entirely.
func TestDirect_CCDSWithoutTranslationDropped(t *testing.T) {
	ctx := newDirectContext()
	ctx.XrefSource[30] = 3
	ctx.TranscriptStableTranslation = map[string]string{}

	store := &fakeXrefStore{
		directs: []xrefdb.Direct{{
			StableID:   "T-001",
			ObjectType: "transcript",
			Xref:       xrefdb.Xref{ID: 30, Accession: "CCDS100.1", SourceID: 3},
		}},
	}

	files, dir := newTestFiles(t)
	require.NoError(t, NewPropagator(ctx, files, store).Run())
	require.NoError(t, files.Close())

	assert.Empty(t, readLines(t, dir, emit.ObjectXrefFile))
	assert.Empty(t, readLines(t, dir, emit.XrefFile))
}

// Unknown stable ids retry with the ".1"–".4" version suffixes.
func TestDirect_StableIDSuffixFallback(t *testing.T) {
	ctx := newDirectContext()
	ctx.XrefSource[31] = 1
	ctx.StableIDs[Gene] = map[string]int64{"G-002.3": 12}

	store := &fakeXrefStore{
		directs: []xrefdb.Direct{{
			StableID:   "G-002",
			ObjectType: "Gene",
			Xref:       xrefdb.Xref{ID: 31, Accession: "ZDB-GENE-1", SourceID: 1},
		}},
	}

	files, dir := newTestFiles(t)
	require.NoError(t, NewPropagator(ctx, files, store).Run())
	require.NoError(t, files.Close())

	objectXrefs := readLines(t, dir, emit.ObjectXrefFile)
	require.Len(t, objectXrefs, 1)
	assert.Equal(t, "1\t12\tGene\t32", objectXrefs[0])
}

// A stable id that resolves nowhere is a warning, not an error.
func TestDirect_UnresolvedStableIDSkipped(t *testing.T) {
	ctx := newDirectContext()
	ctx.XrefSource[31] = 1

	store := &fakeXrefStore{
		directs: []xrefdb.Direct{{
			StableID:   "G-999",
			ObjectType: "gene",
			Xref:       xrefdb.Xref{ID: 31, Accession: "ZDB-GENE-1", SourceID: 1},
		}},
	}

	files, dir := newTestFiles(t)
	require.NoError(t, NewPropagator(ctx, files, store).Run())
	require.NoError(t, files.Close())

	assert.Empty(t, readLines(t, dir, emit.ObjectXrefFile))
}

// The stored object type is capitalized on emission.
func TestDirect_ObjectTypeCapitalized(t *testing.T) {
	ctx := newDirectContext()
	ctx.XrefSource[31] = 1

	store := &fakeXrefStore{
		directs: []xrefdb.Direct{{
			StableID:   "G-001",
			ObjectType: "gene",
			Xref:       xrefdb.Xref{ID: 31, Accession: "ZDB-GENE-1", SourceID: 1},
		}},
	}

	files, dir := newTestFiles(t)
	require.NoError(t, NewPropagator(ctx, files, store).Run())
	require.NoError(t, files.Close())

	objectXrefs := readLines(t, dir, emit.ObjectXrefFile)
	require.Len(t, objectXrefs, 1)
	assert.Contains(t, objectXrefs[0], "\tGene\t")
}

// Direct xrefs join the object's mapping pool, so downstream display and
// description selection can see them.
func TestDirect_JoinsMappingIndex(t *testing.T) {
	ctx := newDirectContext()
	ctx.XrefSource[31] = 1

	store := &fakeXrefStore{
		directs: []xrefdb.Direct{{
			StableID:   "T-001",
			ObjectType: "Transcript",
			Xref:       xrefdb.Xref{ID: 31, Accession: "ZDB-GENE-1", SourceID: 1},
		}},
	}

	files, _ := newTestFiles(t)
	require.NoError(t, NewPropagator(ctx, files, store).Run())
	require.NoError(t, files.Close())

	assert.Equal(t, []int64{31}, ctx.Mappings[ObjectKey{Type: Transcript, ID: 401}])
}
