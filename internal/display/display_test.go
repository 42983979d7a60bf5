package display

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/xrefmap/internal/emit"
	"github.com/inodb/xrefmap/internal/mapper"
)

func newTestContext() *mapper.Context {
	ctx := mapper.NewContext(0, 0)
	ctx.SourceNames[1] = "Uniprot/SWISSPROT"
	ctx.SourceNames[2] = "RefSeq_peptide"
	ctx.SourceNames[3] = "ZFIN_ID"
	ctx.ExternalDB[1] = 2510
	ctx.ExternalDB[2] = 2250
	ctx.ExternalDB[3] = 3810
	return ctx
}

func newTestFiles(t *testing.T) (*emit.Files, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := emit.Create(dir)
	require.NoError(t, err)
	return files, dir
}

func readLines(t *testing.T, dir, name string) []string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	content := strings.TrimSuffix(string(raw), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// Source priority beats identity: SWISSPROT at a lower index wins even with
// a lower query identity.
func TestSelector_PriorityBeatsIdentity(t *testing.T) {
	ctx := newTestContext()
	tr := mapper.ObjectKey{Type: mapper.Transcript, ID: 5}

	ctx.XrefSource[100] = 1 // SWISSPROT, qi 70
	ctx.XrefSource[200] = 2 // RefSeq_peptide, qi 90
	ctx.AddMapping(tr, 100)
	ctx.AddMapping(tr, 200)
	ctx.SetIdentity(tr, 100, mapper.Identity{Query: 70, Target: 70})
	ctx.SetIdentity(tr, 200, mapper.Identity{Query: 90, Target: 90})

	files, dir := newTestFiles(t)
	s := NewSelector(ctx, files, []string{"Uniprot/SWISSPROT", "RefSeq_peptide"})
	require.NoError(t, s.Run())
	require.NoError(t, files.Close())

	lines := readLines(t, dir, emit.TranscriptDisplayFile)
	require.Len(t, lines, 1)
	assert.Equal(t, "101\t5", lines[0])
}

// Equal priority falls back to the higher query identity.
func TestSelector_IdentityTieBreak(t *testing.T) {
	ctx := newTestContext()
	tr := mapper.ObjectKey{Type: mapper.Transcript, ID: 5}

	ctx.XrefSource[100] = 1
	ctx.XrefSource[110] = 1
	ctx.AddMapping(tr, 100)
	ctx.AddMapping(tr, 110)
	ctx.SetIdentity(tr, 100, mapper.Identity{Query: 70})
	ctx.SetIdentity(tr, 110, mapper.Identity{Query: 95})

	files, dir := newTestFiles(t)
	s := NewSelector(ctx, files, []string{"Uniprot/SWISSPROT"})
	require.NoError(t, s.Run())
	require.NoError(t, files.Close())

	lines := readLines(t, dir, emit.TranscriptDisplayFile)
	require.Len(t, lines, 1)
	assert.Equal(t, "111\t5", lines[0])
}

// A source outside the priority list never becomes a display xref.
func TestSelector_UnlistedSourceDisqualified(t *testing.T) {
	ctx := newTestContext()
	tr := mapper.ObjectKey{Type: mapper.Transcript, ID: 5}

	ctx.XrefSource[200] = 2
	ctx.AddMapping(tr, 200)
	ctx.SetIdentity(tr, 200, mapper.Identity{Query: 99})

	files, dir := newTestFiles(t)
	s := NewSelector(ctx, files, []string{"Uniprot/SWISSPROT"})
	require.NoError(t, s.Run())
	require.NoError(t, files.Close())

	assert.Empty(t, readLines(t, dir, emit.TranscriptDisplayFile))
}

// The translation's best xref overrides the transcript's only with strictly
// better priority AND strictly greater query identity.
func TestSelector_TranslationOverride(t *testing.T) {
	ctx := newTestContext()
	ctx.TranscriptToTranslation = map[int64]int64{5: 50}
	ctx.TranslationToTranscript = map[int64]int64{50: 5}

	tr := mapper.ObjectKey{Type: mapper.Transcript, ID: 5}
	tl := mapper.ObjectKey{Type: mapper.Translation, ID: 50}

	ctx.XrefSource[200] = 2 // transcript side: priority 1, qi 70
	ctx.XrefSource[100] = 1 // translation side: priority 0, qi 85
	ctx.AddMapping(tr, 200)
	ctx.AddMapping(tl, 100)
	ctx.SetIdentity(tr, 200, mapper.Identity{Query: 70})
	ctx.SetIdentity(tl, 100, mapper.Identity{Query: 85})

	files, dir := newTestFiles(t)
	s := NewSelector(ctx, files, []string{"Uniprot/SWISSPROT", "RefSeq_peptide"})
	require.NoError(t, s.Run())
	require.NoError(t, files.Close())

	lines := readLines(t, dir, emit.TranscriptDisplayFile)
	require.Len(t, lines, 1)
	assert.Equal(t, "101\t5", lines[0])
}

// Better priority alone is not enough for the translation side: the query
// identity must be strictly greater too.
func TestSelector_TranslationNeedsBothWins(t *testing.T) {
	ctx := newTestContext()
	ctx.TranscriptToTranslation = map[int64]int64{5: 50}
	ctx.TranslationToTranscript = map[int64]int64{50: 5}

	tr := mapper.ObjectKey{Type: mapper.Transcript, ID: 5}
	tl := mapper.ObjectKey{Type: mapper.Translation, ID: 50}

	ctx.XrefSource[200] = 2
	ctx.XrefSource[100] = 1
	ctx.AddMapping(tr, 200)
	ctx.AddMapping(tl, 100)
	ctx.SetIdentity(tr, 200, mapper.Identity{Query: 85})
	ctx.SetIdentity(tl, 100, mapper.Identity{Query: 85}) // not strictly greater

	files, dir := newTestFiles(t)
	s := NewSelector(ctx, files, []string{"Uniprot/SWISSPROT", "RefSeq_peptide"})
	require.NoError(t, s.Run())
	require.NoError(t, files.Close())

	lines := readLines(t, dir, emit.TranscriptDisplayFile)
	require.Len(t, lines, 1)
	assert.Equal(t, "201\t5", lines[0], "transcript keeps its own xref")
}

// A gene's transcripts tie on priority; the longer transcript's xref wins.
func TestSelector_GeneLengthTieBreak(t *testing.T) {
	ctx := newTestContext()
	ctx.GeneTranscripts = map[int64][]int64{9: {11, 12}}
	ctx.TranscriptLengths = map[int64]int{11: 2000, 12: 3500}

	tr11 := mapper.ObjectKey{Type: mapper.Transcript, ID: 11}
	tr12 := mapper.ObjectKey{Type: mapper.Transcript, ID: 12}

	ctx.XrefSource[100] = 1
	ctx.XrefSource[110] = 1
	ctx.AddMapping(tr11, 100)
	ctx.AddMapping(tr12, 110)
	ctx.SetIdentity(tr11, 100, mapper.Identity{Query: 90})
	ctx.SetIdentity(tr12, 110, mapper.Identity{Query: 90})

	files, dir := newTestFiles(t)
	s := NewSelector(ctx, files, []string{"Uniprot/SWISSPROT"})
	require.NoError(t, s.Run())
	require.NoError(t, files.Close())

	lines := readLines(t, dir, emit.GeneDisplayFile)
	require.Len(t, lines, 1)
	assert.Equal(t, "111\t9", lines[0], "the 3500bp transcript's xref describes the gene")

	sql := readLines(t, dir, emit.GeneDisplaySQL)
	require.Len(t, sql, 1)
	assert.Equal(t, "UPDATE gene SET display_xref_id=111 WHERE gene_id=9;", sql[0])
}
