// Package describe synthesizes one human-readable description per gene from
// its xref pool, ranked by source and cleaned by the species' filter
// regexes.
package describe

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/xrefmap/internal/emit"
	"github.com/inodb/xrefmap/internal/mapper"
)

// fillerWords rank how degraded a SPTREMBL description is; a description
// whose first matching word is later in the list (or that matches nothing)
// is cleaner and wins.
var fillerWords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unknown`),
	regexp.MustCompile(`(?i)hypothetical`),
	regexp.MustCompile(`(?i)putative`),
	regexp.MustCompile(`(?i)novel`),
	regexp.MustCompile(`(?i)probable`),
	regexp.MustCompile(`[0-9]{3}`),
	regexp.MustCompile(`(?i)kDa`),
	regexp.MustCompile(`(?i)fragment`),
	regexp.MustCompile(`(?i)cdna`),
	regexp.MustCompile(`(?i)protein`),
}

const sptremblSource = "Uniprot/SPTREMBL"

// identityRanked are the sources whose ties are broken on alignment
// identities.
var identityRanked = map[string]bool{
	"Uniprot/SWISSPROT": true,
	"RefSeq_dna":        true,
	"RefSeq_peptide":    true,
}

// candidate is one xref competing to describe a gene.
type candidate struct {
	xrefID      int64
	source      string
	rank        int
	accession   string
	description string
	identity    mapper.Identity
}

// Builder assembles the per-gene descriptions.
type Builder struct {
	ctx    *mapper.Context
	files  *emit.Files
	logger *zap.Logger

	filters    []*regexp.Regexp
	sourceRank map[string]int

	// xref id → filtered (accession, description); absent means the xref
	// has no usable description.
	pool map[int64][2]string
}

// NewBuilder compiles the species' description filters and source ranking.
// Descriptions maps xref id → (accession, raw description); consortium may
// be empty. Invalid filter regexes are a configuration error.
func NewBuilder(ctx *mapper.Context, files *emit.Files, descriptions map[int64][2]string, filters []string, consortium string) (*Builder, error) {
	b := &Builder{
		ctx:        ctx,
		files:      files,
		logger:     zap.NewNop(),
		sourceRank: make(map[string]int),
		pool:       make(map[int64][2]string),
	}

	for _, expr := range filters {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("description filter %q: %w", expr, err)
		}
		b.filters = append(b.filters, re)
	}

	ranked := []string{"Uniprot/SPTREMBL", "RefSeq_dna", "RefSeq_peptide", "Uniprot/SWISSPROT"}
	if consortium != "" {
		ranked = append(ranked, consortium)
	}
	for i, name := range ranked {
		b.sourceRank[name] = i
	}

	for id, pair := range descriptions {
		desc := b.applyFilters(pair[1])
		if desc == "" {
			continue
		}
		b.pool[id] = [2]string{pair[0], desc}
	}

	return b, nil
}

// SetLogger sets the logger for warning messages.
func (b *Builder) SetLogger(l *zap.Logger) {
	b.logger = l
}

func (b *Builder) applyFilters(desc string) string {
	for _, re := range b.filters {
		desc = re.ReplaceAllString(desc, "")
	}
	return strings.TrimSpace(desc)
}

// Run emits one description per gene that has any usable candidate.
func (b *Builder) Run() error {
	geneIDs := make([]int64, 0, len(b.ctx.GeneTranscripts))
	for id := range b.ctx.GeneTranscripts {
		geneIDs = append(geneIDs, id)
	}
	sort.Slice(geneIDs, func(i, j int) bool { return geneIDs[i] < geneIDs[j] })

	for _, geneID := range geneIDs {
		cands := b.geneCandidates(geneID)
		if len(cands) == 0 {
			continue
		}

		sort.SliceStable(cands, func(i, j int) bool { return b.less(cands[i], cands[j]) })
		winner := cands[len(cands)-1]

		desc := fmt.Sprintf("%s [Source:%s;Acc:%s]", winner.description, winner.source, winner.accession)
		if err := b.files.GeneDescription(geneID, desc); err != nil {
			return err
		}
	}
	return nil
}

// geneCandidates collects the gene's xrefs through its transcripts and
// their translations, keeping the identities of the linking object.
func (b *Builder) geneCandidates(geneID int64) []candidate {
	var cands []candidate
	seen := make(map[int64]bool)

	objects := make([]mapper.ObjectKey, 0, 2*len(b.ctx.GeneTranscripts[geneID]))
	for _, trID := range b.ctx.GeneTranscripts[geneID] {
		objects = append(objects, mapper.ObjectKey{Type: mapper.Transcript, ID: trID})
		if tlID, ok := b.ctx.TranscriptToTranslation[trID]; ok {
			objects = append(objects, mapper.ObjectKey{Type: mapper.Translation, ID: tlID})
		}
	}

	for _, obj := range objects {
		for _, xrefID := range b.ctx.Mappings[obj] {
			if seen[xrefID] {
				continue
			}
			seen[xrefID] = true

			pair, ok := b.pool[xrefID]
			if !ok {
				continue
			}
			source, ok := b.ctx.SourceName(xrefID)
			if !ok {
				continue
			}

			rank := -1
			if r, ok := b.sourceRank[source]; ok {
				rank = r
			}

			id, _ := b.ctx.IdentityFor(obj, xrefID)
			cands = append(cands, candidate{
				xrefID:      xrefID,
				source:      source,
				rank:        rank,
				accession:   pair[0],
				description: pair[1],
				identity:    id,
			})
		}
	}
	return cands
}

// less orders candidates so the best description sorts last.
func (b *Builder) less(a, c candidate) bool {
	if a.rank != c.rank {
		return a.rank < c.rank
	}
	if a.source != c.source {
		return false
	}

	if identityRanked[a.source] {
		if a.identity.Query != c.identity.Query {
			return a.identity.Query < c.identity.Query
		}
		return a.identity.Target < c.identity.Target
	}

	if a.source == sptremblSource {
		return fillerScore(a.description) < fillerScore(c.description)
	}

	return false
}

// fillerScore is the index of the first filler word matching the
// description; a description matching nothing scores past the end of the
// list and beats everything.
func fillerScore(desc string) int {
	for i, re := range fillerWords {
		if re.MatchString(desc) {
			return i
		}
	}
	return len(fillerWords)
}
