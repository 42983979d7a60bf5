// Package display picks the single display xref of each transcript and
// gene: source priority first, alignment identity and transcript length as
// tie-breakers.
package display

import (
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/xrefmap/internal/emit"
	"github.com/inodb/xrefmap/internal/mapper"
)

// candidate is one object's current best xref.
type candidate struct {
	xrefID   int64
	priority int
	queryID  int // query_identity of the (object, xref) edge
}

// Selector runs the three selection phases over the pipeline context.
type Selector struct {
	ctx    *mapper.Context
	files  *emit.Files
	logger *zap.Logger

	// Display source names, highest priority first.
	priorities []string
}

// NewSelector creates a selector for the given priority list.
func NewSelector(ctx *mapper.Context, files *emit.Files, priorities []string) *Selector {
	return &Selector{ctx: ctx, files: files, priorities: priorities, logger: zap.NewNop()}
}

// SetLogger sets the logger for warning messages.
func (s *Selector) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Run selects and emits the transcript and gene display xrefs.
func (s *Selector) Run() error {
	best := s.bestPerObject()
	chosen, err := s.reconcileTranscripts(best)
	if err != nil {
		return err
	}
	return s.selectGenes(chosen)
}

// bestPerObject is phase 1: per transcript and per translation, the
// highest-priority xref, ties broken by query identity.
func (s *Selector) bestPerObject() map[mapper.ObjectKey]candidate {
	prioIdx := make(map[string]int, len(s.priorities))
	for i, name := range s.priorities {
		prioIdx[name] = i
	}

	best := make(map[mapper.ObjectKey]candidate)

	for obj, xrefs := range s.ctx.Mappings {
		if obj.Type != mapper.Transcript && obj.Type != mapper.Translation {
			continue
		}

		for _, xrefID := range xrefs {
			srcName, ok := s.ctx.SourceName(xrefID)
			if !ok {
				s.logger.Warn("xref with unknown source skipped in display selection",
					zap.Int64("xref_id", xrefID))
				continue
			}

			prio, ok := prioIdx[srcName]
			if !ok {
				// Not a display source for this species.
				continue
			}

			qi := 0
			if id, ok := s.ctx.IdentityFor(obj, xrefID); ok {
				qi = id.Query
			}

			cur, have := best[obj]
			if !have || prio < cur.priority || (prio == cur.priority && qi > cur.queryID) {
				best[obj] = candidate{xrefID: xrefID, priority: prio, queryID: qi}
			}
		}
	}

	return best
}

// reconcileTranscripts is phase 2: fold each translation's best xref into
// its transcript. The translation wins only with strictly better priority
// and strictly greater query identity.
func (s *Selector) reconcileTranscripts(best map[mapper.ObjectKey]candidate) (map[int64]candidate, error) {
	transcripts := make(map[int64]bool)
	for obj := range best {
		switch obj.Type {
		case mapper.Transcript:
			transcripts[obj.ID] = true
		case mapper.Translation:
			if trID, ok := s.ctx.TranslationToTranscript[obj.ID]; ok {
				transcripts[trID] = true
			}
		}
	}

	ids := make([]int64, 0, len(transcripts))
	for id := range transcripts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	chosen := make(map[int64]candidate, len(ids))

	for _, trID := range ids {
		trBest, haveTr := best[mapper.ObjectKey{Type: mapper.Transcript, ID: trID}]

		var tlBest candidate
		haveTl := false
		if tlID, ok := s.ctx.TranscriptToTranslation[trID]; ok {
			tlBest, haveTl = best[mapper.ObjectKey{Type: mapper.Translation, ID: tlID}]
		}

		var winner candidate
		switch {
		case haveTr && haveTl:
			winner = trBest
			if tlBest.priority < trBest.priority && tlBest.queryID > trBest.queryID {
				winner = tlBest
			}
		case haveTr:
			winner = trBest
		case haveTl:
			winner = tlBest
		default:
			continue
		}

		chosen[trID] = winner
		if err := s.files.TranscriptDisplayXref(s.ctx.ShiftXref(winner.xrefID), trID); err != nil {
			return nil, err
		}
	}

	return chosen, nil
}

// selectGenes is phase 3: each gene takes the best-priority xref among its
// transcripts, ties broken by the longest transcript.
func (s *Selector) selectGenes(chosen map[int64]candidate) error {
	geneIDs := make([]int64, 0, len(s.ctx.GeneTranscripts))
	for id := range s.ctx.GeneTranscripts {
		geneIDs = append(geneIDs, id)
	}
	sort.Slice(geneIDs, func(i, j int) bool { return geneIDs[i] < geneIDs[j] })

	for _, geneID := range geneIDs {
		var winner candidate
		var winnerLen int
		have := false

		for _, trID := range s.ctx.GeneTranscripts[geneID] {
			cand, ok := chosen[trID]
			if !ok {
				continue
			}
			trLen := s.ctx.TranscriptLengths[trID]

			if !have || cand.priority < winner.priority ||
				(cand.priority == winner.priority && trLen > winnerLen) {
				winner = cand
				winnerLen = trLen
				have = true
			}
		}

		if !have {
			continue
		}
		if err := s.files.GeneDisplayXref(s.ctx.ShiftXref(winner.xrefID), geneID); err != nil {
			return err
		}
	}
	return nil
}
