package mapper

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ccdsSourceName marks direct xrefs that are retargeted from transcripts to
// their translations.
const ccdsSourceName = "CCDS"

// stableIDFallbacks is how many ".N" suffixes are tried for a stable id the
// core store does not know, compensating for legacy UTR transcripts.
const stableIDFallbacks = 4

// writeDirect emits the hand-curated direct xrefs.
func (p *Propagator) writeDirect() error {
	directs, err := p.store.DirectXrefs(p.ctx.SpeciesID)
	if err != nil {
		return fmt.Errorf("direct xrefs: %w", err)
	}

	for _, d := range directs {
		if _, ok := p.ctx.ExternalDBID(d.ID); !ok {
			continue
		}

		objType, ok := canonicalObjectType(d.ObjectType)
		if !ok {
			p.logger.Warn("direct xref with unknown object type, skipping",
				zap.String("accession", d.Accession), zap.String("type", d.ObjectType))
			continue
		}

		stableID := d.StableID
		srcName, _ := p.ctx.SourceName(d.ID)

		// CCDS records point at transcripts but belong on the translation.
		// A transcript without one drops the xref entirely.
		if srcName == ccdsSourceName && objType == Transcript {
			translationStable, ok := p.ctx.TranscriptStableTranslation[stableID]
			if !ok {
				p.logger.Warn("CCDS direct xref on transcript without translation, skipping",
					zap.String("accession", d.Accession), zap.String("transcript", stableID))
				continue
			}
			objType = Translation
			stableID = translationStable
		}

		internalID, ok := p.resolveStableID(objType, stableID)
		if !ok {
			p.logger.Warn("direct xref stable id not found, skipping",
				zap.String("accession", d.Accession),
				zap.String("stable_id", stableID), zap.String("type", string(objType)))
			continue
		}

		if _, err := p.writeXref(d.Xref, false); err != nil {
			return err
		}

		obj := ObjectKey{Type: objType, ID: internalID}
		if !p.ctx.MarkObjectXrefWritten(obj, d.ID) {
			continue
		}
		objectXrefID := p.ctx.NextObjectXrefID()
		if err := p.files.ObjectXref(objectXrefID, internalID, string(objType), p.ctx.ShiftXref(d.ID), false); err != nil {
			return err
		}

		// Direct xrefs compete for display and description selection too.
		p.ctx.AddMapping(obj, d.ID)
	}
	return nil
}

// resolveStableID looks up a stable id, trying the ".1"–".4" suffix
// fallbacks for ids the core store only knows with a version.
func (p *Propagator) resolveStableID(objType ObjectType, stableID string) (int64, bool) {
	ids := p.ctx.StableIDs[objType]
	if id, ok := ids[stableID]; ok {
		return id, true
	}
	for v := 1; v <= stableIDFallbacks; v++ {
		if id, ok := ids[fmt.Sprintf("%s.%d", stableID, v)]; ok {
			return id, true
		}
	}
	return 0, false
}

// canonicalObjectType maps a stored object type string ("gene", "Transcript",
// …) onto its capitalized form.
func canonicalObjectType(s string) (ObjectType, bool) {
	switch strings.ToLower(s) {
	case "gene":
		return Gene, true
	case "transcript":
		return Transcript, true
	case "translation":
		return Translation, true
	}
	return "", false
}
