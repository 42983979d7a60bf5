package mapper

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/xrefmap/internal/emit"
	"github.com/inodb/xrefmap/internal/xrefdb"
)

// batchSize bounds the IN (…) clauses of the propagation queries.
const batchSize = 200

// goSourceName marks the source whose dependent linkage annotations feed the
// go_xref output.
const goSourceName = "GO"

// XrefSource is the slice of the xref store the propagator reads.
type XrefSource interface {
	XrefsByIDs(ids []int64) ([]xrefdb.Xref, error)
	Dependents(masterIDs []int64) ([]xrefdb.Dependent, error)
	Synonyms(xrefIDs []int64) ([]xrefdb.Synonym, error)
	OrphanXrefs(speciesID int64) ([]xrefdb.Xref, error)
	InterproPairs() ([]xrefdb.Interpro, error)
	DirectXrefs(speciesID int64) ([]xrefdb.Direct, error)
}

// Propagator walks the primary, dependent and direct xref relations and
// emits the xref/object_xref rows they imply.
type Propagator struct {
	ctx    *Context
	files  *emit.Files
	store  XrefSource
	logger *zap.Logger
}

// NewPropagator creates a propagator writing through the given output files.
func NewPropagator(ctx *Context, files *emit.Files, store XrefSource) *Propagator {
	return &Propagator{ctx: ctx, files: files, store: store, logger: zap.NewNop()}
}

// SetLogger sets the logger for warning messages.
func (p *Propagator) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Run executes the propagation passes in output-contract order: primary
// xrefs, the dependent closure, direct xrefs, orphans, synonyms, interpro.
func (p *Propagator) Run() error {
	if err := p.writePrimaryXrefs(); err != nil {
		return err
	}
	if err := p.writeDependents(); err != nil {
		return err
	}
	if err := p.writeDirect(); err != nil {
		return err
	}
	if err := p.writeOrphans(); err != nil {
		return err
	}
	if err := p.writeSynonyms(); err != nil {
		return err
	}
	return p.writeInterpro()
}

// writeXref emits one xref row unless its source is unknown to the target
// or the row went out already. The bool reports whether a row was written.
func (p *Propagator) writeXref(x xrefdb.Xref, dependent bool) (bool, error) {
	dbID, ok := p.ctx.ExternalDBID(x.ID)
	if !ok {
		return false, nil
	}
	if !p.ctx.MarkXrefWritten(x.ID) {
		return false, nil
	}
	err := p.files.Xref(p.ctx.ShiftXref(x.ID), dbID, x.Accession, x.DisplayLabel(), x.Version, x.Description, dependent)
	if err != nil {
		return false, err
	}
	return true, nil
}

// writePrimaryXrefs emits an xref row for every primary xref that aligned.
func (p *Propagator) writePrimaryXrefs() error {
	ids := p.ctx.PrimaryXrefIDs()

	for _, chunk := range chunks(ids, batchSize) {
		xrefs, err := p.store.XrefsByIDs(chunk)
		if err != nil {
			return fmt.Errorf("primary xrefs: %w", err)
		}
		for _, x := range xrefs {
			if _, err := p.writeXref(x, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeDependents fetches the dependents of every aligned master and links
// them to the master's objects, inheriting the master's identities.
func (p *Propagator) writeDependents() error {
	masters := p.ctx.PrimaryXrefIDs()

	for _, chunk := range chunks(masters, batchSize) {
		deps, err := p.store.Dependents(chunk)
		if err != nil {
			return fmt.Errorf("dependent xrefs: %w", err)
		}

		for _, dep := range deps {
			if _, ok := p.ctx.ExternalDBID(dep.ID); !ok {
				continue
			}
			if _, err := p.writeXref(dep.Xref, true); err != nil {
				return err
			}

			srcName, _ := p.ctx.SourceName(dep.ID)

			for _, obj := range p.ctx.ObjectsOf(dep.MasterID) {
				if !p.ctx.MarkObjectXrefWritten(obj, dep.ID) {
					continue
				}

				objectXrefID := p.ctx.NextObjectXrefID()
				if err := p.files.ObjectXref(objectXrefID, obj.ID, string(obj.Type), p.ctx.ShiftXref(dep.ID), true); err != nil {
					return err
				}

				// Dependent identities are inherited from the master.
				if id, ok := p.ctx.IdentityFor(obj, dep.MasterID); ok {
					p.ctx.SetIdentity(obj, dep.ID, id)
				}

				if srcName == goSourceName {
					if err := p.files.GoXref(objectXrefID, dep.LinkageAnnotation); err != nil {
						return err
					}
				}

				p.ctx.AddMapping(obj, dep.ID)
			}
		}
	}
	return nil
}

// writeOrphans emits bare xref rows for xrefs reachable through neither
// relation but present in a known external_db.
func (p *Propagator) writeOrphans() error {
	orphans, err := p.store.OrphanXrefs(p.ctx.SpeciesID)
	if err != nil {
		return fmt.Errorf("orphan xrefs: %w", err)
	}
	for _, x := range orphans {
		if _, err := p.writeXref(x, false); err != nil {
			return err
		}
	}
	return nil
}

// writeSynonyms emits the synonym rows of every written xref.
func (p *Propagator) writeSynonyms() error {
	ids := p.ctx.WrittenXrefIDs()

	for _, chunk := range chunks(ids, batchSize) {
		syns, err := p.store.Synonyms(chunk)
		if err != nil {
			return fmt.Errorf("synonyms: %w", err)
		}
		for _, syn := range syns {
			if err := p.files.Synonym(p.ctx.ShiftXref(syn.XrefID), syn.Synonym); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeInterpro copies the interpro table through verbatim.
func (p *Propagator) writeInterpro() error {
	pairs, err := p.store.InterproPairs()
	if err != nil {
		return fmt.Errorf("interpro: %w", err)
	}
	for _, pair := range pairs {
		if err := p.files.Interpro(pair.Interpro, pair.Pfam); err != nil {
			return err
		}
	}
	return nil
}

// chunks splits ids into slices of at most n elements.
func chunks(ids []int64, n int) [][]int64 {
	var out [][]int64
	for len(ids) > n {
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
