// Package pipeline runs the mapping stages in order: dump, align, parse,
// propagate, select display xrefs, build descriptions, emit and upload.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/xrefmap/internal/config"
	"github.com/inodb/xrefmap/internal/coredb"
	"github.com/inodb/xrefmap/internal/describe"
	"github.com/inodb/xrefmap/internal/display"
	"github.com/inodb/xrefmap/internal/dump"
	"github.com/inodb/xrefmap/internal/emit"
	"github.com/inodb/xrefmap/internal/mapper"
	"github.com/inodb/xrefmap/internal/rules"
	"github.com/inodb/xrefmap/internal/scheduler"
	"github.com/inodb/xrefmap/internal/xrefdb"
)

// Engine owns the stores and drives the stages sequentially. Concurrency
// lives in the scheduler; the engine itself is single-threaded and each
// stage is a barrier.
type Engine struct {
	cfg      config.Engine
	species  config.Species
	xref     *xrefdb.Store
	core     *coredb.Store
	sched    scheduler.Scheduler
	registry *scheduler.Registry
	logger   *zap.Logger
}

// New creates an engine over the two stores with the default local
// scheduler and method registry.
func New(cfg config.Engine, species config.Species, xref *xrefdb.Store, core *coredb.Store) *Engine {
	local := scheduler.NewLocal(cfg.Workers)
	return &Engine{
		cfg:      cfg,
		species:  species,
		xref:     xref,
		core:     core,
		sched:    local,
		registry: scheduler.NewRegistry(),
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger threaded through every stage.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// SetScheduler replaces the batch scheduler.
func (e *Engine) SetScheduler(s scheduler.Scheduler) {
	e.sched = s
}

// Registry exposes the method registry so callers can add handlers.
func (e *Engine) Registry() *scheduler.Registry {
	return e.registry
}

// Run executes the full pipeline and returns the per-file record counts.
func (e *Engine) Run(ctx context.Context) (map[string]int, error) {
	if err := os.MkdirAll(e.cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}

	speciesIDs, err := e.xref.SpeciesIDs()
	if err != nil {
		return nil, err
	}
	sourceIDs, err := e.xref.SourceIDs()
	if err != nil {
		return nil, err
	}

	speciesID, ok := speciesIDs[e.cfg.Species]
	if !ok {
		return nil, fmt.Errorf("unknown species %q, valid names: %s",
			e.cfg.Species, sortedNames(speciesIDs))
	}

	mctx, err := e.buildContext(speciesID, sourceIDs)
	if err != nil {
		return nil, err
	}

	if e.cfg.UseExistingMappings {
		e.logger.Info("using existing map files, skipping dump and alignment")
		e.recordThresholds(mctx)
	} else {
		if err := e.dumpSequences(speciesIDs, sourceIDs); err != nil {
			return nil, err
		}
		thresholds, err := e.dispatch(ctx)
		if err != nil {
			return nil, err
		}
		for name, thr := range thresholds {
			mctx.MethodThresholds[name] = mapper.Thresholds{Query: thr.Query, Target: thr.Target}
		}
	}

	files, err := emit.Create(e.cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	if err := e.mapAndEmit(mctx, files); err != nil {
		files.Close()
		return nil, err
	}

	if err := files.Close(); err != nil {
		return nil, err
	}

	if e.cfg.Upload {
		up := emit.NewUploader(e.core.DB(), e.cfg.WorkDir)
		up.Truncate = e.cfg.Truncate
		up.SetLogger(e.logger)
		if err := up.Run(); err != nil {
			return nil, err
		}
	}

	return files.Counts(), nil
}

// buildContext loads every core and xref store index the stages consume.
func (e *Engine) buildContext(speciesID int64, sourceIDs map[string]int64) (*mapper.Context, error) {
	maxXref, err := e.core.MaxID("xref", "xref_id")
	if err != nil {
		return nil, err
	}
	maxObjectXref, err := e.core.MaxID("object_xref", "object_xref_id")
	if err != nil {
		return nil, err
	}

	mctx := mapper.NewContext(maxXref, maxObjectXref)
	mctx.SpeciesID = speciesID

	if mctx.XrefSource, err = e.xref.XrefSources(speciesID); err != nil {
		return nil, err
	}

	externalDBs, err := e.core.ExternalDBs()
	if err != nil {
		return nil, err
	}
	for name, srcID := range sourceIDs {
		mctx.SourceNames[srcID] = name
		if dbID, ok := externalDBs[name]; ok {
			mctx.ExternalDB[srcID] = dbID
		}
	}

	for _, objType := range []mapper.ObjectType{mapper.Gene, mapper.Transcript, mapper.Translation} {
		table := strings.ToLower(string(objType))
		ids, err := e.core.StableIDs(table)
		if err != nil {
			return nil, err
		}
		mctx.StableIDs[objType] = ids
	}

	trToTl, err := e.core.TranscriptTranslations()
	if err != nil {
		return nil, err
	}
	mctx.TranscriptToTranslation = trToTl
	mctx.TranslationToTranscript = make(map[int64]int64, len(trToTl))
	for tr, tl := range trToTl {
		mctx.TranslationToTranscript[tl] = tr
	}

	if mctx.TranscriptStableTranslation, err = e.core.TranscriptStableToTranslationStable(); err != nil {
		return nil, err
	}
	if mctx.GeneTranscripts, err = e.core.GeneTranscripts(); err != nil {
		return nil, err
	}
	if mctx.TranscriptLengths, err = e.core.TranscriptLengths(); err != nil {
		return nil, err
	}

	analyses, err := e.core.AnalysisIDs()
	if err != nil {
		return nil, err
	}
	mctx.AnalysisIDs["dna"] = analyses["XrefExonerateDNA"]
	mctx.AnalysisIDs["peptide"] = analyses["XrefExonerateProtein"]

	return mctx, nil
}

// dumpSequences runs the FASTA dumps for the rule list and the core.
func (e *Engine) dumpSequences(speciesIDs, sourceIDs map[string]int64) error {
	d := dump.New(e.xref, e.core, e.cfg.WorkDir)
	d.DumpCheck = e.cfg.DumpCheck
	d.Location = e.cfg.Location
	d.MaxDump = e.cfg.MaxDump
	d.SetLogger(e.logger)

	if err := d.DumpXrefs(speciesIDs, sourceIDs, e.species.Rules); err != nil {
		return err
	}
	return d.DumpCore(e.cfg.Species)
}

// dispatch submits one alignment job per (rule, sequence kind) and waits.
func (e *Engine) dispatch(ctx context.Context) (map[string]scheduler.Thresholds, error) {
	var jobs []scheduler.AlignJob
	for i, rule := range e.species.Rules {
		for _, kind := range []rules.SequenceKind{rules.DNA, rules.Peptide} {
			jobs = append(jobs, scheduler.AlignJob{
				Method:      rule.Method,
				Kind:        kind,
				Index:       i,
				QueryFASTA:  filepath.Join(e.cfg.WorkDir, dump.XrefFASTAName(i, kind)),
				TargetFASTA: filepath.Join(e.cfg.WorkDir, dump.CoreFASTAName(e.cfg.Species, kind)),
			})
		}
	}

	disp := scheduler.NewDispatcher(e.sched, e.registry, e.cfg.WorkDir)
	disp.SetLogger(e.logger)
	return disp.Run(ctx, jobs)
}

// recordThresholds fills the method thresholds from the registry when the
// alignment stage is skipped.
func (e *Engine) recordThresholds(mctx *mapper.Context) {
	for _, rule := range e.species.Rules {
		if m, ok := e.registry.Lookup(rule.Method); ok {
			mctx.MethodThresholds[m.Name] = mapper.Thresholds{Query: m.QueryThreshold, Target: m.TargetThreshold}
		} else {
			e.logger.Warn("no handler registered for method", zap.String("method", rule.Method))
		}
	}
}

// mapAndEmit runs the in-process stages: parse, propagate, select, describe.
func (e *Engine) mapAndEmit(mctx *mapper.Context, files *emit.Files) error {
	parser := mapper.NewParser(mctx, files)
	parser.SetLogger(e.logger)
	if err := parser.ParseDir(e.cfg.WorkDir); err != nil {
		return err
	}

	prop := mapper.NewPropagator(mctx, files, e.xref)
	prop.SetLogger(e.logger)
	if err := prop.Run(); err != nil {
		return err
	}

	sel := display.NewSelector(mctx, files, e.species.DisplaySources)
	sel.SetLogger(e.logger)
	if err := sel.Run(); err != nil {
		return err
	}

	descriptions, err := e.xref.Descriptions(mctx.SpeciesID)
	if err != nil {
		return err
	}
	builder, err := describe.NewBuilder(mctx, files, descriptions, e.species.DescriptionFilters, e.species.Consortium)
	if err != nil {
		return err
	}
	builder.SetLogger(e.logger)
	return builder.Run()
}

func sortedNames(ids map[string]int64) string {
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
