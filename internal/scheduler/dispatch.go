package scheduler

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/inodb/xrefmap/internal/rules"
)

// AlignJob pairs one rule's query FASTA with a core target FASTA.
type AlignJob struct {
	Method      string
	Kind        rules.SequenceKind
	Index       int
	QueryFASTA  string
	TargetFASTA string
}

// Thresholds are one method's identity cutoffs, recorded for the parser.
type Thresholds struct {
	Query  int
	Target int
}

// Dispatcher registers a method per job, submits the alignment jobs and
// blocks on the wait-for-all barrier.
type Dispatcher struct {
	sched    Scheduler
	registry *Registry
	workDir  string
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher placing map files under workDir.
func NewDispatcher(sched Scheduler, registry *Registry, workDir string) *Dispatcher {
	return &Dispatcher{sched: sched, registry: registry, workDir: workDir, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress and warning messages.
func (d *Dispatcher) SetLogger(l *zap.Logger) {
	d.logger = l
}

// MapFileName is the output name contract: <Method>_<dna|peptide>_<N>.map.
func MapFileName(method string, kind rules.SequenceKind, index int) string {
	return fmt.Sprintf("%s_%s_%d.map", method, kind, index)
}

// Run submits every job and waits for all of them. It returns the identity
// thresholds of each method that ran. A method missing from the registry is
// skipped with a warning; scheduler failures are warnings too, and whatever
// map files exist are used downstream. Only cancellation is returned as an
// error.
func (d *Dispatcher) Run(ctx context.Context, jobs []AlignJob) (map[string]Thresholds, error) {
	thresholds := make(map[string]Thresholds)
	results := make([]SubmitResult, 0, len(jobs))

	for _, job := range jobs {
		m, ok := d.registry.Lookup(job.Method)
		if !ok {
			d.logger.Warn("no handler registered for method, skipping",
				zap.String("method", job.Method))
			continue
		}
		thresholds[m.Name] = Thresholds{Query: m.QueryThreshold, Target: m.TargetThreshold}

		spec := JobSpec{
			Name:    MapFileName(m.Name, job.Kind, job.Index),
			Args:    m.Command(job.QueryFASTA, job.TargetFASTA),
			OutFile: filepath.Join(d.workDir, MapFileName(m.Name, job.Kind, job.Index)),
		}

		id, err := d.sched.Submit(ctx, spec)
		results = append(results, SubmitResult{JobID: id, Err: err})
		if err != nil {
			d.logger.Warn("job submission failed", zap.String("name", spec.Name), zap.Error(err))
		}
	}

	ids := make([]string, 0, len(results))
	for _, res := range results {
		if res.Err == nil {
			ids = append(ids, res.JobID)
		}
	}

	// Publish the job set before blocking on the barrier.
	d.logger.Info("alignment jobs submitted", zap.Strings("jobs", ids))

	if err := d.sched.WaitAll(ctx, ids); err != nil {
		if ctx.Err() != nil {
			return thresholds, ctx.Err()
		}
		d.logger.Warn("scheduler reported failures, continuing with existing output", zap.Error(err))
	}

	return thresholds, nil
}
