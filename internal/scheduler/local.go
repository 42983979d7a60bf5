package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// JobSpec describes one batch job: the command to run and where its stdout
// goes.
type JobSpec struct {
	Name    string
	Args    []string
	OutFile string
}

// SubmitResult is the outcome of one submission attempt.
type SubmitResult struct {
	JobID string
	Err   error
}

// Scheduler is the contract placed on the batch system. WaitAll is the only
// cancellable barrier in the pipeline; on cancellation it must attempt to
// terminate outstanding jobs before returning.
type Scheduler interface {
	Submit(ctx context.Context, spec JobSpec) (string, error)
	WaitAll(ctx context.Context, ids []string) error
	Kill(ids []string)
}

// Local runs jobs as child processes under a bounded worker pool. It stands
// in for a cluster scheduler on a single machine.
type Local struct {
	sem    chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	nextID int
	jobs   map[string]*localJob
}

type localJob struct {
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// NewLocal creates a local scheduler running at most workers jobs at once.
// Zero workers means NumCPU.
func NewLocal(workers int) *Local {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Local{
		sem:    make(chan struct{}, workers),
		logger: zap.NewNop(),
		jobs:   make(map[string]*localJob),
	}
}

// SetLogger sets the logger for job lifecycle messages.
func (l *Local) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Submit launches the job and returns its identifier immediately. The job
// itself waits for a worker slot.
func (l *Local) Submit(ctx context.Context, spec JobSpec) (string, error) {
	if len(spec.Args) == 0 {
		return "", fmt.Errorf("empty command for job %s", spec.Name)
	}

	// Jobs outlive the submit call; they are bounded by their own context
	// so Kill and the wait barrier can stop them.
	jobCtx, cancel := context.WithCancel(context.Background())
	job := &localJob{done: make(chan struct{}), cancel: cancel}

	l.mu.Lock()
	l.nextID++
	id := fmt.Sprintf("local-%d", l.nextID)
	l.jobs[id] = job
	l.mu.Unlock()

	go func() {
		defer close(job.done)
		defer cancel()

		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
		case <-jobCtx.Done():
			job.err = jobCtx.Err()
			return
		}

		out, err := os.Create(spec.OutFile)
		if err != nil {
			job.err = fmt.Errorf("create %s: %w", spec.OutFile, err)
			return
		}
		defer out.Close()

		cmd := exec.CommandContext(jobCtx, spec.Args[0], spec.Args[1:]...)
		cmd.Stdout = out
		cmd.Stderr = os.Stderr

		l.logger.Debug("job started", zap.String("job", id), zap.String("name", spec.Name))
		if err := cmd.Run(); err != nil {
			job.err = fmt.Errorf("job %s (%s): %w", id, spec.Name, err)
		}
	}()

	return id, nil
}

// WaitAll blocks until every named job has ended. Job failures are collected
// into the returned error; context cancellation kills the outstanding jobs
// and returns the context's error.
func (l *Local) WaitAll(ctx context.Context, ids []string) error {
	var failed []string

	for i, id := range ids {
		l.mu.Lock()
		job, ok := l.jobs[id]
		l.mu.Unlock()
		if !ok {
			failed = append(failed, id)
			continue
		}

		select {
		case <-job.done:
			if job.err != nil {
				l.logger.Warn("job failed", zap.String("job", id), zap.Error(job.err))
				failed = append(failed, id)
			}
		case <-ctx.Done():
			l.Kill(ids[i:])
			return ctx.Err()
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d jobs failed: %v", len(failed), len(ids), failed)
	}
	return nil
}

// Kill terminates the named jobs if they are still running.
func (l *Local) Kill(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if job, ok := l.jobs[id]; ok {
			job.cancel()
		}
	}
}
