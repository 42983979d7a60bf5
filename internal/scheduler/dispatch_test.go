package scheduler

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/xrefmap/internal/rules"
)

// fakeScheduler records submissions and reports success unless a submit or
// wait error is configured.
type fakeScheduler struct {
	specs     []JobSpec
	waited    []string
	submitErr error
	waitErr   error
}

func (f *fakeScheduler) Submit(ctx context.Context, spec JobSpec) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.specs = append(f.specs, spec)
	return fmt.Sprintf("job-%d", len(f.specs)), nil
}

func (f *fakeScheduler) WaitAll(ctx context.Context, ids []string) error {
	f.waited = ids
	return f.waitErr
}

func (f *fakeScheduler) Kill(ids []string) {}

func TestMapFileName(t *testing.T) {
	assert.Equal(t, "ExonerateGappedBest1_dna_0.map", MapFileName("ExonerateGappedBest1", rules.DNA, 0))
	assert.Equal(t, "ExonerateGappedBest5_peptide_3.map", MapFileName("ExonerateGappedBest5", rules.Peptide, 3))
}

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry()

	m, ok := r.Lookup("ExonerateGappedBest1")
	require.True(t, ok)
	assert.Equal(t, 90, m.QueryThreshold)
	assert.Equal(t, 90, m.TargetThreshold)

	args := m.Command("q.fasta", "t.fasta")
	assert.Equal(t, "exonerate", args[0])
	assert.Contains(t, args, "q.fasta")
	assert.Contains(t, args, "t.fasta")

	_, ok = r.Lookup("BlatBest1")
	assert.False(t, ok)
}

func TestDispatcher_SubmitsAndRecordsThresholds(t *testing.T) {
	sched := &fakeScheduler{}
	d := NewDispatcher(sched, NewRegistry(), t.TempDir())

	jobs := []AlignJob{
		{Method: "ExonerateGappedBest1", Kind: rules.DNA, Index: 0, QueryFASTA: "q0.fasta", TargetFASTA: "dna.fasta"},
		{Method: "ExonerateGappedBest1", Kind: rules.Peptide, Index: 0, QueryFASTA: "q0p.fasta", TargetFASTA: "pep.fasta"},
	}

	thresholds, err := d.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.Equal(t, Thresholds{Query: 90, Target: 90}, thresholds["ExonerateGappedBest1"])
	require.Len(t, sched.specs, 2)
	assert.Equal(t, "ExonerateGappedBest1_dna_0.map", sched.specs[0].Name)
	assert.Len(t, sched.waited, 2, "waits on every submitted job")
}

// A method missing from the registry is skipped with a warning, not fatal.
func TestDispatcher_MissingMethodSkipped(t *testing.T) {
	sched := &fakeScheduler{}
	d := NewDispatcher(sched, NewRegistry(), t.TempDir())

	jobs := []AlignJob{
		{Method: "NoSuchAligner", Kind: rules.DNA, Index: 0},
		{Method: "ExonerateGappedBest5", Kind: rules.DNA, Index: 1},
	}

	thresholds, err := d.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.NotContains(t, thresholds, "NoSuchAligner")
	assert.Contains(t, thresholds, "ExonerateGappedBest5")
	assert.Len(t, sched.specs, 1)
}

// Scheduler failure downgrades to a warning; the run continues.
func TestDispatcher_WaitFailureIsWarning(t *testing.T) {
	sched := &fakeScheduler{waitErr: fmt.Errorf("2 of 2 jobs failed")}
	d := NewDispatcher(sched, NewRegistry(), t.TempDir())

	jobs := []AlignJob{{Method: "ExonerateGappedBest1", Kind: rules.DNA, Index: 0}}
	_, err := d.Run(context.Background(), jobs)
	assert.NoError(t, err)
}

// Cancellation is the one error that propagates out of the barrier.
func TestDispatcher_CancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := &fakeScheduler{waitErr: context.Canceled}
	d := NewDispatcher(sched, NewRegistry(), t.TempDir())

	jobs := []AlignJob{{Method: "ExonerateGappedBest1", Kind: rules.DNA, Index: 0}}
	_, err := d.Run(ctx, jobs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_RunsJobAndCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(2)

	out := dir + "/job.map"
	id, err := l.Submit(context.Background(), JobSpec{
		Name:    "echo",
		Args:    []string{"sh", "-c", "printf 'hello:1:2\\n'"},
		OutFile: out,
	})
	require.NoError(t, err)

	require.NoError(t, l.WaitAll(context.Background(), []string{id}))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello:1:2\n", string(raw))
}

func TestLocal_FailedJobReported(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(1)

	id, err := l.Submit(context.Background(), JobSpec{
		Name:    "boom",
		Args:    []string{"sh", "-c", "exit 3"},
		OutFile: dir + "/boom.map",
	})
	require.NoError(t, err)

	err = l.WaitAll(context.Background(), []string{id})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 jobs failed")
}
