package test

import (
	"context"
	"github.com/RezaEskandarii/jobcache/client"
	"github.com/RezaEskandarii/jobcache/internal/state"
	"github.com/RezaEskandarii/jobcache/internal/store"
	"github.com/RezaEskandarii/jobcache/internal/store/memory"
	"github.com/RezaEskandarii/jobcache/types"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

type transition struct {
	JobID  string
	Status state.JobStatus
}

// recordingStore logs every status write that reaches the state store.
type recordingStore struct {
	*store.StateStore
	mu          sync.Mutex
	transitions []transition
}

func (r *recordingStore) record(rec *types.JobRecord) {
	if rec == nil {
		return
	}
	r.mu.Lock()
	r.transitions = append(r.transitions, transition{JobID: rec.ID, Status: rec.Status})
	r.mu.Unlock()
}

func (r *recordingStore) SetJob(ctx context.Context, rec types.JobRecord) error {
	if err := r.StateStore.SetJob(ctx, rec); err != nil {
		return err
	}
	r.record(&rec)
	return nil
}

func (r *recordingStore) UpdateStatus(ctx context.Context, jobID string, status state.JobStatus) (*types.JobRecord, error) {
	rec, err := r.StateStore.UpdateStatus(ctx, jobID, status)
	r.record(rec)
	return rec, err
}

func (r *recordingStore) UpdateResult(ctx context.Context, jobID, result, artifactPath string) (*types.JobRecord, error) {
	rec, err := r.StateStore.UpdateResult(ctx, jobID, result, artifactPath)
	r.record(rec)
	return rec, err
}

func (r *recordingStore) UpdateError(ctx context.Context, jobID, message string) (*types.JobRecord, error) {
	rec, err := r.StateStore.UpdateError(ctx, jobID, message)
	r.record(rec)
	return rec, err
}

func (r *recordingStore) history(jobID string) []state.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []state.JobStatus
	for _, tr := range r.transitions {
		if tr.JobID == jobID {
			out = append(out, tr.Status)
		}
	}
	return out
}

func (r *recordingStore) all() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition(nil), r.transitions...)
}

func newRecordingStore(t *testing.T) *recordingStore {
	t.Helper()
	s := store.NewStateStore(context.Background(), nil, memory.New())
	t.Cleanup(func() { _ = s.Close() })
	return &recordingStore{StateStore: s}
}

func startScheduler(t *testing.T, jobStore client.JobStore, kernel client.Kernel, ceiling int, opts ...client.SchedulerOption) *client.Scheduler {
	t.Helper()
	s, err := client.NewScheduler(jobStore, kernel, ceiling, opts...)
	require.NoError(t, err)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func submitPending(t *testing.T, jobStore client.JobStore, s *client.Scheduler, jobID string, input int64) {
	t.Helper()
	require.NoError(t, jobStore.SetJob(context.Background(), types.NewPendingJob(jobID, input)))
	require.NoError(t, s.Submit(jobID, input))
}

func waitForStatus(t *testing.T, jobStore client.JobStore, jobID string, want state.JobStatus) *types.JobRecord {
	t.Helper()
	var rec *types.JobRecord
	require.Eventually(t, func() bool {
		got, err := jobStore.GetJob(context.Background(), jobID)
		if err != nil || got == nil {
			return false
		}
		rec = got
		return got.Status == want
	}, 3*time.Second, 5*time.Millisecond, "job %s never reached %s", jobID, want)
	return rec
}
