package client

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/jobcache/internal/state"
	"github.com/RezaEskandarii/jobcache/types"
	"github.com/google/uuid"
	"log/slog"
	"os"
)

var (
	ErrJobNotFound     = errors.New("job not found or expired")
	ErrJobNotCompleted = errors.New("job is not completed yet")
	ErrArtifactMissing = errors.New("artifact not found or expired")
)

// Submission is the outcome of JobManager.Submit. FromCache is set when an
// earlier computation for the same input answered the request.
type Submission struct {
	JobID        string
	Status       state.JobStatus
	FromCache    bool
	Result       string
	ArtifactPath string
}

// ManagerStats extends the scheduler's counters with the store's backing mode.
type ManagerStats struct {
	Stats
	StoreMode string `json:"storeMode"`
}

// JobManager is what the API layer talks to: it deduplicates requests through
// the result index, creates job records and hands new jobs to the scheduler.
type JobManager struct {
	store     JobStore
	scheduler *Scheduler
	logger    *slog.Logger
}

func NewJobManager(jobStore JobStore, scheduler *Scheduler, logger *slog.Logger) *JobManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{store: jobStore, scheduler: scheduler, logger: logger}
}

// Submit returns the cached result for input when the result index has one;
// otherwise it creates a pending job and queues it.
func (m *JobManager) Submit(ctx context.Context, input int64) (Submission, error) {
	cached, err := m.store.GetResultByInput(ctx, input)
	if err != nil {
		return Submission{}, fmt.Errorf("lookup cached result for %d: %w", input, err)
	}
	if cached != nil {
		m.logger.Debug("serving cached result", slog.Int64("input", input), slog.String("job_id", cached.JobID))
		return Submission{
			JobID:        cached.JobID,
			Status:       state.StatusCompleted,
			FromCache:    true,
			Result:       cached.Result,
			ArtifactPath: cached.ArtifactPath,
		}, nil
	}

	rec := types.NewPendingJob(uuid.NewString(), input)
	if err := m.store.SetJob(ctx, rec); err != nil {
		return Submission{}, fmt.Errorf("create job: %w", err)
	}

	if err := m.scheduler.Submit(rec.ID, input); err != nil {
		if delErr := m.store.DeleteJob(ctx, rec.ID); delErr != nil {
			m.logger.Warn("failed to discard rejected job", slog.String("job_id", rec.ID), slog.String("error", delErr.Error()))
		}
		return Submission{}, err
	}

	m.logger.Info("job submitted", slog.String("job_id", rec.ID), slog.Int64("input", input))
	return Submission{JobID: rec.ID, Status: rec.Status}, nil
}

// Status returns ErrJobNotFound for unknown or expired jobs.
func (m *JobManager) Status(ctx context.Context, jobID string) (*types.JobRecord, error) {
	rec, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrJobNotFound
	}
	return rec, nil
}

// ResultByInput returns nil when no live result exists for input.
func (m *JobManager) ResultByInput(ctx context.Context, input int64) (*types.ResultEntry, error) {
	return m.store.GetResultByInput(ctx, input)
}

// Artifact resolves the file of a completed job, checking it still exists on
// disk since files expire independently of job records.
func (m *JobManager) Artifact(ctx context.Context, jobID string) (string, error) {
	rec, err := m.Status(ctx, jobID)
	if err != nil {
		return "", err
	}
	if rec.Status != state.StatusCompleted {
		return "", ErrJobNotCompleted
	}
	if rec.ArtifactPath == "" {
		return "", ErrArtifactMissing
	}
	if _, err := os.Stat(rec.ArtifactPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArtifactMissing, err)
	}
	return rec.ArtifactPath, nil
}

func (m *JobManager) Stats() ManagerStats {
	return ManagerStats{Stats: m.scheduler.Stats(), StoreMode: m.store.Mode().String()}
}
