package client

import (
	"context"
	"github.com/RezaEskandarii/jobcache/internal/state"
	"github.com/RezaEskandarii/jobcache/internal/store"
	"github.com/RezaEskandarii/jobcache/types"
)

// Kernel is the computation a dispatch unit runs for one input.
type Kernel interface {
	Compute(ctx context.Context, input int64) (string, error)
}

// Renderer turns a computed result into a downloadable artifact and returns
// its path.
type Renderer interface {
	Render(ctx context.Context, jobID string, input int64, result string) (string, error)
}

// Notifier is told about every terminal job update. It must not block for long
// and has no way to fail the job.
type Notifier interface {
	Notify(ctx context.Context, rec types.JobRecord)
}

// JobStore is the part of store.StateStore the scheduler and job manager use.
type JobStore interface {
	SetJob(ctx context.Context, rec types.JobRecord) error
	GetJob(ctx context.Context, jobID string) (*types.JobRecord, error)
	DeleteJob(ctx context.Context, jobID string) error
	UpdateStatus(ctx context.Context, jobID string, status state.JobStatus) (*types.JobRecord, error)
	UpdateResult(ctx context.Context, jobID, result, artifactPath string) (*types.JobRecord, error)
	UpdateError(ctx context.Context, jobID, message string) (*types.JobRecord, error)
	GetResultByInput(ctx context.Context, input int64) (*types.ResultEntry, error)
	Mode() store.Mode
}

var _ JobStore = (*store.StateStore)(nil)
