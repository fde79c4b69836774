package mocks

import (
	"context"
	"github.com/RezaEskandarii/jobcache/internal/state"
	"github.com/RezaEskandarii/jobcache/internal/store"
	"github.com/RezaEskandarii/jobcache/types"
)

// MockJobStore is a mock implementation of client.JobStore for testing.
// Unset funcs report an absent job.
type MockJobStore struct {
	SetJobFunc           func(ctx context.Context, rec types.JobRecord) error
	GetJobFunc           func(ctx context.Context, jobID string) (*types.JobRecord, error)
	DeleteJobFunc        func(ctx context.Context, jobID string) error
	UpdateStatusFunc     func(ctx context.Context, jobID string, status state.JobStatus) (*types.JobRecord, error)
	UpdateResultFunc     func(ctx context.Context, jobID, result, artifactPath string) (*types.JobRecord, error)
	UpdateErrorFunc      func(ctx context.Context, jobID, message string) (*types.JobRecord, error)
	GetResultByInputFunc func(ctx context.Context, input int64) (*types.ResultEntry, error)
	ModeFunc             func() store.Mode
}

func (m *MockJobStore) SetJob(ctx context.Context, rec types.JobRecord) error {
	if m.SetJobFunc != nil {
		return m.SetJobFunc(ctx, rec)
	}
	return nil
}

func (m *MockJobStore) GetJob(ctx context.Context, jobID string) (*types.JobRecord, error) {
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, jobID)
	}
	return nil, nil
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) error {
	if m.DeleteJobFunc != nil {
		return m.DeleteJobFunc(ctx, jobID)
	}
	return nil
}

func (m *MockJobStore) UpdateStatus(ctx context.Context, jobID string, status state.JobStatus) (*types.JobRecord, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, jobID, status)
	}
	return nil, nil
}

func (m *MockJobStore) UpdateResult(ctx context.Context, jobID, result, artifactPath string) (*types.JobRecord, error) {
	if m.UpdateResultFunc != nil {
		return m.UpdateResultFunc(ctx, jobID, result, artifactPath)
	}
	return nil, nil
}

func (m *MockJobStore) UpdateError(ctx context.Context, jobID, message string) (*types.JobRecord, error) {
	if m.UpdateErrorFunc != nil {
		return m.UpdateErrorFunc(ctx, jobID, message)
	}
	return nil, nil
}

func (m *MockJobStore) GetResultByInput(ctx context.Context, input int64) (*types.ResultEntry, error) {
	if m.GetResultByInputFunc != nil {
		return m.GetResultByInputFunc(ctx, input)
	}
	return nil, nil
}

func (m *MockJobStore) Mode() store.Mode {
	if m.ModeFunc != nil {
		return m.ModeFunc()
	}
	return store.ModePrimary
}
