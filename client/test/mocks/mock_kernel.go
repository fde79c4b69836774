package mocks

import (
	"context"
	"github.com/RezaEskandarii/jobcache/types"
)

// MockKernel is a mock implementation of client.Kernel for testing.
type MockKernel struct {
	ComputeFunc func(ctx context.Context, input int64) (string, error)
}

func (m *MockKernel) Compute(ctx context.Context, input int64) (string, error) {
	if m.ComputeFunc != nil {
		return m.ComputeFunc(ctx, input)
	}
	return "", nil
}

// MockRenderer is a mock implementation of client.Renderer for testing.
type MockRenderer struct {
	RenderFunc func(ctx context.Context, jobID string, input int64, result string) (string, error)
}

func (m *MockRenderer) Render(ctx context.Context, jobID string, input int64, result string) (string, error) {
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, jobID, input, result)
	}
	return "", nil
}

// MockNotifier is a mock implementation of client.Notifier for testing.
type MockNotifier struct {
	NotifyFunc func(ctx context.Context, rec types.JobRecord)
}

func (m *MockNotifier) Notify(ctx context.Context, rec types.JobRecord) {
	if m.NotifyFunc != nil {
		m.NotifyFunc(ctx, rec)
	}
}
