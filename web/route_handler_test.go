package web

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/RezaEskandarii/jobcache/client"
	"github.com/RezaEskandarii/jobcache/internal/state"
	"github.com/RezaEskandarii/jobcache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeJobs struct {
	submitFunc   func(ctx context.Context, input int64) (client.Submission, error)
	statusFunc   func(ctx context.Context, jobID string) (*types.JobRecord, error)
	artifactFunc func(ctx context.Context, jobID string) (string, error)
	stats        client.ManagerStats
}

func (f *fakeJobs) Submit(ctx context.Context, input int64) (client.Submission, error) {
	if f.submitFunc != nil {
		return f.submitFunc(ctx, input)
	}
	return client.Submission{JobID: "job-1", Status: state.StatusPending}, nil
}

func (f *fakeJobs) Status(ctx context.Context, jobID string) (*types.JobRecord, error) {
	if f.statusFunc != nil {
		return f.statusFunc(ctx, jobID)
	}
	return nil, client.ErrJobNotFound
}

func (f *fakeJobs) Artifact(ctx context.Context, jobID string) (string, error) {
	if f.artifactFunc != nil {
		return f.artifactFunc(ctx, jobID)
	}
	return "", client.ErrJobNotFound
}

func (f *fakeJobs) Stats() client.ManagerStats { return f.stats }

func do(t *testing.T, jobs JobService, method, target, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	handler := NewRouteHandler(jobs, 100000, 0, nil).Routes()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHandleTest(t *testing.T) {
	rec, body := do(t, &fakeJobs{}, http.MethodGet, "/api/fibonacci/test", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "1.0", body["apiVersion"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHandleSubmit_Validation(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantError   string
	}{
		{"missing", "application/json", `{}`, "Missing parameter: n"},
		{"null", "application/json", `{"n": null}`, "Missing parameter: n"},
		{"empty body", "application/json", ``, "Missing parameter: n"},
		{"not a number", "application/json", `{"n": "abc"}`, "Parameter n must be a number"},
		{"negative", "application/json", `{"n": -1}`, "Parameter n must be a non-negative integer"},
		{"too large", "application/json", `{"n": 100001}`, "Parameter n must be less than or equal to 100000"},
		{"malformed", "application/json", `{"n":`, "Invalid request body"},
		{"form missing", "application/x-www-form-urlencoded", `x=1`, "Missing parameter: n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{submitFunc: func(ctx context.Context, input int64) (client.Submission, error) {
				t.Fatal("submit must not be called")
				return client.Submission{}, nil
			}}
			rec, body := do(t, jobs, http.MethodPost, "/api/fibonacci", tt.contentType, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantError, body["error"])
			assert.Equal(t, "1.0", body["apiVersion"])
		})
	}
}

func TestHandleSubmit_AcceptsBoundaryAndLenientInput(t *testing.T) {
	tests := []struct {
		contentType string
		body        string
		want        int64
	}{
		{"application/json", `{"n": 100000}`, 100000},
		{"application/json", `{"n": 0}`, 0},
		{"application/json", `{"n": "42"}`, 42},
		{"application/json", `{"n": 12.9}`, 12},
		{"application/x-www-form-urlencoded", `n=7`, 7},
	}

	for _, tt := range tests {
		var got int64 = -1
		jobs := &fakeJobs{submitFunc: func(ctx context.Context, input int64) (client.Submission, error) {
			got = input
			return client.Submission{JobID: "job-1", Status: state.StatusPending}, nil
		}}
		rec, body := do(t, jobs, http.MethodPost, "/api/fibonacci", tt.contentType, tt.body)
		assert.Equal(t, http.StatusAccepted, rec.Code, tt.body)
		assert.Equal(t, tt.want, got, tt.body)
		assert.Equal(t, "job-1", body["jobId"])
		assert.Equal(t, "pending", body["status"])
	}
}

func TestHandleSubmit_FromCache(t *testing.T) {
	jobs := &fakeJobs{submitFunc: func(ctx context.Context, input int64) (client.Submission, error) {
		return client.Submission{JobID: "old", Status: state.StatusCompleted, FromCache: true, Result: "13"}, nil
	}}

	rec, body := do(t, jobs, http.MethodPost, "/api/fibonacci/", "application/json", `{"n": 7}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "old", body["jobId"])
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "13", body["result"])
	assert.Equal(t, true, body["fromCache"])
	assert.Equal(t, float64(7), body["n"])
	assert.Equal(t, "/api/fibonacci/download/old", body["downloadUrl"])
}

func TestHandleSubmit_Errors(t *testing.T) {
	jobs := &fakeJobs{submitFunc: func(ctx context.Context, input int64) (client.Submission, error) {
		return client.Submission{}, client.ErrBacklogFull
	}}
	rec, _ := do(t, jobs, http.MethodPost, "/api/fibonacci", "application/json", `{"n": 1}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	jobs.submitFunc = func(ctx context.Context, input int64) (client.Submission, error) {
		return client.Submission{}, errors.New("redis down")
	}
	rec, body := do(t, jobs, http.MethodPost, "/api/fibonacci", "application/json", `{"n": 1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
}

func TestHandleStatus(t *testing.T) {
	records := map[string]*types.JobRecord{
		"p": {ID: "p", Input: 5, Status: state.StatusProcessing},
		"c": {ID: "c", Input: 10, Status: state.StatusCompleted, Result: "55", ArtifactPath: "/x.pdf"},
		"f": {ID: "f", Input: 10, Status: state.StatusFailed, Error: "computation failed: boom"},
	}
	jobs := &fakeJobs{statusFunc: func(ctx context.Context, jobID string) (*types.JobRecord, error) {
		if rec, ok := records[jobID]; ok {
			return rec, nil
		}
		return nil, client.ErrJobNotFound
	}}

	rec, body := do(t, jobs, http.MethodGet, "/api/fibonacci/status/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job not found or expired", body["error"])

	rec, body = do(t, jobs, http.MethodGet, "/api/fibonacci/status/p", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, float64(5), body["n"])
	assert.NotContains(t, body, "result")
	assert.NotContains(t, body, "error")

	_, body = do(t, jobs, http.MethodGet, "/api/fibonacci/status/c", "", "")
	assert.Equal(t, "55", body["result"])
	assert.Equal(t, "/api/fibonacci/download/c", body["downloadUrl"])

	_, body = do(t, jobs, http.MethodGet, "/api/fibonacci/status/f", "", "")
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "computation failed: boom", body["error"])
	assert.NotContains(t, body, "result")
}

func TestHandleDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 test"), 0o644))

	jobs := &fakeJobs{artifactFunc: func(ctx context.Context, jobID string) (string, error) {
		switch jobID {
		case "c":
			return path, nil
		case "p":
			return "", client.ErrJobNotCompleted
		case "gone":
			return "", client.ErrArtifactMissing
		}
		return "", client.ErrJobNotFound
	}}

	rec, _ := do(t, jobs, http.MethodGet, "/api/fibonacci/download/c", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="fibonacci-c.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3 test", rec.Body.String())

	rec, body := do(t, jobs, http.MethodGet, "/api/fibonacci/download/p", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Job is not completed yet", body["error"])

	rec, body = do(t, jobs, http.MethodGet, "/api/fibonacci/download/gone", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PDF file not found or expired", body["error"])

	rec, body = do(t, jobs, http.MethodGet, "/api/fibonacci/download/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job not found or expired", body["error"])
}

func TestHandleStats(t *testing.T) {
	jobs := &fakeJobs{stats: client.ManagerStats{
		Stats:     client.Stats{Ceiling: 2, Active: 1, Backlog: 4},
		StoreMode: "primary",
	}}

	rec, body := do(t, jobs, http.MethodGet, "/api/fibonacci/stats", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["maxWorkers"])
	assert.Equal(t, float64(1), body["activeWorkers"])
	assert.Equal(t, float64(4), body["queueLength"])
	assert.Equal(t, "primary", body["storeMode"])
}

func TestHandleIndex(t *testing.T) {
	jobs := &fakeJobs{stats: client.ManagerStats{Stats: client.Stats{Ceiling: 2}, StoreMode: "fallback"}}

	rec, _ := do(t, jobs, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fibonacci calculator")
	assert.Contains(t, rec.Body.String(), "fallback")
	assert.Contains(t, rec.Body.String(), "badge bg-success")
}

func TestRecoverMiddleware(t *testing.T) {
	jobs := &fakeJobs{statusFunc: func(ctx context.Context, jobID string) (*types.JobRecord, error) {
		panic("unexpected")
	}}

	rec, body := do(t, jobs, http.MethodGet, "/api/fibonacci/status/x", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
}

func TestStatusBadgeClass(t *testing.T) {
	assert.Equal(t, "badge bg-danger", StatusBadgeClass(state.StatusFailed))
	assert.Equal(t, "badge bg-light text-dark", StatusBadgeClass("unknown"))
}
