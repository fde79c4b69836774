package types

import (
	"github.com/RezaEskandarii/jobcache/internal/state"
	"time"
)

// JobRecord is the persisted lifecycle of a single job.
// Result and ArtifactPath are set only when Status is completed, Error only when failed.
type JobRecord struct {
	ID           string          `json:"jobId" msgpack:"jobId"`
	Input        int64           `json:"n" msgpack:"n"`
	Status       state.JobStatus `json:"status" msgpack:"status"`
	Result       string          `json:"result,omitempty" msgpack:"result,omitempty"`
	Error        string          `json:"error,omitempty" msgpack:"error,omitempty"`
	ArtifactPath string          `json:"artifactPath,omitempty" msgpack:"artifactPath,omitempty"`
	CreatedAt    time.Time       `json:"createdAt" msgpack:"createdAt"`
}

// NewPendingJob returns a fresh record for a job that has not been dispatched yet.
func NewPendingJob(id string, input int64) JobRecord {
	return JobRecord{
		ID:        id,
		Input:     input,
		Status:    state.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// ResultEntry is the Result Index value keyed by a job's input.
type ResultEntry struct {
	Result       string `json:"result" msgpack:"result"`
	ArtifactPath string `json:"artifactPath,omitempty" msgpack:"artifactPath,omitempty"`
	JobID        string `json:"jobId" msgpack:"jobId"`
}

// JobEvent is published when a job reaches a terminal status.
type JobEvent struct {
	JobID      string          `json:"jobId"`
	Input      int64           `json:"n"`
	Status     state.JobStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}
