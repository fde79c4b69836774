package store

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/jobcache/internal/state"
	"github.com/RezaEskandarii/jobcache/types"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrInvalidTransition is returned when an update would move a job record
// outside pending -> processing -> {completed | failed}.
var ErrInvalidTransition = errors.New("state store: invalid status transition")

type Mode int32

const (
	ModePrimary Mode = iota
	ModeFallback
)

func (m Mode) String() string {
	if m == ModeFallback {
		return "fallback"
	}
	return "primary"
}

// StateStore holds job records and the result index. It starts on the primary
// backend and moves to the in-process fallback on the first primary failure,
// for the rest of its lifetime.
type StateStore struct {
	primary  Backend
	fallback Backend
	degraded atomic.Bool
	codec    Codec
	ttl      time.Duration
	logger   *slog.Logger
}

// Option configures a StateStore.
type Option func(*StateStore)

// WithCodec sets the codec used for job records and result entries.
func WithCodec(c Codec) Option {
	return func(s *StateStore) { s.codec = c }
}

// WithDefaultTTL sets the expiration applied when a caller passes ttl <= 0,
// and for every job record and result index entry.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *StateStore) { s.ttl = ttl }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *StateStore) { s.logger = l }
}

// NewStateStore pings primary and falls back immediately when it is nil or
// unreachable. fallback must be an in-process backend that never fails on I/O.
func NewStateStore(ctx context.Context, primary, fallback Backend, opts ...Option) *StateStore {
	s := &StateStore{
		primary:  primary,
		fallback: fallback,
		codec:    JSONCodec,
		ttl:      15 * time.Minute,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	if primary == nil {
		s.degraded.Store(true)
		s.logger.Info("state store running on in-memory backend")
		return s
	}

	if err := primary.Ping(ctx); err != nil {
		s.switchToFallback("connect", err)
	} else {
		s.logger.Info("state store connected to primary backend")
	}
	return s
}

// Mode reports the backend currently serving requests.
func (s *StateStore) Mode() Mode {
	if s.degraded.Load() {
		return ModeFallback
	}
	return ModePrimary
}

// TTL returns the expiration applied to job records and result entries.
func (s *StateStore) TTL() time.Duration { return s.ttl }

func (s *StateStore) switchToFallback(op string, cause error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("switching state store to in-memory fallback",
			slog.String("op", op),
			slog.String("error", cause.Error()),
		)
	}
}

// exec runs fn on the active backend. A primary failure flips the store to
// fallback mode and is reported to this caller only.
func (s *StateStore) exec(ctx context.Context, op string, fn func(Backend) error) error {
	if s.degraded.Load() {
		return fn(s.fallback)
	}
	err := fn(s.primary)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}
	s.switchToFallback(op, err)
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func (s *StateStore) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.ttl
	}
	return ttl
}

func (s *StateStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ttl = s.ttlOrDefault(ttl)
	return s.exec(ctx, "put", func(b Backend) error {
		return b.Put(ctx, key, value, ttl)
	})
}

func (s *StateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := s.exec(ctx, "get", func(b Backend) error {
		var err error
		value, found, err = b.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (s *StateStore) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := s.exec(ctx, "exists", func(b Backend) error {
		var err error
		found, err = b.Exists(ctx, key)
		return err
	})
	return found, err
}

func (s *StateStore) Delete(ctx context.Context, key string) error {
	return s.exec(ctx, "delete", func(b Backend) error {
		return b.Delete(ctx, key)
	})
}

// SetJob stores rec under its ID, replacing any previous record.
func (s *StateStore) SetJob(ctx context.Context, rec types.JobRecord) error {
	data, err := s.codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", rec.ID, err)
	}
	return s.Put(ctx, jobKey(rec.ID), data, s.ttl)
}

// GetJob returns nil when the record never existed or has expired.
func (s *StateStore) GetJob(ctx context.Context, jobID string) (*types.JobRecord, error) {
	data, found, err := s.Get(ctx, jobKey(jobID))
	if err != nil || !found {
		return nil, err
	}
	var rec types.JobRecord
	if err := s.codec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &rec, nil
}

func (s *StateStore) JobExists(ctx context.Context, jobID string) (bool, error) {
	return s.Exists(ctx, jobKey(jobID))
}

func (s *StateStore) DeleteJob(ctx context.Context, jobID string) error {
	return s.Delete(ctx, jobKey(jobID))
}

// UpdateStatus moves the record to status. A nil record with a nil error means
// the job is unknown: expired or never created.
func (s *StateStore) UpdateStatus(ctx context.Context, jobID string, status state.JobStatus) (*types.JobRecord, error) {
	rec, err := s.GetJob(ctx, jobID)
	if err != nil || rec == nil {
		return nil, err
	}
	if !state.IsValidTransition(rec.Status, status) {
		return nil, fmt.Errorf("%w: job %s %s -> %s", ErrInvalidTransition, jobID, rec.Status, status)
	}
	rec.Status = status
	if err := s.SetJob(ctx, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateResult completes the job and indexes its result by the input stored in
// the record. Both writes land in a single atomic backend update.
func (s *StateStore) UpdateResult(ctx context.Context, jobID, result, artifactPath string) (*types.JobRecord, error) {
	rec, err := s.GetJob(ctx, jobID)
	if err != nil || rec == nil {
		return nil, err
	}
	if !state.IsValidTransition(rec.Status, state.StatusCompleted) {
		return nil, fmt.Errorf("%w: job %s %s -> %s", ErrInvalidTransition, jobID, rec.Status, state.StatusCompleted)
	}
	rec.Status = state.StatusCompleted
	rec.Result = result
	rec.ArtifactPath = artifactPath
	rec.Error = ""

	jobData, err := s.codec.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", jobID, err)
	}
	indexData, err := s.codec.Marshal(types.ResultEntry{Result: result, ArtifactPath: artifactPath, JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("encode result entry for %d: %w", rec.Input, err)
	}

	err = s.exec(ctx, "update result", func(b Backend) error {
		return b.PutAll(ctx, s.ttl,
			types.Entry{Key: jobKey(jobID), Value: jobData},
			types.Entry{Key: resultKey(rec.Input), Value: indexData},
		)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateError marks the job failed with message.
func (s *StateStore) UpdateError(ctx context.Context, jobID, message string) (*types.JobRecord, error) {
	rec, err := s.GetJob(ctx, jobID)
	if err != nil || rec == nil {
		return nil, err
	}
	if !state.IsValidTransition(rec.Status, state.StatusFailed) {
		return nil, fmt.Errorf("%w: job %s %s -> %s", ErrInvalidTransition, jobID, rec.Status, state.StatusFailed)
	}
	rec.Status = state.StatusFailed
	rec.Error = message
	rec.Result = ""
	rec.ArtifactPath = ""
	if err := s.SetJob(ctx, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetResultByInput returns nil when no live entry exists for input.
func (s *StateStore) GetResultByInput(ctx context.Context, input int64) (*types.ResultEntry, error) {
	data, found, err := s.Get(ctx, resultKey(input))
	if err != nil || !found {
		return nil, err
	}
	var entry types.ResultEntry
	if err := s.codec.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode result entry for %d: %w", input, err)
	}
	return &entry, nil
}

// CacheResultByInput overwrites the index entry for input.
func (s *StateStore) CacheResultByInput(ctx context.Context, input int64, entry types.ResultEntry) error {
	data, err := s.codec.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode result entry for %d: %w", input, err)
	}
	return s.Put(ctx, resultKey(input), data, s.ttl)
}

// Close releases both backends.
func (s *StateStore) Close() error {
	var errs []error
	if s.primary != nil {
		errs = append(errs, s.primary.Close())
	}
	if s.fallback != nil {
		errs = append(errs, s.fallback.Close())
	}
	return errors.Join(errs...)
}
