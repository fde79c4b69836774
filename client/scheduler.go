package client

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/jobcache/internal/state"
	"github.com/RezaEskandarii/jobcache/types"
	"golang.org/x/sync/semaphore"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrBacklogFull is returned by Submit when a backlog bound is configured
	// and reached.
	ErrBacklogFull = errors.New("scheduler: backlog is full")

	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("scheduler: not running")
)

const storeWriteTimeout = 10 * time.Second

type queuedJob struct {
	id    string
	input int64
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Ceiling int `json:"maxWorkers"`
	Active  int `json:"activeWorkers"`
	Backlog int `json:"queueLength"`
}

// Scheduler runs jobs on at most ceiling dispatch units, in submission order.
//
// A single control loop owns dispatching and every status write: it marks a
// job processing before its unit starts, records the terminal outcome when the
// unit exits, and only then frees the slot and dispatches the next job.
type Scheduler struct {
	store          JobStore
	kernel         Kernel
	renderer       Renderer
	notifier       Notifier
	ceiling        int
	maxBacklog     int
	computeTimeout time.Duration
	logger         *slog.Logger

	slots *semaphore.Weighted
	exits chan types.UnitExit
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}

	mu      sync.Mutex
	backlog []queuedJob
	active  int
	running bool

	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

type SchedulerOption func(*Scheduler)

// WithRenderer adds an artifact step after a successful computation.
func WithRenderer(r Renderer) SchedulerOption {
	return func(s *Scheduler) { s.renderer = r }
}

func WithNotifier(n Notifier) SchedulerOption {
	return func(s *Scheduler) { s.notifier = n }
}

// WithMaxBacklog bounds the number of jobs waiting for a slot. Zero means
// unbounded.
func WithMaxBacklog(n int) SchedulerOption {
	return func(s *Scheduler) { s.maxBacklog = n }
}

// WithComputeTimeout fails a job whose computation runs longer than d.
func WithComputeTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.computeTimeout = d }
}

func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

func NewScheduler(jobStore JobStore, kernel Kernel, ceiling int, opts ...SchedulerOption) (*Scheduler, error) {
	if jobStore == nil {
		return nil, errors.New("scheduler: job store is required")
	}
	if kernel == nil {
		return nil, errors.New("scheduler: kernel is required")
	}
	if ceiling <= 0 {
		return nil, fmt.Errorf("scheduler: ceiling must be positive, got %d", ceiling)
	}

	s := &Scheduler{
		store:   jobStore,
		kernel:  kernel,
		ceiling: ceiling,
		logger:  slog.Default(),
		slots:   semaphore.NewWeighted(int64(ceiling)),
		// at most ceiling units are in flight, so a unit never blocks on exit
		exits: make(chan types.UnitExit, ceiling),
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Start launches the control loop. Units inherit ctx; cancelling it stops the
// scheduler like Stop does.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	go s.loop()
	s.logger.Info("scheduler started", slog.Int("ceiling", s.ceiling))
}

// Submit appends the job to the backlog and returns without waiting for it to
// run. The job record must already exist in the store as pending.
func (s *Scheduler) Submit(jobID string, input int64) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if s.maxBacklog > 0 && len(s.backlog) >= s.maxBacklog {
		s.mu.Unlock()
		return ErrBacklogFull
	}
	s.backlog = append(s.backlog, queuedJob{id: jobID, input: input})
	backlog := len(s.backlog)
	s.mu.Unlock()

	s.logger.Debug("job queued", slog.String("job_id", jobID), slog.Int64("input", input), slog.Int("backlog", backlog))

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Ceiling: s.ceiling, Active: s.active, Backlog: len(s.backlog)}
}

// Stop cancels running units, records their outcome and returns once the
// control loop has exited. Jobs still in the backlog stay pending.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.ctx != nil
	s.mu.Unlock()
	if !started {
		return
	}
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.dispatch()
		case exit := <-s.exits:
			s.finish(exit)
			s.dispatch()
		case <-s.quit:
			s.shutdown()
			return
		case <-s.ctx.Done():
			s.shutdown()
			return
		}
	}
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.cancel()

	for s.Stats().Active > 0 {
		s.finish(<-s.exits)
	}
	s.logger.Info("scheduler stopped", slog.Int("backlog", s.Stats().Backlog))
}

// dispatch starts backlog heads while slots are free.
func (s *Scheduler) dispatch() {
	for {
		s.mu.Lock()
		if len(s.backlog) == 0 || !s.slots.TryAcquire(1) {
			s.mu.Unlock()
			return
		}
		job := s.backlog[0]
		s.backlog[0] = queuedJob{}
		s.backlog = s.backlog[1:]
		s.active++
		s.mu.Unlock()

		if !s.markProcessing(job) {
			s.releaseSlot()
			continue
		}

		unit := dispatchUnit{
			jobID:    job.id,
			input:    job.input,
			kernel:   s.kernel,
			renderer: s.renderer,
			timeout:  s.computeTimeout,
			logger:   s.logger,
		}
		go unit.run(s.ctx, s.exits)
	}
}

func (s *Scheduler) markProcessing(job queuedJob) bool {
	ctx, cancel := s.writeContext()
	defer cancel()

	rec, err := s.store.UpdateStatus(ctx, job.id, state.StatusProcessing)
	if err != nil {
		s.logger.Error("failed to mark job processing, dropping it",
			slog.String("job_id", job.id),
			slog.String("error", err.Error()),
		)
		return false
	}
	if rec == nil {
		s.logger.Warn("job expired before dispatch", slog.String("job_id", job.id))
		return false
	}
	s.logger.Info("job dispatched", slog.String("job_id", job.id), slog.Int64("input", job.input))
	return true
}

// finish records the terminal outcome of a unit, then frees its slot.
func (s *Scheduler) finish(exit types.UnitExit) {
	defer s.releaseSlot()

	ctx, cancel := s.writeContext()
	defer cancel()

	var (
		rec *types.JobRecord
		err error
	)
	switch {
	case exit.Code != types.ExitOK || exit.Message == nil:
		code := exit.Code
		if code == types.ExitOK {
			code = types.ExitNoResult
		}
		rec, err = s.store.UpdateError(ctx, exit.JobID, fmt.Sprintf("worker terminated abnormally (exit code %d)", code))
	case exit.Message.Failed():
		rec, err = s.store.UpdateError(ctx, exit.JobID, exit.Message.Err)
	default:
		rec, err = s.store.UpdateResult(ctx, exit.JobID, exit.Message.Result, exit.Message.ArtifactPath)
	}

	if err != nil {
		s.logger.Error("failed to record job outcome", slog.String("job_id", exit.JobID), slog.String("error", err.Error()))
		return
	}
	if rec == nil {
		s.logger.Warn("job expired before completion", slog.String("job_id", exit.JobID))
		return
	}

	s.logger.Info("job finished",
		slog.String("job_id", rec.ID),
		slog.String("status", rec.Status.String()),
		slog.Int("exit_code", exit.Code),
	)
	if s.notifier != nil {
		s.notifier.Notify(ctx, *rec)
	}
}

func (s *Scheduler) releaseSlot() {
	s.mu.Lock()
	s.active--
	s.slots.Release(1)
	s.mu.Unlock()
}

// writeContext outlives Stop so outcomes of cancelled units are still saved.
func (s *Scheduler) writeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(s.ctx), storeWriteTimeout)
}
