package store

import (
	"context"
	"fmt"
	"github.com/robfig/cron/v3"
	"log/slog"
	"time"
)

// DefaultSweepSpec is how often SQL backends delete expired rows. Reads never
// return expired rows, so the sweep only reclaims space.
const DefaultSweepSpec = "@every 1m"

// Sweeper periodically runs a purge function on a cron schedule.
type Sweeper struct {
	cron   *cron.Cron
	purge  func(ctx context.Context, now time.Time) (int64, error)
	name   string
	logger *slog.Logger
}

// NewSweeper validates spec and prepares a sweeper; call Start to run it.
func NewSweeper(name, spec string, purge func(ctx context.Context, now time.Time) (int64, error), logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		cron:   cron.New(),
		purge:  purge,
		name:   name,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.purge(ctx, time.Now())
	if err != nil {
		s.logger.Error("expired entry sweep failed", slog.String("backend", s.name), slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Debug("expired entries swept", slog.String("backend", s.name), slog.Int64("rows", n))
	}
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
