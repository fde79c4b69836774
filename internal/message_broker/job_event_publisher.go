package message_broker

import (
	"context"
	"encoding/json"
	"github.com/RezaEskandarii/jobcache/types"
	"log/slog"
	"time"
)

// JobEventPublisher announces terminal job updates on a MessageBroker.
// Publishing is best effort: failures are logged, never returned, so a broker
// outage cannot change a job's outcome.
type JobEventPublisher struct {
	broker  MessageBroker
	timeout time.Duration
	logger  *slog.Logger
}

func NewJobEventPublisher(broker MessageBroker, logger *slog.Logger) *JobEventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobEventPublisher{broker: broker, timeout: 5 * time.Second, logger: logger}
}

func (p *JobEventPublisher) Notify(ctx context.Context, rec types.JobRecord) {
	event := types.JobEvent{
		JobID:      rec.ID,
		Input:      rec.Input,
		Status:     rec.Status,
		Error:      rec.Error,
		OccurredAt: time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode job event", slog.String("job_id", rec.ID), slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.broker.Publish(ctx, body); err != nil {
		p.logger.Warn("failed to publish job event", slog.String("job_id", rec.ID), slog.String("error", err.Error()))
	}
}

// Close closes the underlying broker.
func (p *JobEventPublisher) Close() error {
	return p.broker.Close()
}
