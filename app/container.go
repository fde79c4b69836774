package app

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/jobcache/client"
	"github.com/RezaEskandarii/jobcache/internal/artifact"
	"github.com/RezaEskandarii/jobcache/internal/kernel"
	"github.com/RezaEskandarii/jobcache/internal/message_broker"
	"github.com/RezaEskandarii/jobcache/internal/store"
	"github.com/RezaEskandarii/jobcache/internal/store/memory"
	"github.com/RezaEskandarii/jobcache/types/config"
	"github.com/RezaEskandarii/jobcache/web"
	"log/slog"
)

// Container holds all application dependencies. It is the single source of truth
// for dependency injection and ensures connections and services are created once.
type Container struct {
	Config *config.AppConfig
	Logger *slog.Logger

	Store    *store.StateStore
	Renderer *artifact.PDFRenderer
	Events   *message_broker.JobEventPublisher // nil unless event publishing is enabled

	Scheduler    *client.Scheduler
	JobManager   *client.JobManager
	RouteHandler *web.HttpRouteHandler
}

// NewContainer creates and wires all dependencies. Single entry point for DI.
// Call this once per application lifecycle, then Start.
// Pass optional WithDB, WithRedis to inject connections for testing.
func NewContainer(ctx context.Context, cfg *config.AppConfig, opts ...ContainerOption) (*Container, error) {
	opt := &containerConfig{}
	for _, o := range opts {
		o(opt)
	}

	logger := opt.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("instance", cfg.Instance))

	codec, err := store.CodecByName(cfg.EntryEncoding)
	if err != nil {
		return nil, err
	}

	primary, err := openPrimaryBackend(ctx, cfg, opt, logger)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	stateStore := store.NewStateStore(ctx, primary, memory.New(),
		store.WithCodec(codec),
		store.WithDefaultTTL(cfg.EntryTTL),
		store.WithLogger(logger),
	)

	renderer, err := artifact.NewPDFRenderer(cfg.ArtifactDir, cfg.EntryTTL, artifact.WithLogger(logger))
	if err != nil {
		_ = stateStore.Close()
		return nil, err
	}

	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Store:    stateStore,
		Renderer: renderer,
	}

	schedulerOpts := []client.SchedulerOption{
		client.WithRenderer(renderer),
		client.WithMaxBacklog(cfg.MaxBacklog),
		client.WithComputeTimeout(cfg.ComputeTimeout),
		client.WithSchedulerLogger(logger),
	}

	if cfg.UseEventPublisher {
		var broker message_broker.MessageBroker
		switch cfg.MQDriver {
		case config.RabbitMQ:
			mq, err := message_broker.NewRabbitMQ(
				cfg.RabbitMQConfig.URL,
				cfg.RabbitMQConfig.Exchange,
				cfg.RabbitMQConfig.Queue,
				cfg.RabbitMQConfig.RoutingKey,
			)
			if err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("init rabbitmq: %w", err)
			}
			broker = mq
		default:
			_ = c.Close()
			return nil, fmt.Errorf("unsupported message queue driver: %s", cfg.MQDriver)
		}
		c.Events = message_broker.NewJobEventPublisher(broker, logger)
		schedulerOpts = append(schedulerOpts, client.WithNotifier(c.Events))
	}

	var k client.Kernel = kernel.New()
	if opt.kernel != nil {
		k = opt.kernel
	}

	scheduler, err := client.NewScheduler(stateStore, k, cfg.Concurrency, schedulerOpts...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Scheduler = scheduler
	c.JobManager = client.NewJobManager(stateStore, scheduler, logger)
	c.RouteHandler = web.NewRouteHandler(c.JobManager, cfg.MaxInput, cfg.HTTPPort, logger)

	return c, nil
}

// Start launches the scheduler; it stops when ctx is cancelled or on Close.
func (c *Container) Start(ctx context.Context) {
	c.Scheduler.Start(ctx)
}

// Close stops the scheduler first so in-flight outcomes reach the store, then
// releases every connection.
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	var errs []error
	if c.Events != nil {
		errs = append(errs, c.Events.Close())
	}
	if c.Renderer != nil {
		errs = append(errs, c.Renderer.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
