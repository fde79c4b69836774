// Package jobmanager is the embeddable entry point: it boots the whole service
// from an AppConfig and runs it until the context is cancelled.
package jobmanager

import (
	"context"
	"github.com/RezaEskandarii/jobcache/app"
	"github.com/RezaEskandarii/jobcache/types/config"
	"log/slog"
	"runtime"
)

// Run builds the dependency container, starts the scheduler and serves the
// HTTP API until ctx is cancelled.
//
// On shutdown the HTTP server drains first, then running jobs are cancelled
// and their outcome recorded, then store and broker connections are closed.
func Run(ctx context.Context, cfg *config.AppConfig, opts ...app.ContainerOption) error {
	container, err := app.NewContainer(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			container.Logger.Error("shutdown failed", slog.String("error", err.Error()))
		}
	}()

	container.Start(context.WithoutCancel(ctx))
	container.Logger.Info("jobcache running",
		slog.Int("gomaxprocs", runtime.GOMAXPROCS(0)),
		slog.Uint64("port", uint64(cfg.HTTPPort)),
		slog.Int("workers", cfg.Concurrency),
		slog.String("storage", cfg.StorageDriver.String()),
		slog.String("mode", container.Store.Mode().String()),
	)

	return container.RouteHandler.Serve(ctx)
}
