package app

import (
	"context"
	"fmt"
	"github.com/RezaEskandarii/jobcache/internal/lock"
	"github.com/RezaEskandarii/jobcache/internal/store"
	"github.com/RezaEskandarii/jobcache/internal/store/postgres"
	redisstore "github.com/RezaEskandarii/jobcache/internal/store/redis"
	"github.com/RezaEskandarii/jobcache/internal/store/sqlite"
	"github.com/RezaEskandarii/jobcache/types/config"
	"github.com/redis/go-redis/v9"
	"log/slog"
)

// openPrimaryBackend builds the backend for cfg.StorageDriver. A nil backend
// with a nil error means the store runs on the in-process fallback, either
// because it was asked to or because the primary could not be prepared.
func openPrimaryBackend(ctx context.Context, cfg *config.AppConfig, opt *containerConfig, logger *slog.Logger) (store.Backend, error) {
	switch cfg.StorageDriver {
	case config.Memory:
		return nil, nil

	case config.Redis:
		client := opt.redis
		if client == nil {
			client = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisConfig.Address,
				Password: cfg.RedisConfig.Password,
				DB:       cfg.RedisConfig.DB,
			})
		}
		return redisstore.New(client), nil

	case config.Postgres:
		db := opt.db
		if db == nil {
			var err error
			if db, err = postgres.Open(cfg.PostgresConfig.ConnectionUrl); err != nil {
				return nil, err
			}
		}
		pg := postgres.New(db, lock.NewPostgresDistributedLockManager(db), logger)
		if err := pg.Migrate(ctx); err != nil {
			logger.Warn("postgres unavailable, using in-memory store", slog.String("error", err.Error()))
			_ = pg.Close()
			return nil, nil
		}
		if err := pg.StartSweeper(store.DefaultSweepSpec); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil

	case config.SQLite:
		lite, err := sqlite.Open(ctx, cfg.SQLiteConfig.Path, logger)
		if err != nil {
			logger.Warn("sqlite unavailable, using in-memory store", slog.String("error", err.Error()))
			return nil, nil
		}
		if err := lite.StartSweeper(store.DefaultSweepSpec); err != nil {
			_ = lite.Close()
			return nil, err
		}
		return lite, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %v", cfg.StorageDriver)
	}
}
