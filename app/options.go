package app

import (
	"database/sql"
	"github.com/RezaEskandarii/jobcache/client"
	"github.com/redis/go-redis/v9"
	"log/slog"
)

// ContainerOption configures Container creation. Used for testing and customization.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	// Optional: inject custom connections instead of creating them from config
	db     *sql.DB
	redis  redis.UniversalClient
	kernel client.Kernel
	logger *slog.Logger
}

// WithDB injects the database used by the postgres driver. Useful for testing.
func WithDB(db *sql.DB) ContainerOption {
	return func(c *containerConfig) {
		c.db = db
	}
}

// WithRedis injects a custom Redis client. Useful for testing.
func WithRedis(redis redis.UniversalClient) ContainerOption {
	return func(c *containerConfig) {
		c.redis = redis
	}
}

// WithKernel replaces the default Fibonacci kernel.
func WithKernel(k client.Kernel) ContainerOption {
	return func(c *containerConfig) {
		c.kernel = k
	}
}

func WithLogger(l *slog.Logger) ContainerOption {
	return func(c *containerConfig) {
		c.logger = l
	}
}
