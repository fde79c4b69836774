package main

import (
	"fmt"
	"github.com/RezaEskandarii/jobcache/types/config"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"strings"
	"time"
)

type rootFlags struct {
	instance       string
	workers        int
	ttlSeconds     int
	maxInput       int64
	maxBacklog     int
	computeTimeout time.Duration
	storage        string
	redisAddr      string
	redisPassword  string
	redisDB        int
	postgresURL    string
	sqlitePath     string
	encoding       string
	resultsDir     string
	port           uint
	rabbitURL      string
	rabbitExchange string
	rabbitQueue    string
	rabbitKey      string
	logLevel       string
	logFormat      string
}

func newRootCmd() *cobra.Command {
	cmd, _ := buildRootCmd()
	return cmd
}

func buildRootCmd() (*cobra.Command, *rootFlags) {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "jobcache",
		Short:         "Bounded Fibonacci job runner with a self-healing result cache",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(flags.logLevel, flags.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.instance, "instance", hostname(), "instance name used in logs")
	pf.IntVar(&flags.workers, "workers", config.DefaultConcurrency, "maximum concurrent computations (env MAX_WORKERS)")
	pf.IntVar(&flags.ttlSeconds, "ttl", int(config.DefaultEntryTTL/time.Second), "seconds before jobs, results and PDFs expire (env PDF_EXPIRY_SECONDS)")
	pf.Int64Var(&flags.maxInput, "max-n", config.DefaultMaxInput, "largest accepted n (env MAX_FIBONACCI_N)")
	pf.IntVar(&flags.maxBacklog, "max-backlog", 0, "reject submissions once this many jobs wait; 0 is unbounded")
	pf.DurationVar(&flags.computeTimeout, "compute-timeout", 0, "fail computations running longer than this; 0 disables")
	pf.StringVar(&flags.storage, "storage", config.DefaultStorageDriver.String(), "primary store: redis, postgres, sqlite or memory")
	pf.StringVar(&flags.redisAddr, "redis-addr", config.DefaultRedisAddress, "redis address (env REDIS_HOST, REDIS_PORT)")
	pf.StringVar(&flags.redisPassword, "redis-password", "", "redis password")
	pf.IntVar(&flags.redisDB, "redis-db", 0, "redis database number")
	pf.StringVar(&flags.postgresURL, "postgres-url", "", "postgres connection URL")
	pf.StringVar(&flags.sqlitePath, "sqlite-path", "jobcache.db", "sqlite database file")
	pf.StringVar(&flags.encoding, "encoding", config.DefaultEntryEncoding, "store entry encoding: json or msgpack")
	pf.StringVar(&flags.resultsDir, "results-dir", config.DefaultArtifactDir, "directory for generated PDFs")
	pf.UintVar(&flags.port, "port", config.DefaultHTTPPort, "HTTP port (env PORT)")
	pf.StringVar(&flags.rabbitURL, "rabbitmq-url", "", "publish job events to this RabbitMQ broker")
	pf.StringVar(&flags.rabbitExchange, "rabbitmq-exchange", "jobcache", "RabbitMQ exchange for job events")
	pf.StringVar(&flags.rabbitQueue, "rabbitmq-queue", "jobcache.events", "RabbitMQ queue for job events")
	pf.StringVar(&flags.rabbitKey, "rabbitmq-routing-key", "", "RabbitMQ routing key; defaults to the queue name")
	pf.StringVar(&flags.logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", "text", "text or json")

	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newComputeCmd(flags))
	rootCmd.AddCommand(newEventsCmd(flags))
	return rootCmd, flags
}

// appConfig layers environment variables under explicitly set flags.
func (f *rootFlags) appConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	opts := []config.Option{config.FromEnv()}

	if changed("workers") {
		opts = append(opts, config.WithConcurrency(f.workers))
	}
	if changed("ttl") {
		opts = append(opts, config.WithEntryTTL(f.ttlSeconds))
	}
	if changed("max-n") {
		opts = append(opts, config.WithMaxInput(f.maxInput))
	}
	if changed("port") {
		opts = append(opts, config.WithHTTPPort(f.port))
	}
	opts = append(opts,
		config.WithMaxBacklog(f.maxBacklog),
		config.WithComputeTimeout(f.computeTimeout),
		config.WithEntryEncoding(f.encoding),
		config.WithArtifactDir(f.resultsDir),
	)

	driver, ok := config.ParseStorageDriver(f.storage)
	if !ok {
		return nil, fmt.Errorf("unknown storage driver %q", f.storage)
	}
	switch driver {
	case config.Redis:
		if changed("redis-addr") || changed("redis-password") || changed("redis-db") {
			opts = append(opts, config.WithRedisConfig(config.RedisConfig{
				Address:  f.redisAddr,
				Password: f.redisPassword,
				DB:       f.redisDB,
			}))
		}
	case config.Postgres:
		opts = append(opts, config.WithPostgresConfig(config.PostgresConfig{ConnectionUrl: f.postgresURL}))
	case config.SQLite:
		opts = append(opts, config.WithSQLiteConfig(config.SQLiteConfig{Path: f.sqlitePath}))
	case config.Memory:
		opts = append(opts, config.WithMemoryStorage())
	}

	if f.rabbitURL != "" {
		opts = append(opts, config.WithRabbitMQConfig(config.RabbitMQConfig{
			URL:        f.rabbitURL,
			Exchange:   f.rabbitExchange,
			Queue:      f.rabbitQueue,
			RoutingKey: f.rabbitKey,
		}))
	}

	return config.NewAppConfig(f.instance, opts...)
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "jobcache"
	}
	return name
}
