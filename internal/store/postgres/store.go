// Package postgres implements store.Backend on a single PostgreSQL table.
// Rows carry an absolute expires_at; reads ignore expired rows and a cron
// sweeper deletes them, guarded by an advisory lock so only one instance
// sweeps at a time.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/jobcache/internal/constants"
	"github.com/RezaEskandarii/jobcache/internal/lock"
	"github.com/RezaEskandarii/jobcache/internal/store"
	"github.com/RezaEskandarii/jobcache/types"
	_ "github.com/lib/pq"
	"log/slog"
	"time"
)

var _ store.Backend = (*Store)(nil)

const schema = "jobcache_schema"

var migrations = []string{
	`CREATE SCHEMA IF NOT EXISTS ` + schema,
	`CREATE TABLE IF NOT EXISTS ` + schema + `.entries (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS entries_expires_at_idx ON ` + schema + `.entries (expires_at)`,
}

const (
	upsertQuery = `
		INSERT INTO jobcache_schema.entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at`
	selectQuery = `SELECT value FROM jobcache_schema.entries WHERE key = $1 AND expires_at > $2`
	existsQuery = `SELECT EXISTS (SELECT 1 FROM jobcache_schema.entries WHERE key = $1 AND expires_at > $2)`
	deleteQuery = `DELETE FROM jobcache_schema.entries WHERE key = $1`
	purgeQuery  = `DELETE FROM jobcache_schema.entries WHERE expires_at <= $1`
)

type Store struct {
	db      *sql.DB
	lock    lock.DistributedLockManager
	sweeper *store.Sweeper
	logger  *slog.Logger
}

// New wraps db. Call Migrate before use and StartSweeper to reclaim expired rows.
func New(db *sql.DB, lockManager lock.DistributedLockManager, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, lock: lockManager, logger: logger}
}

// Open connects with the given URL.
func Open(connectionURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the schema and table. Only one instance migrates at a time.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.lock.Acquire(ctx, constants.MigrationLock); err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Release(ctx, constants.MigrationLock); err != nil {
			s.logger.Warn("release migration lock", slog.String("error", err.Error()))
		}
	}()

	for _, script := range migrations {
		if _, err := s.db.ExecContext(ctx, script); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// StartSweeper schedules Purge with a cron spec such as store.DefaultSweepSpec.
func (s *Store) StartSweeper(spec string) error {
	sweeper, err := store.NewSweeper("postgres", spec, s.purgeLocked, s.logger)
	if err != nil {
		return err
	}
	s.sweeper = sweeper
	sweeper.Start()
	return nil
}

func (s *Store) purgeLocked(ctx context.Context, now time.Time) (int64, error) {
	ok, err := s.lock.TryAcquire(ctx, constants.PurgeLock)
	if err != nil || !ok {
		return 0, err
	}
	defer func() {
		if err := s.lock.Release(ctx, constants.PurgeLock); err != nil {
			s.logger.Warn("release purge lock", slog.String("error", err.Error()))
		}
	}()
	return s.Purge(ctx, now)
}

// Purge deletes every row expired at now.
func (s *Store) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, purgeQuery, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres: purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := s.db.ExecContext(ctx, upsertQuery, key, value, time.Now().Add(ttl).UTC()); err != nil {
		return fmt.Errorf("postgres: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) PutAll(ctx context.Context, ttl time.Duration, entries ...types.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	expiresAt := time.Now().Add(ttl).UTC()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, upsertQuery, e.Key, e.Value, expiresAt); err != nil {
			return fmt.Errorf("postgres: put %s: %w", e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, selectQuery, key, time.Now().UTC()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, existsQuery, key, time.Now().UTC()).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: exists %s: %w", key, err)
	}
	return exists, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteQuery, key); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops the sweeper and closes the database.
func (s *Store) Close() error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	return s.db.Close()
}
