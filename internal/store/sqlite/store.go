// Package sqlite implements store.Backend on a local SQLite file, for single
// node deployments that want entries to survive a restart of the remote cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/jobcache/internal/store"
	"github.com/RezaEskandarii/jobcache/types"
	_ "github.com/mattn/go-sqlite3"
	"log/slog"
	"time"
)

var _ store.Backend = (*Store)(nil)

const (
	createTable = `
		CREATE TABLE IF NOT EXISTS entries (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)`
	createIndex = `CREATE INDEX IF NOT EXISTS entries_expires_at_idx ON entries (expires_at)`
	upsertQuery = `
		INSERT INTO entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`
	selectQuery = `SELECT value FROM entries WHERE key = ? AND expires_at > ?`
	existsQuery = `SELECT EXISTS (SELECT 1 FROM entries WHERE key = ? AND expires_at > ?)`
	deleteQuery = `DELETE FROM entries WHERE key = ?`
	purgeQuery  = `DELETE FROM entries WHERE expires_at <= ?`
)

type Store struct {
	db      *sql.DB
	sweeper *store.Sweeper
	logger  *slog.Logger
}

// Open opens (creating if needed) the database file at path and its table.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; serialising here avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, script := range []string{createTable, createIndex} {
		if _, err := db.ExecContext(ctx, script); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return &Store{db: db, logger: logger}, nil
}

// StartSweeper schedules Purge with a cron spec such as store.DefaultSweepSpec.
func (s *Store) StartSweeper(spec string) error {
	sweeper, err := store.NewSweeper("sqlite", spec, s.Purge, s.logger)
	if err != nil {
		return err
	}
	s.sweeper = sweeper
	sweeper.Start()
	return nil
}

// Purge deletes every row expired at now.
func (s *Store) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, purgeQuery, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := s.db.ExecContext(ctx, upsertQuery, key, value, time.Now().Add(ttl).UnixNano()); err != nil {
		return fmt.Errorf("sqlite: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) PutAll(ctx context.Context, ttl time.Duration, entries ...types.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	expiresAt := time.Now().Add(ttl).UnixNano()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, upsertQuery, e.Key, e.Value, expiresAt); err != nil {
			return fmt.Errorf("sqlite: put %s: %w", e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, selectQuery, key, time.Now().UnixNano()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, existsQuery, key, time.Now().UnixNano()).Scan(&exists); err != nil {
		return false, fmt.Errorf("sqlite: exists %s: %w", key, err)
	}
	return exists, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteQuery, key); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	return s.db.Close()
}
