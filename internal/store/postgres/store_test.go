package postgres

import (
	"context"
	"database/sql"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RezaEskandarii/jobcache/internal/constants"
	"github.com/RezaEskandarii/jobcache/internal/lock"
	"github.com/RezaEskandarii/jobcache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, lock.NewPostgresDistributedLockManager(db), nil), mock
}

func TestStore_Put(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO jobcache_schema.entries").
		WithArgs("jobcache:job:1", []byte("v"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Put(context.Background(), "jobcache:job:1", []byte("v"), time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Put_Error(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO jobcache_schema.entries").
		WillReturnError(sql.ErrConnDone)

	err := s.Put(context.Background(), "k", []byte("v"), time.Minute)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: put k")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT value FROM jobcache_schema.entries").
		WithArgs("k", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("v")))

	v, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_Missing(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT value FROM jobcache_schema.entries").
		WithArgs("k", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	v, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Exists(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("k", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Delete(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("DELETE FROM jobcache_schema.entries WHERE key").
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PutAll_Commits(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobcache_schema.entries").
		WithArgs("a", []byte("1"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO jobcache_schema.entries").
		WithArgs("b", []byte("2"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.PutAll(context.Background(), time.Minute,
		types.Entry{Key: "a", Value: []byte("1")},
		types.Entry{Key: "b", Value: []byte("2")},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PutAll_RollsBack(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobcache_schema.entries").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.PutAll(context.Background(), time.Minute,
		types.Entry{Key: "a", Value: []byte("1")},
		types.Entry{Key: "b", Value: []byte("2")},
	)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Migrate(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(constants.MigrationLock).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS jobcache_schema").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS jobcache_schema.entries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS entries_expires_at_idx").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(constants.MigrationLock).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PurgeUnderLock(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(constants.PurgeLock).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("DELETE FROM jobcache_schema.entries WHERE expires_at").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(constants.PurgeLock).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := s.purgeLocked(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PurgeSkipsWhenLockBusy(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(constants.PurgeLock).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	n, err := s.purgeLocked(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_StartSweeper_InvalidSpec(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Error(t, s.StartSweeper("every now and then"))
}
