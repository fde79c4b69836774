package store

import (
	"context"
	"errors"
	"github.com/RezaEskandarii/jobcache/types"
	"time"
)

// ErrStoreUnavailable is returned by the one StateStore call whose primary
// backend failure caused the switch to fallback mode.
var ErrStoreUnavailable = errors.New("state store: primary backend unavailable")

// Backend is a key/value store whose entries expire after a TTL.
// A missing or expired key is reported as (nil, false, nil), never as an error.
type Backend interface {
	// Put overwrites the entry for key and restarts its expiration clock.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// PutAll writes every entry with the same TTL as one atomic update.
	PutAll(ctx context.Context, ttl time.Duration, entries ...types.Entry) error

	Get(ctx context.Context, key string) ([]byte, bool, error)

	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the entry and cancels its pending expiration. Deleting a
	// missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
