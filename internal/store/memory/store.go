// Package memory implements store.Backend in process memory. It is the
// fallback the state store switches to when its primary backend fails, and
// the backend used when no remote store is configured.
//
// Every entry owns a timer that purges it when its TTL elapses. Overwriting
// or deleting a key stops that timer, and a generation number guards against
// a timer that already fired removing a newer entry under the same key.
package memory

import (
	"context"
	"github.com/RezaEskandarii/jobcache/internal/store"
	"github.com/RezaEskandarii/jobcache/types"
	"sync"
	"time"
)

var _ store.Backend = (*Store)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time
	timer     *time.Timer
	gen       uint64
}

// Store is safe for concurrent access.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
}

// New returns a new empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (m *Store) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(key, value, ttl)
	return nil
}

func (m *Store) PutAll(_ context.Context, ttl time.Duration, entries ...types.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.putLocked(e.Key, e.Value, ttl)
	}
	return nil
}

func (m *Store) putLocked(key string, value []byte, ttl time.Duration) {
	if old, ok := m.entries[key]; ok {
		old.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.entries[key] = &entry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
		gen:       gen,
		timer:     time.AfterFunc(ttl, func() { m.expire(key, gen) }),
	}
}

func (m *Store) expire(key string, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && e.gen == gen {
		delete(m.entries, key)
	}
}

// lookupLocked also hides entries whose timer has not fired yet.
func (m *Store) lookupLocked(key string) (*entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.expiresAt) {
		e.timer.Stop()
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

func (m *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookupLocked(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Store) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookupLocked(key)
	return ok, nil
}

func (m *Store) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.timer.Stop()
		delete(m.entries, key)
	}
	return nil
}

// Len returns the number of entries still held, expired or not.
func (m *Store) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close stops every pending expiration and drops all entries.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		e.timer.Stop()
		delete(m.entries, key)
	}
	return nil
}
