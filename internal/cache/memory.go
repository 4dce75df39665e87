package cache

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is the number of writes between full scans for expired entries.
const sweepEvery = 256

var _ Cache[struct{}] = (*MemoryCache[struct{}])(nil)

type memoryEntry[T any] struct {
	value    T
	deadline time.Time
}

func (e memoryEntry[T]) expired(now time.Time) bool { return !now.Before(e.deadline) }

// MemoryCache is a process-local Cache. Entries expire lazily on read, and
// every sweepEvery writes the whole map is scanned. Only correct for a
// single instance.
type MemoryCache[T any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[T]
	writes  int
	now     func() time.Time
}

func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{entries: map[string]memoryEntry[T]{}, now: time.Now}
}

func (m *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if ok && e.expired(m.now()) {
		delete(m.entries, key)
		ok = false
	}
	if !ok {
		var zero T
		return zero, ErrCacheMiss
	}
	return e.value, nil
}

func (m *MemoryCache[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = memoryEntry[T]{value: value, deadline: now.Add(ttl)}
	if m.writes++; m.writes >= sweepEvery {
		m.writes = 0
		for k, e := range m.entries {
			if e.expired(now) {
				delete(m.entries, k)
			}
		}
	}
	return nil
}

func (m *MemoryCache[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close drops every entry; the cache stays usable afterwards.
func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	m.entries = map[string]memoryEntry[T]{}
	m.writes = 0
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[T]) Health(context.Context) error { return nil }
