// Package cache memoizes lookups against the exercise and equation services.
//
// A Store holds opaque byte values under string keys. Stores are interchangeable:
// in memory (LRU), Redis, SQLite or a directory of files. A Loader sits in
// front of a Store and guarantees a single outstanding fetch per key.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Config bounds a MemoryStore.
type Config struct {
	// MaxEntries is the maximum number of entries (0 = unlimited).
	MaxEntries int

	// MaxBytes bounds the total size of stored values (0 = unlimited).
	MaxBytes int64

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration
}

// DefaultConfig returns the configuration used for in-memory stores. A book
// rarely references more than a few hundred exercises and equations.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 4096,
		MaxBytes:   64 << 20,
	}
}

// Stats contains MemoryStore statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int   // entries held
	Bytes     int64 // value bytes held
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local LRU Store. Least recently used entries are
// evicted first once either bound in Config is exceeded.
type MemoryStore struct {
	mu      sync.Mutex
	config  Config
	entries map[string]*list.Element
	order   *list.List // front is most recently used
	bytes   int64
	stats   Stats
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store with the given configuration.
func NewMemoryStore(config Config) *MemoryStore {
	return &MemoryStore{
		config:  config,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		s.stats.Misses++
		return nil, false, nil
	}
	e := el.Value.(*memoryEntry)
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.remove(el)
		s.stats.Misses++
		return nil, false, nil
	}
	s.order.MoveToFront(el)
	s.stats.Hits++
	return e.value, true, nil
}

// Set stores a copy of value under key. A value larger than MaxBytes is
// not stored.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if s.config.MaxBytes > 0 && int64(len(value)) > s.config.MaxBytes {
		return nil
	}
	e := &memoryEntry{key: key, value: append([]byte(nil), value...)}
	if s.config.TTL > 0 {
		e.expiresAt = s.now().Add(s.config.TTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.remove(el)
	}
	s.entries[key] = s.order.PushFront(e)
	s.bytes += int64(len(e.value))

	for s.overLimit() {
		s.remove(s.order.Back())
		s.stats.Evictions++
	}
	return nil
}

// Stats returns a snapshot of the store statistics.
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Size = s.order.Len()
	stats.Bytes = s.bytes
	return stats
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) overLimit() bool {
	if s.order.Len() == 0 {
		return false
	}
	return (s.config.MaxEntries > 0 && s.order.Len() > s.config.MaxEntries) ||
		(s.config.MaxBytes > 0 && s.bytes > s.config.MaxBytes)
}

func (s *MemoryStore) remove(el *list.Element) {
	e := s.order.Remove(el).(*memoryEntry)
	delete(s.entries, e.key)
	s.bytes -= int64(len(e.value))
}
