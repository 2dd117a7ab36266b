package record

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	rec     Record
	expires time.Time
}

// MemoryStore is the default single-process store.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry

	now func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{rec: rec}
	if s.ttl > 0 {
		entry.expires = s.now().Add(s.ttl)
	}
	s.entries[rec.Room] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, room string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[room]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !entry.expires.IsZero() && s.now().After(entry.expires) {
		delete(s.entries, room)
		return Record{}, ErrNotFound
	}
	return entry.rec, nil
}

func (s *MemoryStore) Close() error { return nil }
