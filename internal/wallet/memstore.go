package wallet

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	res       Resolution
	expiresAt time.Time
}

// MemoryStore is an in-memory Cache implementation. Expired entries are
// deleted lazily on read.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory resolution cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: time.Now().UTC,
	}
}

// Put stores res for digest until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, digest string, res Resolution, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[digest] = entry{res: res, expiresAt: expiresAt}
}

// Get returns the resolution for digest if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, digest string) (Resolution, bool) {
	s.mu.RLock()
	e, ok := s.m[digest]
	s.mu.RUnlock()
	if !ok {
		return Resolution{}, false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, digest)
		s.mu.Unlock()
		return Resolution{}, false
	}
	return e.res, true
}
