package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process KV used when redis is disabled and as
// the degraded fallback when it is unreachable. Expired keys are
// pruned lazily on access.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.items[key]; ok && s.now().Before(exp) {
		return false, nil
	}
	s.items[key] = s.now().Add(ttl)
	return true, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.items, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Len reports the number of live keys. Used by the metrics report.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for k, exp := range s.items {
		if now.Before(exp) {
			n++
		} else {
			delete(s.items, k)
		}
	}
	return n
}
