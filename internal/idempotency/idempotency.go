// Package idempotency remembers keys that were already processed so the same
// marketplace file is not imported twice.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Store claims keys for a limited time.
type Store interface {
	// Claim marks key as processed. It returns false when key was already
	// claimed and has not expired.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so it can be claimed again.
	Release(ctx context.Context, key string) error
}

// MemoryStore is a process-local Store. It is used when no Redis address is
// configured and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expires, ok := s.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)

	for k, expires := range s.keys {
		if !now.Before(expires) {
			delete(s.keys, k)
		}
	}
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
