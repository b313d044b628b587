package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hszk-dev/clipstream/internal/infrastructure/metrics"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store for the CLI and tests.
// Expired entries are dropped lazily when touched.
type MemoryStore struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]memoryEntry
}

// Compile-time verification that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = realClock{}
	}
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

func (s *MemoryStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

func (s *MemoryStore) Type() string {
	return metrics.CacheTypeMemory
}

// Len returns the number of stored entries, including expired ones not yet dropped.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
