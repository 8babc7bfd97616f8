package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
)

type counterEntry struct {
	value     int64
	expiresAt time.Time
}

// MemoryCounterStore is a CounterStore for a single instance.
// The LRU bounds memory; each entry also carries its own expiry checked against the clock.
type MemoryCounterStore struct {
	mu    sync.Mutex
	lru   *expirable.LRU[string, counterEntry]
	clock clockwork.Clock
}

// NewMemoryCounterStore creates a store holding at most capacity counters, none older than maxTTL
func NewMemoryCounterStore(capacity int, maxTTL time.Duration, clock clockwork.Clock) *MemoryCounterStore {
	return &MemoryCounterStore{
		lru:   expirable.NewLRU[string, counterEntry](capacity, nil, maxTTL),
		clock: clock,
	}
}

func (s *MemoryCounterStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	return entry.value, nil
}

func (s *MemoryCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		entry = counterEntry{expiresAt: s.clock.Now().Add(ttl)}
	}
	entry.value++
	s.lru.Add(key, entry)
	return entry.value, nil
}

func (s *MemoryCounterStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Add(key, counterEntry{value: value, expiresAt: s.clock.Now().Add(ttl)})
	return nil
}

// live returns the entry for key unless it has expired. Caller holds mu.
func (s *MemoryCounterStore) live(key string) (counterEntry, bool) {
	entry, ok := s.lru.Get(key)
	if !ok {
		return counterEntry{}, false
	}
	if !s.clock.Now().Before(entry.expiresAt) {
		s.lru.Remove(key)
		return counterEntry{}, false
	}
	return entry, true
}
