package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	portidem "github.com/alanyang/lead-pipeline/internal/port/idempotency"
)

var _ portidem.Store = (*IdempotencyStore)(nil)

type idemEntry struct {
	value     []byte
	expiresAt time.Time
}

// IdempotencyStore keeps replayable responses in memory for ttl.
type IdempotencyStore struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]idemEntry
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:     ttl,
		entries: make(map[string]idemEntry),
	}
}

func idemKey(tenantID uuid.UUID, key string) string {
	return tenantID.String() + "/" + key
}

func (s *IdempotencyStore) Check(_ context.Context, tenantID uuid.UUID, key string) ([]byte, bool, error) {
	k := idemKey(tenantID, key)
	s.mu.RLock()
	entry, ok := s.entries[k]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, k)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Save keeps the first result stored for a key.
func (s *IdempotencyStore) Save(_ context.Context, tenantID uuid.UUID, key, _ string, result []byte) error {
	k := idemKey(tenantID, key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[k]; ok && time.Now().Before(entry.expiresAt) {
		return nil
	}
	s.entries[k] = idemEntry{
		value:     result,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}
