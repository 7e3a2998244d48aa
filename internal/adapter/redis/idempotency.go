package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	portidem "github.com/alanyang/lead-pipeline/internal/port/idempotency"
)

var _ portidem.Store = (*IdempotencyStore)(nil)

// IdempotencyStore keeps request results under expiring keys. The first
// Save for a key wins; later ones are ignored.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

type record struct {
	Op     string          `json:"op"`
	Result json.RawMessage `json:"result"`
}

func idemKey(tenantID uuid.UUID, key string) string {
	return fmt.Sprintf("idem:%s:%s", tenantID, key)
}

func (s *IdempotencyStore) Check(ctx context.Context, tenantID uuid.UUID, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, idemKey(tenantID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("checking idempotency key: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decoding idempotency record: %w", err)
	}
	return rec.Result, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, tenantID uuid.UUID, key, op string, result []byte) error {
	raw, err := json.Marshal(record{Op: op, Result: result})
	if err != nil {
		return fmt.Errorf("encoding idempotency record: %w", err)
	}
	if err := s.client.SetNX(ctx, idemKey(tenantID, key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing idempotency key: %w", err)
	}
	return nil
}
