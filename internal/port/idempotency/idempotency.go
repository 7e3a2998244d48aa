package idempotency

import (
	"context"

	"github.com/google/uuid"
)

// Store remembers the response of a mutating request keyed by the client's
// Idempotency-Key so a retried request replays instead of re-executing.
type Store interface {
	Check(ctx context.Context, tenantID uuid.UUID, key string) ([]byte, bool, error)
	Save(ctx context.Context, tenantID uuid.UUID, key, op string, result []byte) error
}
