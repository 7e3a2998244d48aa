package locker

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"
)

// AdvisoryLocker serialises critical sections using Postgres session advisory locks.
// WithLock ensures lock and unlock occur on the same DB connection, which
// session-level pg_advisory_lock requires.
type AdvisoryLocker interface {
	WithLock(ctx context.Context, key int64, fn func(ctx context.Context) error) error
}

// TenantKey is the lock every mutation of a tenant's stage membership takes:
// lead moves, gated completions and stage deletes all serialise on it, so an
// occupancy check and the delete it guards see the same leads.
func TenantKey(tenantID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(tenantID[:])
	h.Write([]byte("pipeline"))
	return int64(h.Sum64())
}
