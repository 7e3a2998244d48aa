package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	portidem "github.com/alanyang/lead-pipeline/internal/port/idempotency"
)

var _ portidem.Store = (*Repository)(nil)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Check looks up a tenant's idempotency key. Returns the stored response,
// whether the key exists, and any error.
func (r *Repository) Check(ctx context.Context, tenantID uuid.UUID, key string) ([]byte, bool, error) {
	query := `SELECT result_jsonb FROM processed_operations WHERE tenant_id = $1 AND idempotency_key = $2`

	var result []byte
	err := r.pool.QueryRow(ctx, query, tenantID, key).Scan(&result)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("checking idempotency key: %w", err)
	}
	return result, true, nil
}

// Save records a processed operation. The first response saved for a key wins.
func (r *Repository) Save(ctx context.Context, tenantID uuid.UUID, key, op string, result []byte) error {
	query := `
		INSERT INTO processed_operations (tenant_id, idempotency_key, operation_type, result_jsonb, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, tenantID, key, op, result); err != nil {
		return fmt.Errorf("storing idempotency key: %w", err)
	}
	return nil
}

// Purge drops keys older than the retention window and returns how many
// were removed.
func (r *Repository) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM processed_operations WHERE created_at < NOW() - make_interval(secs => $1)`,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
