package stage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyang/lead-pipeline/internal/adapter/postgres"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	domainstage "github.com/alanyang/lead-pipeline/internal/domain/stage"
	portstage "github.com/alanyang/lead-pipeline/internal/port/stage"
)

var _ portstage.Repository = (*Repository)(nil)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, s domainstage.Stage) (domainstage.Stage, error) {
	query := `
		INSERT INTO stages (id, tenant_id, name, order_index, color_code, form_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, tenant_id, name, order_index, color_code, form_type, created_at`

	var out domainstage.Stage
	err := r.pool.QueryRow(ctx, query,
		s.ID, s.TenantID, s.Name, s.OrderIndex, s.ColorCode, s.FormType, s.CreatedAt,
	).Scan(&out.ID, &out.TenantID, &out.Name, &out.OrderIndex, &out.ColorCode, &out.FormType, &out.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return domainstage.Stage{}, fmt.Errorf("%w: %q", pipeline.ErrStageNameTaken, s.Name)
		}
		return domainstage.Stage{}, fmt.Errorf("inserting stage: %w", err)
	}
	return out, nil
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]domainstage.Stage, error) {
	query := `
		SELECT id, tenant_id, name, order_index, color_code, form_type, created_at
		FROM stages WHERE tenant_id = $1
		ORDER BY order_index, created_at`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing stages: %w", err)
	}
	defer rows.Close()

	var stages []domainstage.Stage
	for rows.Next() {
		var s domainstage.Stage
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.OrderIndex, &s.ColorCode, &s.FormType, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning stage: %w", err)
		}
		stages = append(stages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stages: %w", err)
	}
	return stages, nil
}

// DeleteMany deletes the batch in one transaction. The leads.stage_id
// foreign key is ON DELETE RESTRICT, so an occupied stage rolls back the
// whole batch.
func (r *Repository) DeleteMany(ctx context.Context, tenantID uuid.UUID, ids []domainstage.ID) error {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning stage delete: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `DELETE FROM stages WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, raw)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("deleting stages: %w", pipeline.ErrStageOccupied)
		}
		return fmt.Errorf("deleting stages: %w", err)
	}
	if int(tag.RowsAffected()) != len(uniqueIDs(raw)) {
		return fmt.Errorf("deleting stages: %w", domainstage.ErrNotFound)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing stage delete: %w", err)
	}
	return nil
}

func uniqueIDs(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
