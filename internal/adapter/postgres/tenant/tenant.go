package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	domaintenant "github.com/alanyang/lead-pipeline/internal/domain/tenant"
	porttenant "github.com/alanyang/lead-pipeline/internal/port/tenant"
)

var _ porttenant.Repository = (*Repository)(nil)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, t domaintenant.Tenant) (domaintenant.Tenant, error) {
	gatesJSON, err := json.Marshal(t.Gates)
	if err != nil {
		return domaintenant.Tenant{}, fmt.Errorf("marshal gates: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, name, gates_json, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, gates_json, created_at`,
		t.ID, t.Name, gatesJSON, t.CreatedAt,
	)

	out, err := scanTenant(row)
	if err != nil {
		return domaintenant.Tenant{}, fmt.Errorf("insert tenant: %w", err)
	}
	return out, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domaintenant.Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, gates_json, created_at FROM tenants WHERE id = $1`, id,
	)

	out, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domaintenant.Tenant{}, fmt.Errorf("%w: %s", domaintenant.ErrNotFound, id)
		}
		return domaintenant.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return out, nil
}

func scanTenant(row pgx.Row) (domaintenant.Tenant, error) {
	var out domaintenant.Tenant
	var gatesBytes []byte
	if err := row.Scan(&out.ID, &out.Name, &gatesBytes, &out.CreatedAt); err != nil {
		return domaintenant.Tenant{}, err
	}
	if err := json.Unmarshal(gatesBytes, &out.Gates); err != nil || out.Gates == nil {
		out.Gates = pipeline.Gates{}
	}
	return out, nil
}
