package lead

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyang/lead-pipeline/internal/adapter/postgres"
	domainlead "github.com/alanyang/lead-pipeline/internal/domain/lead"
	domainstage "github.com/alanyang/lead-pipeline/internal/domain/stage"
	portlead "github.com/alanyang/lead-pipeline/internal/port/lead"
)

var _ portlead.Repository = (*Repository)(nil)

const leadColumns = `id, tenant_id, name, email, phone, company, budget, status, stage_id,
	reason_for_lost, reason_for_junk, conversion_json, form_data_json, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, l domainlead.Lead) (domainlead.Lead, error) {
	conv, form, err := marshalTerminal(l)
	if err != nil {
		return domainlead.Lead{}, err
	}

	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + leadColumns

	row := r.pool.QueryRow(ctx, query,
		l.ID, l.TenantID, l.Name, l.Email, l.Phone, l.Company, l.Budget, l.Status, nilIfEmpty(l.StageID),
		l.ReasonForLost, l.ReasonForJunk, conv, form, l.CreatedAt, l.UpdatedAt,
	)
	created, err := scanLead(row)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return domainlead.Lead{}, fmt.Errorf("%w: %s", domainstage.ErrNotFound, l.StageID)
		}
		return domainlead.Lead{}, fmt.Errorf("inserting lead: %w", err)
	}
	return created, nil
}

func (r *Repository) GetByID(ctx context.Context, tenantID uuid.UUID, id domainlead.ID) (domainlead.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 AND id = $2`

	l, err := scanLead(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainlead.Lead{}, fmt.Errorf("%w: %s", domainlead.ErrNotFound, id)
		}
		return domainlead.Lead{}, fmt.Errorf("querying lead: %w", err)
	}
	return l, nil
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]domainlead.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer rows.Close()

	var leads []domainlead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leads: %w", err)
	}
	return leads, nil
}

// Update writes the stage reference together with the terminal fields, so a
// gated completion is never half-applied.
func (r *Repository) Update(ctx context.Context, l domainlead.Lead) error {
	conv, form, err := marshalTerminal(l)
	if err != nil {
		return err
	}

	query := `
		UPDATE leads SET
			stage_id = $3, status = $4, reason_for_lost = $5, reason_for_junk = $6,
			conversion_json = $7, form_data_json = $8, updated_at = $9
		WHERE tenant_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, query,
		l.TenantID, l.ID, nilIfEmpty(l.StageID), l.Status, l.ReasonForLost, l.ReasonForJunk,
		conv, form, l.UpdatedAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", domainstage.ErrNotFound, l.StageID)
		}
		return fmt.Errorf("updating lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domainlead.ErrNotFound, l.ID)
	}
	return nil
}

func marshalTerminal(l domainlead.Lead) (conv, form []byte, err error) {
	if l.Conversion != nil {
		if conv, err = json.Marshal(l.Conversion); err != nil {
			return nil, nil, fmt.Errorf("marshal conversion: %w", err)
		}
	}
	if len(l.FormData) > 0 {
		if form, err = json.Marshal(l.FormData); err != nil {
			return nil, nil, fmt.Errorf("marshal form data: %w", err)
		}
	}
	return conv, form, nil
}

func scanLead(row pgx.Row) (domainlead.Lead, error) {
	var l domainlead.Lead
	var stageID *string
	var conv, form []byte
	err := row.Scan(
		&l.ID, &l.TenantID, &l.Name, &l.Email, &l.Phone, &l.Company, &l.Budget, &l.Status, &stageID,
		&l.ReasonForLost, &l.ReasonForJunk, &conv, &form, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domainlead.Lead{}, err
	}
	if stageID != nil {
		l.StageID = domainstage.ID(*stageID)
	}
	if len(conv) > 0 {
		l.Conversion = &domainlead.Conversion{}
		if err := json.Unmarshal(conv, l.Conversion); err != nil {
			return domainlead.Lead{}, fmt.Errorf("decode conversion: %w", err)
		}
	}
	if len(form) > 0 {
		if err := json.Unmarshal(form, &l.FormData); err != nil {
			return domainlead.Lead{}, fmt.Errorf("decode form data: %w", err)
		}
	}
	return l, nil
}

func nilIfEmpty(id domainstage.ID) *string {
	if id.IsZero() {
		return nil
	}
	s := id.String()
	return &s
}
