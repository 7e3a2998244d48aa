package tenant

import (
	"context"

	"github.com/google/uuid"

	domaintenant "github.com/alanyang/lead-pipeline/internal/domain/tenant"
)

// Repository manages tenant persistence.
type Repository interface {
	Create(ctx context.Context, t domaintenant.Tenant) (domaintenant.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (domaintenant.Tenant, error)
}
