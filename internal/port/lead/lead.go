package lead

import (
	"context"

	"github.com/google/uuid"

	domainlead "github.com/alanyang/lead-pipeline/internal/domain/lead"
)

// Repository manages lead persistence.
type Repository interface {
	Create(ctx context.Context, l domainlead.Lead) (domainlead.Lead, error)
	GetByID(ctx context.Context, tenantID uuid.UUID, id domainlead.ID) (domainlead.Lead, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]domainlead.Lead, error)
	// Update writes the stage reference and terminal fields in one statement.
	Update(ctx context.Context, l domainlead.Lead) error
}
