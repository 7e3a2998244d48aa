package stage

import (
	"context"

	"github.com/google/uuid"

	domainstage "github.com/alanyang/lead-pipeline/internal/domain/stage"
)

// Repository manages stage persistence.
// [DIP] service/stage depends on this interface, not on a concrete storage.
type Repository interface {
	Create(ctx context.Context, s domainstage.Stage) (domainstage.Stage, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]domainstage.Stage, error)
	// DeleteMany removes all of ids in one transaction. A stage still
	// referenced by a lead fails the whole call.
	DeleteMany(ctx context.Context, tenantID uuid.UUID, ids []domainstage.ID) error
}
