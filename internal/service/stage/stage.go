package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyang/lead-pipeline/internal/domain/event"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	domainstage "github.com/alanyang/lead-pipeline/internal/domain/stage"
	portbus "github.com/alanyang/lead-pipeline/internal/port/eventbus"
	portlead "github.com/alanyang/lead-pipeline/internal/port/lead"
	portlocker "github.com/alanyang/lead-pipeline/internal/port/locker"
	portstage "github.com/alanyang/lead-pipeline/internal/port/stage"
)

// Service owns a tenant's stage set.
// [DIP] Depends on ports, never on adapters or transport.
type Service struct {
	repo   portstage.Repository
	leads  portlead.Repository
	bus    portbus.EventBus
	locker portlocker.AdvisoryLocker
}

func NewService(repo portstage.Repository, leads portlead.Repository, bus portbus.EventBus, locker portlocker.AdvisoryLocker) *Service {
	return &Service{repo: repo, leads: leads, bus: bus, locker: locker}
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]domainstage.Stage, error) {
	stages, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	return domainstage.NewRegistry(stages).Ordered(), nil
}

// Registry loads the tenant's stages into an ordered registry.
func (s *Service) Registry(ctx context.Context, tenantID uuid.UUID) (*domainstage.Registry, error) {
	stages, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	return domainstage.NewRegistry(stages), nil
}

// Create validates the request against the current stage set and appends
// the new stage after the last one.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req pipeline.CreateStageRequest) (domainstage.Stage, error) {
	var created domainstage.Stage
	err := s.locker.WithLock(ctx, portlocker.TenantKey(tenantID), func(ctx context.Context) error {
		reg, err := s.Registry(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := pipeline.ValidateCreate(req, reg); err != nil {
			return err
		}

		st := domainstage.Stage{
			ID:         domainstage.ID(uuid.New().String()),
			TenantID:   tenantID,
			Name:       strings.TrimSpace(req.Name),
			OrderIndex: reg.NextOrderIndex(),
			ColorCode:  req.Color,
			FormType:   req.FormType,
			CreatedAt:  time.Now().UTC(),
		}
		created, err = s.repo.Create(ctx, st)
		if err != nil {
			return fmt.Errorf("create stage: %w", err)
		}
		return nil
	})
	if err != nil {
		return domainstage.Stage{}, err
	}

	if err := s.bus.Publish(ctx, event.New(event.TypeStageCreated, tenantID, created.ID.String())); err != nil {
		slog.ErrorContext(ctx, "failed to publish StageCreated event", "stage_id", created.ID, "error", err)
	}
	return created, nil
}

// Delete removes every stage in ids or none of them. Occupancy is recomputed
// from the lead table under the tenant lock, so a lead moved in by another
// session is seen.
func (s *Service) Delete(ctx context.Context, tenantID uuid.UUID, ids []domainstage.ID) error {
	if len(ids) == 0 {
		return pipeline.ErrNoStagesSelected
	}

	err := s.locker.WithLock(ctx, portlocker.TenantKey(tenantID), func(ctx context.Context) error {
		reg, err := s.Registry(ctx, tenantID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := reg.ByID(id); !ok {
				return fmt.Errorf("%w: %s", domainstage.ErrNotFound, id)
			}
		}

		leads, err := s.leads.List(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("list leads for delete guard: %w", err)
		}
		if err := pipeline.CanDelete(ids, leads).Err(); err != nil {
			return err
		}

		if err := s.repo.DeleteMany(ctx, tenantID, ids); err != nil {
			return fmt.Errorf("delete stages: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.bus.Publish(ctx, event.New(event.TypeStagesDeleted, tenantID, id.String())); err != nil {
			slog.ErrorContext(ctx, "failed to publish StagesDeleted event", "stage_id", id, "error", err)
		}
	}
	return nil
}
