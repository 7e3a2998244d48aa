package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	domaintenant "github.com/alanyang/lead-pipeline/internal/domain/tenant"
	porttenant "github.com/alanyang/lead-pipeline/internal/port/tenant"
)

type Service struct {
	repo porttenant.Repository
}

func NewService(repo porttenant.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, name string, gates pipeline.Gates) (domaintenant.Tenant, error) {
	created, err := s.repo.Create(ctx, domaintenant.New(name, gates))
	if err != nil {
		return domaintenant.Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domaintenant.Tenant, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domaintenant.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}
