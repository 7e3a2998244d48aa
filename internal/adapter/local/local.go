package local

import (
	"context"

	"github.com/google/uuid"

	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
	portapi "github.com/alanyang/lead-pipeline/internal/port/api"
	leadsvc "github.com/alanyang/lead-pipeline/internal/service/lead"
	stagesvc "github.com/alanyang/lead-pipeline/internal/service/stage"
)

var _ portapi.PipelineAPI = (*API)(nil)

// API serves a board from the services in the same process, bound to one
// tenant. Leads are fetched in Shape.
type API struct {
	tenantID uuid.UUID
	stages   *stagesvc.Service
	leads    *leadsvc.Service
	shape    pipeline.Shape
}

func New(tenantID uuid.UUID, stages *stagesvc.Service, leads *leadsvc.Service, shape pipeline.Shape) *API {
	if shape == "" {
		shape = pipeline.ShapeGrouped
	}
	return &API{tenantID: tenantID, stages: stages, leads: leads, shape: shape}
}

func (a *API) TenantID() uuid.UUID { return a.tenantID }

func (a *API) FetchStages(ctx context.Context) ([]stage.Stage, error) {
	return a.stages.List(ctx, a.tenantID)
}

func (a *API) FetchLeads(ctx context.Context) (pipeline.Payload, error) {
	return a.leads.List(ctx, a.tenantID, a.shape)
}

func (a *API) MoveLead(ctx context.Context, leadID lead.ID, stageID stage.ID) error {
	_, err := a.leads.Move(ctx, a.tenantID, leadID, stageID)
	return err
}

func (a *API) CreateStage(ctx context.Context, req pipeline.CreateStageRequest) (stage.Stage, error) {
	return a.stages.Create(ctx, a.tenantID, req)
}

func (a *API) DeleteStages(ctx context.Context, ids []stage.ID) error {
	return a.stages.Delete(ctx, a.tenantID, ids)
}

func (a *API) SubmitGate(ctx context.Context, cmd gate.Command) error {
	_, err := a.leads.CompleteGate(ctx, a.tenantID, cmd)
	return err
}
