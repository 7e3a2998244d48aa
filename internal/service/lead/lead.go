package lead

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyang/lead-pipeline/internal/domain/event"
	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	domainlead "github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	domainstage "github.com/alanyang/lead-pipeline/internal/domain/stage"
	portbus "github.com/alanyang/lead-pipeline/internal/port/eventbus"
	portlead "github.com/alanyang/lead-pipeline/internal/port/lead"
	portlocker "github.com/alanyang/lead-pipeline/internal/port/locker"
	portstage "github.com/alanyang/lead-pipeline/internal/port/stage"
	porttenant "github.com/alanyang/lead-pipeline/internal/port/tenant"
)

var (
	// ErrGateRequired rejects a plain move into a gated stage.
	ErrGateRequired = errors.New("stage requires a completed form")
	// ErrNotGated rejects a form submission for a stage without a form type.
	ErrNotGated = errors.New("stage does not take a form")
)

// NewLead is the input for Create.
type NewLead struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Budget  float64
	StageID domainstage.ID
}

// Service manages leads and every change to their stage reference.
// [OCP] Gate completion rules come from injected pipeline.Gates, layered
// under each tenant's own overrides.
type Service struct {
	repo    portlead.Repository
	stages  portstage.Repository
	tenants porttenant.Repository
	bus     portbus.EventBus
	locker  portlocker.AdvisoryLocker
	gates   pipeline.Gates
}

func NewService(
	repo portlead.Repository,
	stages portstage.Repository,
	tenants porttenant.Repository,
	bus portbus.EventBus,
	locker portlocker.AdvisoryLocker,
	gates pipeline.Gates,
) *Service {
	return &Service{
		repo:    repo,
		stages:  stages,
		tenants: tenants,
		bus:     bus,
		locker:  locker,
		gates:   gates,
	}
}

func (s *Service) registry(ctx context.Context, tenantID uuid.UUID) (*domainstage.Registry, error) {
	stages, err := s.stages.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	return domainstage.NewRegistry(stages), nil
}

// Create adds a lead. Without an explicit stage it lands in the tenant's
// initial stage; with no stages at all it is stored unassigned.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, in NewLead) (domainlead.Lead, error) {
	reg, err := s.registry(ctx, tenantID)
	if err != nil {
		return domainlead.Lead{}, err
	}

	stageID := in.StageID
	if stageID.IsZero() {
		if initial, ok := reg.Initial(); ok {
			stageID = initial.ID
		}
	} else if target, ok := reg.ByID(stageID); !ok {
		return domainlead.Lead{}, fmt.Errorf("%w: %s", domainstage.ErrNotFound, stageID)
	} else if target.Gated() {
		return domainlead.Lead{}, fmt.Errorf("%w: %s", ErrGateRequired, target.Name)
	}

	l := domainlead.New(tenantID, in.Name, in.Email, in.Phone, in.Company, in.Budget, stageID)
	created, err := s.repo.Create(ctx, l)
	if err != nil {
		return domainlead.Lead{}, fmt.Errorf("create lead: %w", err)
	}

	if err := s.bus.Publish(ctx, event.New(event.TypeLeadCreated, tenantID, created.ID.String())); err != nil {
		slog.ErrorContext(ctx, "failed to publish LeadCreated event", "lead_id", created.ID, "error", err)
	}
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, tenantID uuid.UUID, id domainlead.ID) (domainlead.Lead, error) {
	l, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return domainlead.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

// List returns the tenant's leads in the requested wire shape. The grouped
// shape has one group per stage in display order, followed by a group for
// any stage id the registry no longer knows.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, shape pipeline.Shape) (pipeline.Payload, error) {
	leads, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return pipeline.Payload{}, fmt.Errorf("list leads: %w", err)
	}

	switch shape {
	case pipeline.ShapeFlat, "":
		return pipeline.Flat(leads), nil
	case pipeline.ShapeGrouped:
	default:
		return pipeline.Payload{}, fmt.Errorf("%w: %q", pipeline.ErrUnknownShape, shape)
	}

	reg, err := s.registry(ctx, tenantID)
	if err != nil {
		return pipeline.Payload{}, err
	}
	groups := make([]pipeline.Group, 0, reg.Len())
	index := make(map[domainstage.ID]int, reg.Len())
	for _, st := range reg.Ordered() {
		index[st.ID] = len(groups)
		groups = append(groups, pipeline.Group{StageID: st.ID, Leads: []domainlead.Lead{}})
	}
	for _, l := range leads {
		idx, ok := index[l.StageID]
		if !ok {
			idx = len(groups)
			index[l.StageID] = idx
			groups = append(groups, pipeline.Group{StageID: l.StageID})
		}
		groups[idx].Leads = append(groups[idx].Leads, l)
	}
	return pipeline.Grouped(groups), nil
}

// Move changes a lead's stage reference. Moving onto the lead's own stage is
// a no-op; a gated target needs CompleteGate instead.
func (s *Service) Move(ctx context.Context, tenantID uuid.UUID, id domainlead.ID, stageID domainstage.ID) (domainlead.Lead, error) {
	var moved domainlead.Lead
	var changed bool
	err := s.locker.WithLock(ctx, portlocker.TenantKey(tenantID), func(ctx context.Context) error {
		reg, err := s.registry(ctx, tenantID)
		if err != nil {
			return err
		}
		target, ok := reg.ByID(stageID)
		if !ok {
			return fmt.Errorf("%w: %s", domainstage.ErrNotFound, stageID)
		}
		l, err := s.repo.GetByID(ctx, tenantID, id)
		if err != nil {
			return fmt.Errorf("get lead: %w", err)
		}

		d := pipeline.EvaluateTarget(l, target)
		switch d.Kind {
		case pipeline.NoOp:
			slog.InfoContext(ctx, "move: lead already in stage", "lead_id", id, "stage_id", stageID)
			moved = l
			return nil
		case pipeline.Deferred:
			return fmt.Errorf("%w: %s needs %s", ErrGateRequired, target.Name, d.FormType)
		}

		l.StageID = target.ID
		l.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, l); err != nil {
			return fmt.Errorf("update lead stage: %w", err)
		}
		moved, changed = l, true
		return nil
	})
	if err != nil {
		return domainlead.Lead{}, err
	}

	if changed {
		if err := s.bus.Publish(ctx, event.New(event.TypeLeadMoved, tenantID, id.String())); err != nil {
			slog.ErrorContext(ctx, "failed to publish LeadMoved event", "lead_id", id, "error", err)
		}
	}
	return moved, nil
}

// CompleteGate applies a gated form and the stage change together. The lead
// may land somewhere other than cmd.TargetStageID when a gate redirect is
// configured for the form type.
func (s *Service) CompleteGate(ctx context.Context, tenantID uuid.UUID, cmd gate.Command) (domainlead.Lead, error) {
	if cmd.Payload == nil {
		return domainlead.Lead{}, fmt.Errorf("%w: missing payload", gate.ErrInvalidPayload)
	}

	gates := s.gates
	if t, err := s.tenants.GetByID(ctx, tenantID); err != nil {
		slog.WarnContext(ctx, "gate: tenant rules unavailable, using defaults", "tenant_id", tenantID, "error", err)
	} else {
		gates = t.EffectiveGates(s.gates)
	}

	var done domainlead.Lead
	var changed bool
	err := s.locker.WithLock(ctx, portlocker.TenantKey(tenantID), func(ctx context.Context) error {
		reg, err := s.registry(ctx, tenantID)
		if err != nil {
			return err
		}
		target, ok := reg.ByID(cmd.TargetStageID)
		if !ok {
			return fmt.Errorf("%w: %s", domainstage.ErrNotFound, cmd.TargetStageID)
		}
		if !target.Gated() {
			return fmt.Errorf("%w: %s", ErrNotGated, target.Name)
		}
		if cmd.FormType.Gated() && cmd.FormType != target.FormType {
			return fmt.Errorf("%w: %s takes %s, got %s", gate.ErrFormMismatch, target.Name, target.FormType, cmd.FormType)
		}
		l, err := s.repo.GetByID(ctx, tenantID, cmd.LeadID)
		if err != nil {
			return fmt.Errorf("get lead: %w", err)
		}

		d := pipeline.EvaluateTarget(l, target)
		if d.Kind == pipeline.NoOp {
			slog.InfoContext(ctx, "gate: lead already in stage", "lead_id", l.ID, "stage_id", target.ID)
			done = l
			return nil
		}
		pending, err := gate.Open(d, l)
		if err != nil {
			return err
		}
		verified, err := gate.Complete(pending, cmd.Payload)
		if err != nil {
			return err
		}

		dest := gates.Destination(d.FormType, target, reg)
		if dest.ID != target.ID {
			slog.InfoContext(ctx, "gate: redirecting completed lead",
				"lead_id", l.ID, "form_type", d.FormType, "target", target.Name, "destination", dest.Name)
		}
		verified.Apply(&l, dest.ID, time.Now().UTC())
		if err := s.repo.Update(ctx, l); err != nil {
			return fmt.Errorf("update gated lead: %w", err)
		}
		done, changed = l, true
		return nil
	})
	if err != nil {
		return domainlead.Lead{}, err
	}

	if changed {
		if err := s.bus.Publish(ctx, event.New(event.TypeLeadGated, tenantID, done.ID.String())); err != nil {
			slog.ErrorContext(ctx, "failed to publish LeadGated event", "lead_id", done.ID, "error", err)
		}
	}
	return done, nil
}
