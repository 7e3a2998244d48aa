package lead_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/lead-pipeline/internal/domain/event"
	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	domainlead "github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	domainstage "github.com/alanyang/lead-pipeline/internal/domain/stage"
	domaintenant "github.com/alanyang/lead-pipeline/internal/domain/tenant"
	"github.com/alanyang/lead-pipeline/internal/mocks"
	leadsvc "github.com/alanyang/lead-pipeline/internal/service/lead"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type svcDeps struct {
	repo    *mocks.MockLeadRepository
	stages  *mocks.MockStageRepository
	tenants *mocks.MockTenantRepository
	bus     *mocks.MockEventBus
	locker  *mocks.MockAdvisoryLocker
}

func newLeadSvc(t *testing.T, gates pipeline.Gates) (*leadsvc.Service, svcDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	d := svcDeps{
		repo:    mocks.NewMockLeadRepository(ctrl),
		stages:  mocks.NewMockStageRepository(ctrl),
		tenants: mocks.NewMockTenantRepository(ctrl),
		bus:     mocks.NewMockEventBus(ctrl),
		locker:  mocks.NewMockAdvisoryLocker(ctrl),
	}
	d.locker.EXPECT().WithLock(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ int64, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()
	return leadsvc.NewService(d.repo, d.stages, d.tenants, d.bus, d.locker, gates), d
}

func matchEventType(et event.Type) gomock.Matcher {
	return eventTypeMatcher{et}
}

type eventTypeMatcher struct{ want event.Type }

func (m eventTypeMatcher) Matches(x interface{}) bool {
	e, ok := x.(event.Event)
	return ok && e.Type == m.want
}
func (m eventTypeMatcher) String() string { return "event.Type=" + string(m.want) }

func board() []domainstage.Stage {
	return []domainstage.Stage{
		{ID: "1", Name: "New", OrderIndex: 0},
		{ID: "2", Name: "Contacted", OrderIndex: 1},
		{ID: "3", Name: "Won", OrderIndex: 2, FormType: domainstage.FormConverted},
		{ID: "4", Name: "Onboarding", OrderIndex: 3, FormType: domainstage.FormOnboarding},
		{ID: "5", Name: "Lost", OrderIndex: 4, FormType: domainstage.FormLost},
	}
}

// ── Create ────────────────────────────────────────────────────────────────────

func TestCreate(t *testing.T) {
	tests := []struct {
		name      string
		in        leadsvc.NewLead
		stages    []domainstage.Stage
		wantStage domainstage.ID
		wantErr   error
	}{
		{name: "defaults to initial stage", in: leadsvc.NewLead{Name: "Ada"}, stages: board(), wantStage: "1"},
		{name: "explicit stage", in: leadsvc.NewLead{Name: "Ada", StageID: "2"}, stages: board(), wantStage: "2"},
		{name: "no stages stores unassigned", in: leadsvc.NewLead{Name: "Ada"}, stages: nil, wantStage: ""},
		{name: "unknown stage", in: leadsvc.NewLead{Name: "Ada", StageID: "9"}, stages: board(), wantErr: domainstage.ErrNotFound},
		{name: "gated stage needs a form", in: leadsvc.NewLead{Name: "Ada", StageID: "3"}, stages: board(), wantErr: leadsvc.ErrGateRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newLeadSvc(t, pipeline.DefaultGates)
			tenantID := uuid.New()
			d.stages.EXPECT().List(gomock.Any(), tenantID).Return(tt.stages, nil)
			if tt.wantErr == nil {
				d.repo.EXPECT().Create(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, l domainlead.Lead) (domainlead.Lead, error) { return l, nil })
				d.bus.EXPECT().Publish(gomock.Any(), matchEventType(event.TypeLeadCreated)).Return(nil)
			}

			got, err := svc.Create(context.Background(), tenantID, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStage, got.StageID)
			assert.Equal(t, tenantID, got.TenantID)
		})
	}
}

// ── List ──────────────────────────────────────────────────────────────────────

func TestList(t *testing.T) {
	leads := []domainlead.Lead{
		{ID: "a", StageID: "2"},
		{ID: "b", StageID: "1"},
		{ID: "c", StageID: "gone"},
	}

	t.Run("flat", func(t *testing.T) {
		svc, d := newLeadSvc(t, nil)
		d.repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(leads, nil)

		p, err := svc.List(context.Background(), uuid.New(), pipeline.ShapeFlat)
		require.NoError(t, err)
		assert.Equal(t, pipeline.ShapeFlat, p.Shape)
		assert.Len(t, p.Leads, 3)
	})

	t.Run("grouped follows stage order", func(t *testing.T) {
		svc, d := newLeadSvc(t, nil)
		d.repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(leads, nil)
		d.stages.EXPECT().List(gomock.Any(), gomock.Any()).Return(board(), nil)

		p, err := svc.List(context.Background(), uuid.New(), pipeline.ShapeGrouped)
		require.NoError(t, err)
		assert.Equal(t, pipeline.ShapeGrouped, p.Shape)
		require.Len(t, p.Groups, 6)
		assert.Equal(t, domainstage.ID("1"), p.Groups[0].StageID)
		assert.Equal(t, []domainlead.ID{"b"}, domainlead.IDs(p.Groups[0].Leads))
		assert.Equal(t, []domainlead.ID{"a"}, domainlead.IDs(p.Groups[1].Leads))
		assert.Empty(t, p.Groups[2].Leads)
		assert.Equal(t, domainstage.ID("gone"), p.Groups[5].StageID)
	})

	t.Run("unknown shape", func(t *testing.T) {
		svc, d := newLeadSvc(t, nil)
		d.repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(leads, nil)

		_, err := svc.List(context.Background(), uuid.New(), "tree")
		assert.ErrorIs(t, err, pipeline.ErrUnknownShape)
	})

	t.Run("repo error", func(t *testing.T) {
		svc, d := newLeadSvc(t, nil)
		d.repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("db error"))

		_, err := svc.List(context.Background(), uuid.New(), pipeline.ShapeFlat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list leads")
	})
}

// ── Move ──────────────────────────────────────────────────────────────────────

func TestMove(t *testing.T) {
	tests := []struct {
		name      string
		current   domainstage.ID
		target    domainstage.ID
		setup     func(d svcDeps)
		wantErr   error
		wantStage domainstage.ID
	}{
		{
			name:    "plain move updates and publishes",
			current: "1", target: "2",
			setup: func(d svcDeps) {
				d.repo.EXPECT().Update(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, l domainlead.Lead) error {
						assert.Equal(t, domainstage.ID("2"), l.StageID)
						return nil
					})
				d.bus.EXPECT().Publish(gomock.Any(), matchEventType(event.TypeLeadMoved)).Return(nil)
			},
			wantStage: "2",
		},
		{
			name:    "same stage is a no-op",
			current: "2", target: "2",
			setup:     func(d svcDeps) {},
			wantStage: "2",
		},
		{
			name:    "gated target rejected",
			current: "2", target: "3",
			setup:   func(d svcDeps) {},
			wantErr: leadsvc.ErrGateRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newLeadSvc(t, nil)
			tenantID := uuid.New()
			d.stages.EXPECT().List(gomock.Any(), tenantID).Return(board(), nil)
			d.repo.EXPECT().GetByID(gomock.Any(), tenantID, domainlead.ID("a")).
				Return(domainlead.Lead{ID: "a", TenantID: tenantID, StageID: tt.current}, nil)
			tt.setup(d)

			got, err := svc.Move(context.Background(), tenantID, "a", tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStage, got.StageID)
		})
	}
}

func TestMove_UnknownStage(t *testing.T) {
	svc, d := newLeadSvc(t, nil)
	d.stages.EXPECT().List(gomock.Any(), gomock.Any()).Return(board(), nil)

	_, err := svc.Move(context.Background(), uuid.New(), "a", "99")
	assert.ErrorIs(t, err, domainstage.ErrNotFound)
}

func TestMove_LeadNotFound(t *testing.T) {
	svc, d := newLeadSvc(t, nil)
	d.stages.EXPECT().List(gomock.Any(), gomock.Any()).Return(board(), nil)
	d.repo.EXPECT().GetByID(gomock.Any(), gomock.Any(), gomock.Any()).Return(domainlead.Lead{}, domainlead.ErrNotFound)

	_, err := svc.Move(context.Background(), uuid.New(), "a", "2")
	assert.ErrorIs(t, err, domainlead.ErrNotFound)
}

// ── CompleteGate ──────────────────────────────────────────────────────────────

func TestCompleteGate(t *testing.T) {
	tests := []struct {
		name          string
		gates         pipeline.Gates
		tenant        domaintenant.Tenant
		cmd           gate.Command
		wantErr       error
		rejectedEarly bool
		wantStage     domainstage.ID
		check         func(t *testing.T, l domainlead.Lead)
	}{
		{
			name:  "conversion lands on target with fields",
			gates: pipeline.DefaultGates,
			cmd: gate.Command{LeadID: "a", TargetStageID: "3", FormType: domainstage.FormConverted,
				Payload: gate.Conversion{Amount: 900, Currency: "USD"}},
			wantStage: "3",
			check: func(t *testing.T, l domainlead.Lead) {
				require.NotNil(t, l.Conversion)
				assert.Equal(t, 900.0, l.Conversion.Amount)
			},
		},
		{
			name:  "server-wide redirect",
			gates: pipeline.Gates{domainstage.FormConverted: {RedirectTo: domainstage.FormOnboarding}},
			cmd: gate.Command{LeadID: "a", TargetStageID: "3", FormType: domainstage.FormConverted,
				Payload: gate.Conversion{Amount: 1, Currency: "EUR"}},
			wantStage: "4",
		},
		{
			name:   "tenant redirect overrides defaults",
			gates:  pipeline.DefaultGates,
			tenant: domaintenant.Tenant{Gates: pipeline.Gates{domainstage.FormConverted: {RedirectTo: domainstage.FormOnboarding}}},
			cmd: gate.Command{LeadID: "a", TargetStageID: "3", FormType: domainstage.FormConverted,
				Payload: gate.Conversion{Amount: 1, Currency: "EUR"}},
			wantStage: "4",
		},
		{
			name:  "lost reason",
			gates: pipeline.DefaultGates,
			cmd: gate.Command{LeadID: "a", TargetStageID: "5", FormType: domainstage.FormLost,
				Payload: gate.Lost{Reason: "budget"}},
			wantStage: "5",
			check: func(t *testing.T, l domainlead.Lead) {
				assert.Equal(t, "budget", l.ReasonForLost)
			},
		},
		{
			name:  "payload for another form",
			gates: pipeline.DefaultGates,
			cmd: gate.Command{LeadID: "a", TargetStageID: "3",
				Payload: gate.Lost{Reason: "budget"}},
			wantErr: gate.ErrFormMismatch,
		},
		{
			name:  "declared form differs from stage",
			gates: pipeline.DefaultGates,
			cmd: gate.Command{LeadID: "a", TargetStageID: "3", FormType: domainstage.FormLost,
				Payload: gate.Conversion{Amount: 1, Currency: "EUR"}},
			wantErr:       gate.ErrFormMismatch,
			rejectedEarly: true,
		},
		{
			name:  "invalid payload",
			gates: pipeline.DefaultGates,
			cmd: gate.Command{LeadID: "a", TargetStageID: "5", FormType: domainstage.FormLost,
				Payload: gate.Lost{Reason: " "}},
			wantErr: gate.ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newLeadSvc(t, tt.gates)
			tenantID := uuid.New()
			tt.tenant.ID = tenantID
			d.tenants.EXPECT().GetByID(gomock.Any(), tenantID).Return(tt.tenant, nil)
			d.stages.EXPECT().List(gomock.Any(), tenantID).Return(board(), nil)
			if !tt.rejectedEarly {
				d.repo.EXPECT().GetByID(gomock.Any(), tenantID, domainlead.ID("a")).
					Return(domainlead.Lead{ID: "a", TenantID: tenantID, StageID: "2"}, nil)
			}

			var stored domainlead.Lead
			if tt.wantErr == nil {
				d.repo.EXPECT().Update(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, l domainlead.Lead) error {
						stored = l
						return nil
					})
				d.bus.EXPECT().Publish(gomock.Any(), matchEventType(event.TypeLeadGated)).Return(nil)
			}

			got, err := svc.CompleteGate(context.Background(), tenantID, tt.cmd)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStage, got.StageID)
			// One write carries both the stage and the terminal fields.
			assert.Equal(t, got, stored)
			assert.True(t, stored.Terminal())
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestCompleteGate_NonGatedTarget(t *testing.T) {
	svc, d := newLeadSvc(t, nil)
	d.tenants.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(domaintenant.Tenant{}, nil)
	d.stages.EXPECT().List(gomock.Any(), gomock.Any()).Return(board(), nil)

	_, err := svc.CompleteGate(context.Background(), uuid.New(), gate.Command{
		LeadID: "a", TargetStageID: "2", Payload: gate.Junk{Reason: "spam"},
	})
	assert.ErrorIs(t, err, leadsvc.ErrNotGated)
}

func TestCompleteGate_TenantLookupFailureUsesDefaults(t *testing.T) {
	svc, d := newLeadSvc(t, pipeline.Gates{domainstage.FormLost: {RedirectTo: domainstage.FormOnboarding}})
	d.tenants.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(domaintenant.Tenant{}, domaintenant.ErrNotFound)
	d.stages.EXPECT().List(gomock.Any(), gomock.Any()).Return(board(), nil)
	d.repo.EXPECT().GetByID(gomock.Any(), gomock.Any(), gomock.Any()).Return(domainlead.Lead{ID: "a", StageID: "1"}, nil)
	d.repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	d.bus.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	got, err := svc.CompleteGate(context.Background(), uuid.New(), gate.Command{
		LeadID: "a", TargetStageID: "5", Payload: gate.Lost{Reason: "ghosted"},
	})
	require.NoError(t, err)
	assert.Equal(t, domainstage.ID("4"), got.StageID)
}

func TestCompleteGate_UpdateErrorPublishesNothing(t *testing.T) {
	svc, d := newLeadSvc(t, nil)
	d.tenants.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(domaintenant.Tenant{}, nil)
	d.stages.EXPECT().List(gomock.Any(), gomock.Any()).Return(board(), nil)
	d.repo.EXPECT().GetByID(gomock.Any(), gomock.Any(), gomock.Any()).Return(domainlead.Lead{ID: "a", StageID: "1"}, nil)
	d.repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(errors.New("db error"))

	_, err := svc.CompleteGate(context.Background(), uuid.New(), gate.Command{
		LeadID: "a", TargetStageID: "5", Payload: gate.Lost{Reason: "ghosted"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update gated lead")
}

func TestCompleteGate_MissingPayload(t *testing.T) {
	svc, _ := newLeadSvc(t, nil)
	_, err := svc.CompleteGate(context.Background(), uuid.New(), gate.Command{LeadID: "a", TargetStageID: "5"})
	assert.ErrorIs(t, err, gate.ErrInvalidPayload)
}
