package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
	"github.com/alanyang/lead-pipeline/internal/domain/tenant"
	portlead "github.com/alanyang/lead-pipeline/internal/port/lead"
	portstage "github.com/alanyang/lead-pipeline/internal/port/stage"
	porttenant "github.com/alanyang/lead-pipeline/internal/port/tenant"
)

var (
	_ portstage.Repository  = (*StageRepository)(nil)
	_ portlead.Repository   = (*LeadRepository)(nil)
	_ porttenant.Repository = (*TenantRepository)(nil)
)

// Store holds tenants, stages and leads for a server run without Postgres.
// Its repositories enforce the same referential rule as the SQL schema: a
// stage referenced by a lead cannot be deleted.
type Store struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]tenant.Tenant
	stages  map[uuid.UUID][]stage.Stage
	leads   map[uuid.UUID][]lead.Lead
}

func NewStore() *Store {
	return &Store{
		tenants: make(map[uuid.UUID]tenant.Tenant),
		stages:  make(map[uuid.UUID][]stage.Stage),
		leads:   make(map[uuid.UUID][]lead.Lead),
	}
}

func (s *Store) Stages() *StageRepository   { return &StageRepository{s: s} }
func (s *Store) Leads() *LeadRepository     { return &LeadRepository{s: s} }
func (s *Store) Tenants() *TenantRepository { return &TenantRepository{s: s} }

// ── stages ────────────────────────────────────────────────────────────────────

type StageRepository struct{ s *Store }

func (r *StageRepository) Create(_ context.Context, st stage.Stage) (stage.Stage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.stages[st.TenantID] {
		if existing.ID == st.ID {
			return stage.Stage{}, fmt.Errorf("insert stage: duplicate id %s", st.ID)
		}
		if existing.Name == st.Name {
			return stage.Stage{}, fmt.Errorf("insert stage: %w", pipeline.ErrStageNameTaken)
		}
	}
	r.s.stages[st.TenantID] = append(r.s.stages[st.TenantID], st)
	return st, nil
}

func (r *StageRepository) List(_ context.Context, tenantID uuid.UUID) ([]stage.Stage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]stage.Stage, len(r.s.stages[tenantID]))
	copy(out, r.s.stages[tenantID])
	return out, nil
}

func (r *StageRepository) DeleteMany(_ context.Context, tenantID uuid.UUID, ids []stage.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := pipeline.CanDelete(ids, r.s.leads[tenantID]).Err(); err != nil {
		return err
	}
	drop := make(map[stage.ID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := r.s.stages[tenantID][:0:0]
	for _, st := range r.s.stages[tenantID] {
		if _, ok := drop[st.ID]; !ok {
			kept = append(kept, st)
		}
	}
	r.s.stages[tenantID] = kept
	return nil
}

// ── leads ─────────────────────────────────────────────────────────────────────

type LeadRepository struct{ s *Store }

func (r *LeadRepository) Create(_ context.Context, l lead.Lead) (lead.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.HasStage() && !r.s.hasStage(l.TenantID, l.StageID) {
		return lead.Lead{}, fmt.Errorf("insert lead: %w: %s", stage.ErrNotFound, l.StageID)
	}
	r.s.leads[l.TenantID] = append(r.s.leads[l.TenantID], cloneLead(l))
	return l, nil
}

func (r *LeadRepository) GetByID(_ context.Context, tenantID uuid.UUID, id lead.ID) (lead.Lead, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, l := range r.s.leads[tenantID] {
		if l.ID == id {
			return cloneLead(l), nil
		}
	}
	return lead.Lead{}, lead.ErrNotFound
}

func (r *LeadRepository) List(_ context.Context, tenantID uuid.UUID) ([]lead.Lead, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]lead.Lead, 0, len(r.s.leads[tenantID]))
	for _, l := range r.s.leads[tenantID] {
		out = append(out, cloneLead(l))
	}
	return out, nil
}

func (r *LeadRepository) Update(_ context.Context, l lead.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.HasStage() && !r.s.hasStage(l.TenantID, l.StageID) {
		return fmt.Errorf("update lead: %w: %s", stage.ErrNotFound, l.StageID)
	}
	leads := r.s.leads[l.TenantID]
	for i := range leads {
		if leads[i].ID == l.ID {
			leads[i] = cloneLead(l)
			return nil
		}
	}
	return lead.ErrNotFound
}

// cloneLead detaches the reference fields so stored leads are never shared
// with callers.
func cloneLead(l lead.Lead) lead.Lead {
	if l.Conversion != nil {
		c := *l.Conversion
		l.Conversion = &c
	}
	if l.FormData != nil {
		l.FormData = maps.Clone(l.FormData)
	}
	return l
}

func (s *Store) hasStage(tenantID uuid.UUID, id stage.ID) bool {
	for _, st := range s.stages[tenantID] {
		if st.ID == id {
			return true
		}
	}
	return false
}

// ── tenants ───────────────────────────────────────────────────────────────────

type TenantRepository struct{ s *Store }

func (r *TenantRepository) Create(_ context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.tenants[t.ID]; dup {
		return tenant.Tenant{}, fmt.Errorf("insert tenant: duplicate id %s", t.ID)
	}
	r.s.tenants[t.ID] = t
	return t, nil
}

func (r *TenantRepository) GetByID(_ context.Context, id uuid.UUID) (tenant.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return tenant.Tenant{}, tenant.ErrNotFound
	}
	return t, nil
}
