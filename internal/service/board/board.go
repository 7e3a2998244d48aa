package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
	portapi "github.com/alanyang/lead-pipeline/internal/port/api"
)

var (
	ErrLeadInFlight  = errors.New("lead has a change awaiting refresh")
	ErrGateOpen      = errors.New("a gating form is already open")
	ErrNoPendingGate = errors.New("no gating form is open")
	ErrNotLoaded     = errors.New("board has not been refreshed")
)

// Snapshot is a consistent copy of the board as of its last refresh.
type Snapshot struct {
	Stages      []stage.Stage           `json:"stages"`
	Grouping    pipeline.Grouping       `json:"grouping"`
	Stale       bool                    `json:"stale"`
	Pending     *gate.PendingTransition `json:"pending,omitempty"`
	RefreshedAt time.Time               `json:"refreshedAt"`
	InFlight    []lead.ID               `json:"inFlight,omitempty"`
}

// Board is one session's view of a tenant pipeline. All writes round-trip
// through the API and only show up locally after the refresh that follows
// them. The mutex guards state only; no API call runs while it is held, so
// CancelGate never waits on a fetch.
type Board struct {
	api portapi.PipelineAPI

	mu          sync.Mutex
	loaded      bool
	reg         *stage.Registry
	grouping    pipeline.Grouping
	refreshedAt time.Time

	// inFlight holds leads with an issued command. The value is true once the
	// command succeeded and the lead only waits for the refresh.
	inFlight map[lead.ID]bool
	// dirty is set by any successful write (or MarkStale) until a refresh
	// that started after it completes.
	dirty    bool
	writeSeq uint64
	pending  *gate.PendingTransition
}

func New(api portapi.PipelineAPI) *Board {
	return &Board{
		api:      api,
		reg:      stage.NewRegistry(nil),
		inFlight: make(map[lead.ID]bool),
	}
}

// Refresh re-fetches stages and leads and rebuilds the grouping. On failure
// the previous snapshot stays in place.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	seq := b.writeSeq
	b.mu.Unlock()

	stages, err := b.api.FetchStages(ctx)
	if err != nil {
		return fmt.Errorf("fetch stages: %w", err)
	}
	payload, err := b.api.FetchLeads(ctx)
	if err != nil {
		return fmt.Errorf("fetch leads: %w", err)
	}
	reg := stage.NewRegistry(stages)
	grouping := pipeline.Normalize(payload, reg)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.reg = reg
	b.grouping = grouping
	b.refreshedAt = time.Now().UTC()
	b.loaded = true
	if b.writeSeq == seq {
		b.dirty = false
		for id, settled := range b.inFlight {
			if settled {
				delete(b.inFlight, id)
			}
		}
	}
	return nil
}

// Stale reports whether a write or remote change has not yet been followed
// by a refresh.
func (b *Board) Stale() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.staleLocked()
}

func (b *Board) staleLocked() bool {
	return b.dirty || len(b.inFlight) > 0
}

// MarkStale flags the board after an out-of-band change, such as another
// session's write announced over the event bus.
func (b *Board) MarkStale() {
	b.mu.Lock()
	b.dirty = true
	b.writeSeq++
	b.mu.Unlock()
}

func (b *Board) Registry() *stage.Registry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reg
}

func (b *Board) Grouping() pipeline.Grouping {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.grouping
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Stages:      b.reg.Ordered(),
		Grouping:    b.grouping,
		Stale:       b.staleLocked(),
		RefreshedAt: b.refreshedAt,
	}
	if b.pending != nil {
		p := *b.pending
		s.Pending = &p
	}
	for id := range b.inFlight {
		s.InFlight = append(s.InFlight, id)
	}
	return s
}

// Pending returns the open gating form, if any.
func (b *Board) Pending() (gate.PendingTransition, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return gate.PendingTransition{}, false
	}
	return *b.pending, true
}

// Drop handles a lead dropped onto the stage named targetStageName. A
// commit is sent to the server and followed by a refresh; a deferred
// decision opens the gating form and sends nothing.
func (b *Board) Drop(ctx context.Context, id lead.ID, targetStageName string) (pipeline.Decision, error) {
	b.mu.Lock()
	if !b.loaded {
		b.mu.Unlock()
		return pipeline.Decision{}, ErrNotLoaded
	}
	if b.pending != nil {
		b.mu.Unlock()
		return pipeline.Decision{}, ErrGateOpen
	}
	if _, busy := b.inFlight[id]; busy {
		b.mu.Unlock()
		return pipeline.Decision{}, fmt.Errorf("%w: %s", ErrLeadInFlight, id)
	}
	l, _, ok := b.grouping.Find(id)
	if !ok {
		b.mu.Unlock()
		return pipeline.Decision{}, fmt.Errorf("%w: %s", lead.ErrNotFound, id)
	}

	d := pipeline.Evaluate(l, targetStageName, b.reg)
	switch d.Kind {
	case pipeline.NoOp:
		b.mu.Unlock()
		slog.InfoContext(ctx, "board: drop ignored", "lead_id", id, "target", targetStageName, "reason", d.Reason)
		return d, nil
	case pipeline.Deferred:
		p, err := gate.Open(d, l)
		if err != nil {
			b.mu.Unlock()
			return d, err
		}
		b.pending = &p
		b.mu.Unlock()
		slog.InfoContext(ctx, "board: gating form opened", "lead_id", id, "form_type", d.FormType, "target_stage_id", d.TargetStageID)
		return d, nil
	}
	b.inFlight[id] = false
	b.mu.Unlock()

	if err := b.api.MoveLead(ctx, id, d.TargetStageID); err != nil {
		b.release(id)
		return d, fmt.Errorf("move lead %s: %w", id, err)
	}
	return d, b.afterWrite(ctx, id)
}

// SubmitGate completes the open gating form. A rejected submission keeps
// the form open so it can be corrected or cancelled.
func (b *Board) SubmitGate(ctx context.Context, payload gate.Payload) error {
	b.mu.Lock()
	if b.pending == nil {
		b.mu.Unlock()
		return ErrNoPendingGate
	}
	p := *b.pending
	if _, busy := b.inFlight[p.Lead.ID]; busy {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLeadInFlight, p.Lead.ID)
	}
	cmd, err := gate.Complete(p, payload)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.inFlight[p.Lead.ID] = false
	b.mu.Unlock()

	if err := b.api.SubmitGate(ctx, cmd); err != nil {
		b.release(p.Lead.ID)
		return fmt.Errorf("submit %s form for lead %s: %w", cmd.FormType, cmd.LeadID, err)
	}

	b.mu.Lock()
	if b.pending != nil && b.pending.ID == p.ID {
		b.pending = nil
	}
	b.mu.Unlock()
	return b.afterWrite(ctx, p.Lead.ID)
}

// CancelGate discards the open gating form with no server call. It reports
// whether a form was open.
func (b *Board) CancelGate() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	open := b.pending != nil
	b.pending = nil
	return open
}

// CreateStage validates the request against the current registry before
// sending it.
func (b *Board) CreateStage(ctx context.Context, req pipeline.CreateStageRequest) (stage.Stage, error) {
	if err := pipeline.ValidateCreate(req, b.Registry()); err != nil {
		return stage.Stage{}, err
	}
	created, err := b.api.CreateStage(ctx, req)
	if err != nil {
		return stage.Stage{}, fmt.Errorf("create stage %q: %w", req.Name, err)
	}
	return created, b.afterWrite(ctx, "")
}

// DeleteStages checks occupancy against a fresh lead fetch, never the
// cached grouping, and sends the batch only if every stage is empty.
func (b *Board) DeleteStages(ctx context.Context, ids []stage.ID) error {
	if len(ids) == 0 {
		return pipeline.ErrNoStagesSelected
	}
	payload, err := b.api.FetchLeads(ctx)
	if err != nil {
		return fmt.Errorf("fetch leads for delete guard: %w", err)
	}
	if err := pipeline.CanDelete(ids, payload.AllLeads()).Err(); err != nil {
		return err
	}

	if err := b.api.DeleteStages(ctx, ids); err != nil {
		if errors.Is(err, pipeline.ErrStageOccupied) {
			slog.WarnContext(ctx, "board: server rejected delete the guard allowed", "stage_ids", ids, "error", err)
		}
		return fmt.Errorf("delete stages: %w", err)
	}
	return b.afterWrite(ctx, "")
}

// release forgets a lead whose command failed. Nothing changed on the
// server, so the board is as fresh as it was before the command.
func (b *Board) release(id lead.ID) {
	b.mu.Lock()
	delete(b.inFlight, id)
	b.mu.Unlock()
}

// afterWrite records a successful write and refreshes. The lead, if any,
// stays locked until a refresh started after this write completes.
func (b *Board) afterWrite(ctx context.Context, id lead.ID) error {
	b.mu.Lock()
	if id != "" {
		b.inFlight[id] = true
	}
	b.dirty = true
	b.writeSeq++
	b.mu.Unlock()

	if err := b.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "board: refresh after write failed", "lead_id", id, "error", err)
		return fmt.Errorf("refresh after write: %w", err)
	}
	return nil
}
