package api

import (
	"context"

	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

// PipelineAPI is the board's only way to read or change server state.
// Implementations are bound to one tenant when constructed; no call reads
// tenant identity from ambient state.
// [DIP] service/board depends on this interface; adapter/httpapi and
// adapter/local satisfy it.
type PipelineAPI interface {
	FetchStages(ctx context.Context) ([]stage.Stage, error)
	FetchLeads(ctx context.Context) (pipeline.Payload, error)
	MoveLead(ctx context.Context, leadID lead.ID, stageID stage.ID) error
	CreateStage(ctx context.Context, req pipeline.CreateStageRequest) (stage.Stage, error)
	// DeleteStages removes every stage in ids or none of them.
	DeleteStages(ctx context.Context, ids []stage.ID) error
	// SubmitGate sends a completed gating form: terminal fields and target
	// stage in one command.
	SubmitGate(ctx context.Context, cmd gate.Command) error
}
