package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
	"github.com/alanyang/lead-pipeline/internal/service/board"
	"github.com/alanyang/lead-pipeline/internal/transport/auth"
)

var errNoTenant = errors.New("request carries no tenant")

// RegisterTools registers all MCP tools on the server.
// [SRP] Tool registration only.
// [OCP] Add a new tool by adding a new AddTool call; server.go never changes.
func RegisterTools(s *mcpserver.MCPServer, reg *SessionRegistry) {
	s.AddTool(mcpmcp.NewTool("get_board",
		mcpmcp.WithDescription("Returns the pipeline board: stages in display order, leads grouped by stage, any open gating form, and whether the board is stale. A stale board is refreshed before it is returned."),
		mcpmcp.WithBoolean("refresh", mcpmcp.Description("Refetch even if the board is not stale")),
	), getBoardHandler(reg))

	s.AddTool(mcpmcp.NewTool("drop_lead",
		mcpmcp.WithDescription("Move a lead onto the stage with the given name. Ungated stages move immediately. A gated stage opens a gating form instead; finish it with complete_gate or discard it with cancel_gate."),
		mcpmcp.WithString("lead_id", mcpmcp.Required(), mcpmcp.Description("Lead id")),
		mcpmcp.WithString("stage_name", mcpmcp.Required(), mcpmcp.Description("Target stage name, as shown on the board")),
	), dropLeadHandler(reg))

	s.AddTool(mcpmcp.NewTool("complete_gate",
		mcpmcp.WithDescription("Submit the open gating form. CONVERTED takes {amount, currency, paymentMethod?, paymentReference?}; JUNK and LOST take {reason}; other form types take {fields}."),
		mcpmcp.WithString("payload", mcpmcp.Required(), mcpmcp.Description("Form payload as a JSON object")),
	), completeGateHandler(reg))

	s.AddTool(mcpmcp.NewTool("cancel_gate",
		mcpmcp.WithDescription("Discard the open gating form. Nothing is sent to the server and the lead stays where it is."),
	), cancelGateHandler(reg))

	s.AddTool(mcpmcp.NewTool("create_stage",
		mcpmcp.WithDescription("Add a stage at the end of the pipeline. Gated stages need a form type; ungated stages must not have one."),
		mcpmcp.WithString("name", mcpmcp.Required(), mcpmcp.Description("Stage name, unique within the tenant ignoring case")),
		mcpmcp.WithBoolean("gated", mcpmcp.Description("Whether entering the stage needs a form (defaults to true when form_type is set)")),
		mcpmcp.WithString("form_type", mcpmcp.Description("CONVERTED, JUNK, LOST, or a custom kind")),
		mcpmcp.WithString("color", mcpmcp.Description("Display color code")),
	), createStageHandler(reg))

	s.AddTool(mcpmcp.NewTool("delete_stages",
		mcpmcp.WithDescription("Delete stages as one batch. Refused if any of them still holds a lead; the error lists the occupied stage ids."),
		mcpmcp.WithArray("stage_ids", mcpmcp.Required(), mcpmcp.WithStringItems(), mcpmcp.Description("Stage ids to delete")),
	), deleteStagesHandler(reg))
}

// ── helpers ───────────────────────────────────────────────────────────────

// boardFor resolves the calling session's board.
func boardFor(ctx context.Context, reg *SessionRegistry) (*board.Board, error) {
	tenantID, ok := auth.TenantFromContext(ctx)
	if !ok {
		return nil, errNoTenant
	}
	sessionID := ""
	if session := mcpserver.ClientSessionFromContext(ctx); session != nil {
		sessionID = session.SessionID()
	}
	return reg.Board(sessionID, tenantID)
}

// ensureFresh refreshes a board that was never loaded or has gone stale.
func ensureFresh(ctx context.Context, b *board.Board, force bool) error {
	if force || b.Stale() || b.Snapshot().RefreshedAt.IsZero() {
		return b.Refresh(ctx)
	}
	return nil
}

func errorResult(err error) *mcpmcp.CallToolResult {
	return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err))
}

func jsonResult(v any) *mcpmcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return mcpmcp.NewToolResultText(string(data))
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []string:
		return x
	case string:
		var out []string
		for _, s := range strings.Split(x, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ── Tool handlers ─────────────────────────────────────────────────────────

func getBoardHandler(reg *SessionRegistry) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		b, err := boardFor(ctx, reg)
		if err != nil {
			return errorResult(err), nil
		}
		if err := ensureFresh(ctx, b, mcpmcp.ParseBoolean(req, "refresh", false)); err != nil {
			return errorResult(err), nil
		}
		return jsonResult(b.Snapshot()), nil
	}
}

type dropResult struct {
	Decision pipeline.Decision       `json:"decision"`
	Pending  *gate.PendingTransition `json:"pending,omitempty"`
}

func dropLeadHandler(reg *SessionRegistry) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		leadID := strings.TrimSpace(mcpmcp.ParseString(req, "lead_id", ""))
		stageName := mcpmcp.ParseString(req, "stage_name", "")
		if leadID == "" {
			return mcpmcp.NewToolResultText("error: lead_id required"), nil
		}

		b, err := boardFor(ctx, reg)
		if err != nil {
			return errorResult(err), nil
		}
		if err := ensureFresh(ctx, b, false); err != nil {
			return errorResult(err), nil
		}

		d, err := b.Drop(ctx, lead.ID(leadID), stageName)
		if err != nil {
			return errorResult(err), nil
		}
		res := dropResult{Decision: d}
		if p, ok := b.Pending(); ok && d.Kind == pipeline.Deferred {
			res.Pending = &p
		}
		return jsonResult(res), nil
	}
}

func completeGateHandler(reg *SessionRegistry) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		raw := mcpmcp.ParseString(req, "payload", "")

		b, err := boardFor(ctx, reg)
		if err != nil {
			return errorResult(err), nil
		}
		p, ok := b.Pending()
		if !ok {
			return errorResult(board.ErrNoPendingGate), nil
		}
		payload, err := gate.DecodePayload(p.RequiredFormType, json.RawMessage(raw))
		if err != nil {
			return errorResult(err), nil
		}
		if err := b.SubmitGate(ctx, payload); err != nil {
			return errorResult(err), nil
		}
		return jsonResult(b.Snapshot()), nil
	}
}

func cancelGateHandler(reg *SessionRegistry) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, _ mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		b, err := boardFor(ctx, reg)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]bool{"cancelled": b.CancelGate()}), nil
	}
}

func createStageHandler(reg *SessionRegistry) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		formType := stage.ParseFormType(mcpmcp.ParseString(req, "form_type", ""))
		in := pipeline.CreateStageRequest{
			Name:     mcpmcp.ParseString(req, "name", ""),
			Color:    mcpmcp.ParseString(req, "color", ""),
			Gated:    mcpmcp.ParseBoolean(req, "gated", formType.Gated()),
			FormType: formType,
		}

		b, err := boardFor(ctx, reg)
		if err != nil {
			return errorResult(err), nil
		}
		if err := ensureFresh(ctx, b, false); err != nil {
			return errorResult(err), nil
		}
		created, err := b.CreateStage(ctx, in)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(created), nil
	}
}

func deleteStagesHandler(reg *SessionRegistry) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		raw := stringList(req.GetArguments()["stage_ids"])
		ids := make([]stage.ID, 0, len(raw))
		for _, s := range raw {
			ids = append(ids, stage.ID(s))
		}

		b, err := boardFor(ctx, reg)
		if err != nil {
			return errorResult(err), nil
		}
		if err := b.DeleteStages(ctx, ids); err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"deleted": ids}), nil
	}
}
