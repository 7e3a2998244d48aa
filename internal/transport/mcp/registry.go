package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"

	portapi "github.com/alanyang/lead-pipeline/internal/port/api"
	"github.com/alanyang/lead-pipeline/internal/service/board"
)

// ErrTenantMismatch rejects a session that presents a different tenant than
// the one its board was opened for.
var ErrTenantMismatch = errors.New("session belongs to another tenant")

// APIFactory binds a PipelineAPI to one tenant for a new board.
type APIFactory func(tenantID uuid.UUID) portapi.PipelineAPI

// sessionEntry is one session's board and the tenant it was opened for.
type sessionEntry struct {
	tenantID uuid.UUID
	board    *board.Board
}

// SessionRegistry is the in-memory registry of MCP sessions and their boards.
//
// [SRP] Session storage and staleness fan-out only.
// [DIP] Boards reach the server through the injected APIFactory.
type SessionRegistry struct {
	newAPI APIFactory

	mu      sync.RWMutex
	entries map[string]*sessionEntry // session key → entry

	// mcpSrv is set after the MCP server is constructed (avoids circular init dependency).
	mcpMu  sync.RWMutex
	mcpSrv *mcpserver.MCPServer
}

func NewSessionRegistry(newAPI APIFactory) *SessionRegistry {
	return &SessionRegistry{
		newAPI:  newAPI,
		entries: make(map[string]*sessionEntry),
	}
}

// SetMCPServer injects the mcp-go server after construction (breaks the init cycle).
func (r *SessionRegistry) SetMCPServer(s *mcpserver.MCPServer) {
	r.mcpMu.Lock()
	r.mcpSrv = s
	r.mcpMu.Unlock()
}

// sessionKey falls back to a per-tenant key for requests that carry no
// session, so sessionless callers of one tenant share a board.
func sessionKey(sessionID string, tenantID uuid.UUID) string {
	if sessionID != "" {
		return sessionID
	}
	return "tenant:" + tenantID.String()
}

// Board returns the board for a session, opening it on first use.
func (r *SessionRegistry) Board(sessionID string, tenantID uuid.UUID) (*board.Board, error) {
	key := sessionKey(sessionID, tenantID)

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		if entry.tenantID != tenantID {
			return nil, ErrTenantMismatch
		}
		return entry.board, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[key]; ok {
		if entry.tenantID != tenantID {
			return nil, ErrTenantMismatch
		}
		return entry.board, nil
	}
	entry = &sessionEntry{tenantID: tenantID, board: board.New(r.newAPI(tenantID))}
	r.entries[key] = entry
	return entry.board, nil
}

// Unregister drops a session's board when the session closes.
func (r *SessionRegistry) Unregister(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[sessionID]; !ok {
		return false
	}
	delete(r.entries, sessionID)
	return true
}

// Sessions reports how many boards are open for tenantID.
func (r *SessionRegistry) Sessions(tenantID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.tenantID == tenantID {
			n++
		}
	}
	return n
}

// MarkTenantStale flags every board of tenantID after a change elsewhere and
// tells each connected session to refetch. Delivery failures are logged; the
// board is stale either way.
func (r *SessionRegistry) MarkTenantStale(ctx context.Context, tenantID uuid.UUID, reason string) {
	r.mu.RLock()
	targets := make([]string, 0)
	for key, e := range r.entries {
		if e.tenantID != tenantID {
			continue
		}
		e.board.MarkStale()
		targets = append(targets, key)
	}
	r.mu.RUnlock()

	r.mcpMu.RLock()
	srv := r.mcpSrv
	r.mcpMu.RUnlock()
	if srv == nil {
		return
	}

	params := map[string]any{
		"level": "info",
		"data":  map[string]any{"event": "board_stale", "reason": reason},
	}
	for _, key := range targets {
		if key == sessionKey("", tenantID) {
			continue
		}
		if err := srv.SendNotificationToSpecificClient(key, "notifications/message", params); err != nil {
			slog.DebugContext(ctx, "mcp: stale notification not delivered", "session_id", key, "error", err)
		}
	}
}
