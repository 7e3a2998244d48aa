package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyang/lead-pipeline/internal/domain/event"
	"github.com/alanyang/lead-pipeline/internal/transport/auth"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one browser connection. Only its writer goroutine writes to
// conn; gorilla connections allow a single concurrent writer.
type client struct {
	tenantID uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
}

// Hub pushes staleness events to the browsers of the tenant they belong
// to. Events carry ids only; a browser that receives one refetches.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Register mounts the upgrade endpoint. The route must run behind
// auth.Issuer.Middleware.
func (h *Hub) Register(rg *gin.RouterGroup) {
	rg.GET("", h.handleWS)
}

func (h *Hub) handleWS(c *gin.Context) {
	tenantID, ok := auth.Require(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{tenantID: tenantID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go cl.writeLoop()

	defer h.remove(cl)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

func (cl *client) writeLoop() {
	defer cl.conn.Close()
	for data := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Error("websocket write failed", "tenant_id", cl.tenantID, "error", err)
			return
		}
	}
}

// Broadcast queues e for every connection of e's tenant. A client whose
// buffer is full misses the event; it is already stale and will refetch on
// the next one it receives.
func (h *Hub) Broadcast(e event.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("websocket broadcast marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		if cl.tenantID != e.TenantID {
			continue
		}
		select {
		case cl.send <- data:
		default:
			slog.Warn("websocket client lagging, event dropped", "tenant_id", cl.tenantID, "type", e.Type)
		}
	}
}

// Clients reports the open connections for tenantID.
func (h *Hub) Clients(tenantID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for cl := range h.clients {
		if cl.tenantID == tenantID {
			n++
		}
	}
	return n
}
