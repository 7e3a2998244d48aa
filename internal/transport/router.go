package transport

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/lead-pipeline/internal/domain/event"
	porteventbus "github.com/alanyang/lead-pipeline/internal/port/eventbus"
	portidem "github.com/alanyang/lead-pipeline/internal/port/idempotency"
	leadsvc "github.com/alanyang/lead-pipeline/internal/service/lead"
	stagesvc "github.com/alanyang/lead-pipeline/internal/service/stage"
	tenantsvc "github.com/alanyang/lead-pipeline/internal/service/tenant"

	"github.com/alanyang/lead-pipeline/internal/transport/auth"
	leadhandler "github.com/alanyang/lead-pipeline/internal/transport/lead"
	mcptransport "github.com/alanyang/lead-pipeline/internal/transport/mcp"
	stagehandler "github.com/alanyang/lead-pipeline/internal/transport/stage"
	tenanthandler "github.com/alanyang/lead-pipeline/internal/transport/tenant"
	wshandler "github.com/alanyang/lead-pipeline/internal/transport/ws"
)

// Deps groups what the router mounts.
type Deps struct {
	Tenants     *tenantsvc.Service
	Stages      *stagesvc.Service
	Leads       *leadsvc.Service
	Tokens      *auth.Issuer
	Idempotency portidem.Store
	MCP         *mcptransport.Server
	EventBus    porteventbus.EventBus
}

func NewRouter(ctx context.Context, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())

	api := r.Group("/api")

	tenanthandler.Register(api.Group("/tenants"), d.Tenants, d.Tokens)

	authed := api.Group("", d.Tokens.Middleware(), IdempotencyMiddleware(d.Idempotency))
	stagehandler.Register(authed.Group("/stages"), d.Stages)
	leadhandler.Register(authed.Group("/leads"), d.Leads)

	hub := wshandler.NewHub()
	hub.Register(authed.Group("/ws"))

	if d.MCP != nil {
		r.Any("/mcp", d.Tokens.Middleware(), gin.WrapH(d.MCP.Handler()))
	}

	// Bridge: one subscription per domain channel. Every event marks the
	// tenant's boards stale, in browsers and in MCP sessions alike.
	for _, ch := range event.Channels {
		c := ch
		if _, err := d.EventBus.Subscribe(ctx, c, func(ctx context.Context, e event.Event) {
			hub.Broadcast(e)
			if d.MCP != nil {
				d.MCP.Registry().MarkTenantStale(ctx, e.TenantID, string(e.Type))
			}
		}); err != nil {
			slog.Error("failed to subscribe channel to WS hub", "channel", c, "error", err)
		}
	}

	return r
}
