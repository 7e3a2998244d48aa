package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/alanyang/lead-pipeline/internal/adapter/local"
	"github.com/alanyang/lead-pipeline/internal/adapter/memory"
	pgdb "github.com/alanyang/lead-pipeline/internal/adapter/postgres"
	pgeventbus "github.com/alanyang/lead-pipeline/internal/adapter/postgres/eventbus"
	pgidem "github.com/alanyang/lead-pipeline/internal/adapter/postgres/idempotency"
	pglead "github.com/alanyang/lead-pipeline/internal/adapter/postgres/lead"
	pglocker "github.com/alanyang/lead-pipeline/internal/adapter/postgres/locker"
	pgstage "github.com/alanyang/lead-pipeline/internal/adapter/postgres/stage"
	pgtenant "github.com/alanyang/lead-pipeline/internal/adapter/postgres/tenant"
	redisadapter "github.com/alanyang/lead-pipeline/internal/adapter/redis"

	"github.com/alanyang/lead-pipeline/internal/config"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	portapi "github.com/alanyang/lead-pipeline/internal/port/api"
	porteventbus "github.com/alanyang/lead-pipeline/internal/port/eventbus"
	portidem "github.com/alanyang/lead-pipeline/internal/port/idempotency"
	portlead "github.com/alanyang/lead-pipeline/internal/port/lead"
	portlocker "github.com/alanyang/lead-pipeline/internal/port/locker"
	portstage "github.com/alanyang/lead-pipeline/internal/port/stage"
	porttenant "github.com/alanyang/lead-pipeline/internal/port/tenant"

	leadsvc "github.com/alanyang/lead-pipeline/internal/service/lead"
	stagesvc "github.com/alanyang/lead-pipeline/internal/service/stage"
	tenantsvc "github.com/alanyang/lead-pipeline/internal/service/tenant"

	"github.com/alanyang/lead-pipeline/internal/transport"
	"github.com/alanyang/lead-pipeline/internal/transport/auth"
	mcptransport "github.com/alanyang/lead-pipeline/internal/transport/mcp"
)

// App holds the top-level resources needed to run and gracefully stop the server.
type App struct {
	Pool      *pgxpool.Pool
	Redis     *goredis.Client
	Server    *http.Server
	MCPServer *mcptransport.Server
}

// Close releases the connections Build opened.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Error("redis close failed", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// repositories is the persistence half of the graph, Postgres or memory.
type repositories struct {
	stages  portstage.Repository
	leads   portlead.Repository
	tenants porttenant.Repository
	locker  portlocker.AdvisoryLocker
}

// Build is the composition root: the only place concrete types are wired to their
// interface dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}

	// ── Database ─────────────────────────────────────────────────────────────
	var repos repositories
	if cfg.Database.URL != "" {
		pool, err := pgdb.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		app.Pool = pool
		if err := pgdb.Migrate(ctx, pool); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		repos = repositories{
			stages:  pgstage.New(pool),
			leads:   pglead.New(pool),
			tenants: pgtenant.New(pool),
			locker:  pglocker.New(pool),
		}
	} else {
		slog.Warn("DATABASE_URL not set, using the in-memory store")
		store := memory.NewStore()
		repos = repositories{
			stages:  store.Stages(),
			leads:   store.Leads(),
			tenants: store.Tenants(),
			locker:  memory.NewLocker(),
		}
	}

	if cfg.EventBus.Kind == config.BackendRedis || cfg.Idempotency.Kind == config.BackendRedis {
		client, err := redisadapter.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		app.Redis = client
	}

	// ── Adapters ─────────────────────────────────────────────────────────────
	eventBus := buildEventBus(cfg, app)
	idem := buildIdempotency(ctx, cfg, app)

	// ── Services ─────────────────────────────────────────────────────────────
	gates := cfg.Gates
	if gates == nil {
		gates = pipeline.DefaultGates
	}
	tenantSvcInstance := tenantsvc.NewService(repos.tenants)
	stageSvcInstance := stagesvc.NewService(repos.stages, repos.leads, eventBus, repos.locker)
	leadSvcInstance := leadsvc.NewService(repos.leads, repos.stages, repos.tenants, eventBus, repos.locker, gates)

	// MCP sessions drive a board over the in-process services.
	reg := mcptransport.NewSessionRegistry(func(tenantID uuid.UUID) portapi.PipelineAPI {
		return local.New(tenantID, stageSvcInstance, leadSvcInstance, pipeline.ShapeGrouped)
	})
	app.MCPServer = mcptransport.New(reg)

	// ── Transport ─────────────────────────────────────────────────────────────
	router := transport.NewRouter(ctx, transport.Deps{
		Tenants:     tenantSvcInstance,
		Stages:      stageSvcInstance,
		Leads:       leadSvcInstance,
		Tokens:      auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Idempotency: idem,
		MCP:         app.MCPServer,
		EventBus:    eventBus,
	})

	app.Server = &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	slog.Info("application wired",
		"port", cfg.Server.Port,
		"postgres", app.Pool != nil,
		"event_bus", cfg.EventBus.Kind,
		"idempotency", cfg.Idempotency.Kind,
	)
	return app, nil
}

func buildEventBus(cfg *config.Config, app *App) porteventbus.EventBus {
	switch cfg.EventBus.Kind {
	case config.BackendPostgres:
		return pgeventbus.New(app.Pool)
	case config.BackendRedis:
		return redisadapter.NewEventBus(app.Redis, cfg.Redis.Prefix)
	}
	return memory.NewEventBus()
}

func buildIdempotency(ctx context.Context, cfg *config.Config, app *App) portidem.Store {
	switch cfg.Idempotency.Kind {
	case config.BackendPostgres:
		store := pgidem.New(app.Pool)
		startJanitor(ctx, store, cfg.Idempotency.Retention, cfg.Idempotency.PurgeInterval)
		return store
	case config.BackendRedis:
		return redisadapter.NewIdempotencyStore(app.Redis, cfg.Idempotency.Retention)
	}
	return memory.NewIdempotencyStore(cfg.Idempotency.Retention)
}
