package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/frontdesk-scheduling/internal/observability/metrics"
	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/internal/tools"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

type RouterConfig struct {
	Service  *scheduling.Service
	Tools    *tools.Catalogue
	PgPool   *pgxpool.Pool // nil with the memory store
	Redis    *redis.Client // nil when redis is not configured
	Logger   *logging.Logger
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer // serves /metrics when set
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.NewCatalogue(cfg.Service)
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))

	required := map[string]Check{}
	optional := map[string]Check{}
	if cfg.PgPool != nil {
		required["postgres"] = cfg.PgPool.Ping
	}
	if cfg.Redis != nil {
		optional["redis"] = func(ctx context.Context) error { return cfg.Redis.Ping(ctx).Err() }
	}
	health := NewHealthHandler(required, optional, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	svc, logger := cfg.Service, cfg.Logger

	r.Post("/appointments", createAppointmentHandler(svc, logger))
	r.Get("/appointments", listAppointmentsHandler(svc, logger))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc, logger))
	r.Get("/availability", availabilityHandler(svc, logger))

	r.Get("/departments", listDepartmentsHandler(svc, logger))
	r.Get("/departments/{name}", getDepartmentHandler(svc, logger))
	r.Get("/departments/{name}/schedule", departmentScheduleHandler(svc, logger))

	r.Get("/tools", listToolsHandler(cfg.Tools))
	r.Post("/tools/{name}", callToolHandler(cfg.Tools, logger))

	return r
}
