// Package app assembles the scheduling service from configuration for the
// long-running commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/frontdesk-scheduling/internal/config"
	"github.com/hackgods/frontdesk-scheduling/internal/db"
	"github.com/hackgods/frontdesk-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/frontdesk-scheduling/internal/redis"
	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/internal/seed"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

type App struct {
	Config   config.Config
	Logger   *logging.Logger
	Service  *scheduling.Service
	PgPool   *pgxpool.Pool // nil with the memory store
	Redis    *redis.Client // nil when redis is not configured
	Registry *prometheus.Registry
	Metrics  *metrics.SchedulingMetrics
	Cache    *redisclient.DirectoryCache // nil when redis is not configured

	closers []func()
}

// New connects the configured backends and builds the service. Redis is
// optional: when it cannot be reached the app starts without the patient
// lock and directory cache.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewSchedulingMetrics(a.Registry)

	var store scheduling.Store
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		if cfg.MigrateOnStart {
			if err := db.Migrate(cfg.PostgresDSN); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("database migrations applied")
		}

		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
			MaxConns: cfg.PostgresMaxConns,
			MinConns: cfg.PostgresMinConns,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		a.PgPool = pool
		a.closers = append(a.closers, pool.Close)
		store = scheduling.NewPgRepository(pool)
		logger.Info("connected to postgres")
	case config.DriverMemory:
		mem, err := scheduling.NewMemoryRepository(seed.Departments(), seed.Doctors())
		if err != nil {
			return nil, fmt.Errorf("memory store: %w", err)
		}
		store = mem
		logger.Warn("using in-memory store, appointments are lost on restart")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	var (
		directory scheduling.Directory = store
		locker    scheduling.Locker
	)
	if cfg.RedisEnabled() {
		rdb, err := redisclient.NewClient(ctx, redisclient.ClientOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Warn("redis unavailable, continuing without lock and cache", "error", err)
		} else {
			a.Redis = rdb
			a.closers = append(a.closers, func() {
				if err := rdb.Close(); err != nil {
					logger.Warn("error closing redis", "error", err)
				}
			})
			locker = redisclient.NewRedisKeyLocker(rdb, redisclient.LockOptions{
				TTL:        cfg.LockTTL,
				Retries:    cfg.LockRetries,
				RetryDelay: cfg.LockRetryDelay,
			}, logger.With("component", "lock"))
			a.Cache = redisclient.NewDirectoryCache(store, rdb, cfg.DirectoryCacheTTL, a.Metrics, logger)
			directory = a.Cache
			logger.Info("connected to redis", "addr", cfg.RedisAddr)
		}
	}

	registry := scheduling.NewRegistry(store, locker, logger.With("component", "registry"))
	a.Service = scheduling.NewService(directory, store, registry, scheduling.Options{
		StorageTimeout:      cfg.StorageTimeout,
		EnforceWorkingHours: cfg.EnforceHours,
		Location:            cfg.ClinicLocation,
		Metrics:             a.Metrics,
		Logger:              logger.With("component", "scheduling"),
	})
	return a, nil
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
