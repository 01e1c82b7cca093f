package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/frontdesk-scheduling/internal/config"
	"github.com/hackgods/frontdesk-scheduling/internal/db"
	redisclient "github.com/hackgods/frontdesk-scheduling/internal/redis"
	"github.com/hackgods/frontdesk-scheduling/internal/seed"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

func main() {
	fakePatients := flag.Int("fake-patients", 0, "also insert this many generated patients")
	fakeSeed := flag.Uint64("fake-seed", 0, "seed for generated data, 0 picks a random one")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "seed")

	if cfg.StorageDriver != config.DriverPostgres {
		logger.Error("seed only applies to the postgres store", "storage", cfg.StorageDriver)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: cfg.PostgresMaxConns,
		MinConns: cfg.PostgresMinConns,
	})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	departments, doctors := seed.Departments(), seed.Doctors()
	if err := seed.LoadDirectory(ctx, pool, departments, doctors); err != nil {
		logger.Error("seed directory", "error", err)
		os.Exit(1)
	}
	logger.Info("directory seeded", "departments", len(departments), "doctors", len(doctors))

	if *fakePatients > 0 {
		n, err := seed.FakePatients(ctx, pool, gofakeit.New(*fakeSeed), *fakePatients)
		if err != nil {
			logger.Error("seed patients", "error", err, "written", n)
			os.Exit(1)
		}
		logger.Info("patients seeded", "count", n)
	}

	if cfg.RedisEnabled() {
		invalidateCache(ctx, cfg, logger)
	}
	logger.Info("seed complete")
}

// invalidateCache drops cached directory entries so running servers pick up
// the new templates.
func invalidateCache(ctx context.Context, cfg config.Config, logger *logging.Logger) {
	rdb, err := redisclient.NewClient(ctx, redisclient.ClientOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Warn("redis unavailable, cached directory entries expire on their own", "error", err)
		return
	}
	defer rdb.Close()

	cache := redisclient.NewDirectoryCache(nil, rdb, cfg.DirectoryCacheTTL, nil, logger)
	n, err := cache.Invalidate(ctx)
	if err != nil {
		logger.Warn("directory cache invalidation failed", "error", err, "removed", n)
		return
	}
	logger.Info("directory cache invalidated", "removed", n)
}
