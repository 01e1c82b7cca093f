package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/frontdesk-scheduling/internal/app"
	"github.com/hackgods/frontdesk-scheduling/internal/config"
	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "completion-worker")
	logger.Info("completion worker starting up", "env", cfg.Env, "interval", cfg.WorkerInterval, "timezone", cfg.ClinicLocationName)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a.Service, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping completion worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a.Service, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, logger *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CompleteElapsed(runCtx)
	if err != nil {
		logger.Error("completion run failed", "error", err)
		return
	}
	logger.Info("completion run complete", "completed", n, "duration", time.Since(start))
}
