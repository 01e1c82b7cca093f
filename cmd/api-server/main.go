package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/frontdesk-scheduling/internal/api"
	"github.com/hackgods/frontdesk-scheduling/internal/app"
	"github.com/hackgods/frontdesk-scheduling/internal/config"
	"github.com/hackgods/frontdesk-scheduling/internal/observability/metrics"
	"github.com/hackgods/frontdesk-scheduling/internal/tools"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server")
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "storage", cfg.StorageDriver)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	router := api.NewRouter(api.RouterConfig{
		Service:  a.Service,
		Tools:    tools.NewCatalogue(a.Service),
		PgPool:   a.PgPool,
		Redis:    a.Redis,
		Logger:   logger,
		Metrics:  metrics.NewHTTPMetrics(a.Registry),
		Gatherer: a.Registry,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("api-server stopped")
}
