package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/efebarandurmaz/vendortwin/internal/app"
	"github.com/efebarandurmaz/vendortwin/internal/config"
	"github.com/efebarandurmaz/vendortwin/internal/loader"
	"github.com/efebarandurmaz/vendortwin/internal/observability"
	"github.com/efebarandurmaz/vendortwin/internal/server"
	temporalmod "github.com/efebarandurmaz/vendortwin/internal/temporal"
)

var version = "0.1.0"

func main() {
	configPath := "configs/vendortwin.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, app.Options{Version: version, Logger: logger, Results: true})
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	activities := temporalmod.NewActivities(temporalmod.Dependencies{
		Store:      a.Store,
		Simulator:  a.Simulator,
		Compliance: a.Compliance,
		Source:     a.SourceOptions(),
		Catalog:    loader.DefaultCatalog(),
		Logger:     logger,
		Publisher:  a.Publisher,
		Metrics:    a.Metrics,
		Audit:      a.Audit,
		WriteLock:  a.WriteLock,
	})

	c, err := app.TemporalClient(ctx, cfg, logger)
	if err != nil {
		_ = a.Close(ctx)
		log.Fatalf("%v", err)
	}

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue, activities)
	if err != nil {
		c.Close()
		_ = a.Close(ctx)
		log.Fatalf("worker: %v", err)
	}
	logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue, "namespace", cfg.Temporal.Namespace)

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  logger,
	})
	shutdown.Add(server.TemporalWorkerShutdownHook(func() {
		w.Stop()
		c.Close()
	}))
	for _, hook := range a.Hooks() {
		shutdown.Add(hook)
	}
	shutdown.Start()
	shutdown.Wait()
	logger.Info("worker stopped")
}
