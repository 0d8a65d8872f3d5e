package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/vendortwin/internal/config"
	"github.com/efebarandurmaz/vendortwin/internal/results"
	"github.com/efebarandurmaz/vendortwin/internal/server"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()
	a, err := openApp(ctx, cfg, true)
	if err != nil {
		return err
	}

	var cache results.Store
	if a.Results != nil {
		cache = a.Results
	}
	var mounts []server.Mount
	if a.Feed != nil {
		mounts = append(mounts, a.Feed)
	}
	health := a.Health(version)
	api := server.NewAPI(server.APIOptions{
		Simulator:       a.Simulator,
		Reader:          a.Store,
		Results:         cache,
		Health:          health,
		Metrics:         a.Metrics,
		Logger:          logger,
		DefaultDuration: cfg.Simulation.DefaultDuration,
		Version:         version,
		Mounts:          mounts,
	})
	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, api)

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  logger,
	})
	shutdown.Add(server.HTTPServerShutdownHook("http", func(ctx context.Context) error {
		health.SetReady(false)
		return srv.Shutdown(ctx)
	}))
	for _, hook := range a.Hooks() {
		shutdown.Add(hook)
	}
	shutdown.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving API", "addr", cfg.Server.Addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()
	health.SetReady(true)

	select {
	case err = <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
		shutdown.Shutdown()
		shutdown.Wait()
		return err
	case <-shutdown.Done():
		return <-errCh
	}
}
