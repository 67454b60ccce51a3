package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mxindex/mxindex/internal/api"
	"github.com/mxindex/mxindex/internal/clock/system"
	"github.com/mxindex/mxindex/internal/refresher"
)

// newServeCmd creates the 'serve' subcommand, which runs the HTTP API.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the index HTTP API",
		Long: `Runs the catalog API: server listing and search, on-demand indexing of
new domains, health endpoints, and Prometheus metrics. Optionally sweeps
stale records in the background.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()

	repo, closeRepo, err := buildRepository(ctx, cfg, clock, logger)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer closeRepo()

	cache, closeCache := buildCache(ctx, cfg, clock, logger)
	defer closeCache()

	pipeline := buildPipeline(cfg, repo, cache, logger)

	if cfg.Refresh.Enabled {
		if lister, ok := repo.(refresher.StaleLister); ok {
			sweeper := refresher.New(lister, pipeline, clock, refresher.Config{
				Interval:  cfg.RefreshInterval(),
				MaxAge:    cfg.RefreshMaxAge(),
				BatchSize: cfg.Refresh.BatchSize,
			}, logger.Named("refresher"))
			go sweeper.Run(ctx)
		}
	}

	server := api.NewServer(repo, pipeline, logger.Named("api"), api.Config{
		AuthEnabled:    cfg.Auth.Enabled,
		APIKey:         cfg.Auth.APIKey,
		RequestTimeout: cfg.RequestTimeout(),
		Version:        version,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	return nil
}
