// Package main provides the entry point for the transcode API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/transcode-api/internal/bootstrap"
	"github.com/maauso/transcode-api/internal/config"
	"github.com/maauso/transcode-api/internal/metrics"
	"github.com/maauso/transcode-api/internal/server"
)

// writeSlack is added to the longest operation budget so that a request
// that spends its whole budget still gets its response written.
const writeSlack = 5 * time.Minute

// writeTimeout covers the slowest operation, a merge: fetch every input,
// normalize them, then concatenate, each stage with its own budget.
func writeTimeout(cfg *config.Config) time.Duration {
	return cfg.FetchTimeout + 2*cfg.MergeTimeout + writeSlack
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting transcode API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("storage_dir", cfg.StorageDir),
		slog.String("result_store", cfg.ResultStore),
		slog.String("ffmpeg_path", cfg.FFmpegPath),
		slog.Duration("process_timeout", cfg.ProcessTimeout),
		slog.Duration("merge_timeout", cfg.MergeTimeout),
		slog.Int("max_concurrent_processes", cfg.MaxConcurrentProcesses),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	ctx := context.Background()

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("failed to release dependencies", slog.String("error", err.Error()))
		}
	}()

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.Service, deps.Store, logger,
		server.WithPublicBaseURL(cfg.PublicBaseURL),
	)
	routerCfg := server.DefaultConfig()
	routerCfg.Metrics = deps.Metrics
	routerCfg.MetricsHandler = metrics.Handler(deps.Registry)
	router := server.NewRouter(handlers, logger, routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// In-flight operations get their full merge budget to finish.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.MergeTimeout)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
