// Package bootstrap provides dependency initialization for the transcode API.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/maauso/transcode-api/internal/artifact"
	"github.com/maauso/transcode-api/internal/asset"
	"github.com/maauso/transcode-api/internal/config"
	"github.com/maauso/transcode-api/internal/media"
	"github.com/maauso/transcode-api/internal/metrics"
	"github.com/maauso/transcode-api/internal/pipeline"
	"github.com/maauso/transcode-api/internal/storage"
)

const metricsNamespace = "transcode"

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Service  *pipeline.Service
	Store    artifact.Store
	Scratch  *storage.Scratch
	Metrics  *metrics.Prom
	Registry *prometheus.Registry

	closers []func() error
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize scratch space
	scratch, err := initScratch(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Scratch = scratch

	// Initialize result store
	if err := deps.initResultStore(cfg, logger); err != nil {
		return nil, err
	}

	// Initialize optional artifact publishing
	publisher, err := initPublisher(ctx, cfg, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}

	// Initialize metrics
	deps.Registry = metrics.NewRegistry()
	deps.Metrics = metrics.NewProm(metricsNamespace, deps.Registry)

	executor := media.NewExecutor(cfg.FFmpegPath,
		media.WithDefaultTimeout(cfg.ProcessTimeout),
		media.WithMaxConcurrent(cfg.MaxConcurrentProcesses),
		media.WithLogger(logger),
		media.WithObserver(deps.Metrics),
	)
	fetcher := asset.NewFetcher(
		asset.WithTimeout(cfg.FetchTimeout),
		asset.WithLogger(logger),
	)

	deps.Service = pipeline.NewService(
		scratch,
		fetcher,
		executor,
		deps.Store,
		pipeline.WithProcessTimeout(cfg.ProcessTimeout),
		pipeline.WithMergeTimeout(cfg.MergeTimeout),
		pipeline.WithPublisher(publisher),
		pipeline.WithRecorder(deps.Metrics),
		pipeline.WithLogger(logger),
	)

	return deps, nil
}

// Close releases connections held by the dependencies.
func (d *Dependencies) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initScratch creates the storage root and clears leftovers of a previous run.
func initScratch(cfg *config.Config, logger *slog.Logger) (*storage.Scratch, error) {
	scratch, err := storage.NewScratch(cfg.StorageDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create scratch space: %w", err)
	}
	if err := scratch.Purge(); err != nil {
		return nil, fmt.Errorf("purge scratch space: %w", err)
	}
	logger.Info("scratch space configured",
		slog.String("root", scratch.Root()),
	)
	return scratch, nil
}

// initResultStore creates the artifact index selected by RESULT_STORE.
func (d *Dependencies) initResultStore(cfg *config.Config, logger *slog.Logger) error {
	if strings.EqualFold(cfg.ResultStore, config.ResultStoreRedis) {
		store, err := artifact.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("create redis result store: %w", err)
		}
		d.Store = store
		d.closers = append(d.closers, store.Close)
		logger.Info("redis result store configured")
		return nil
	}

	d.Store = artifact.NewMemoryStore()
	logger.Info("memory result store configured")
	return nil
}

// initPublisher creates the S3 publisher when S3 is configured.
func initPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Publisher, error) {
	if !cfg.S3Enabled() {
		return storage.NopPublisher{}, nil
	}

	publisher, err := storage.NewS3Publisher(ctx, s3Config(cfg))
	if err != nil {
		return nil, fmt.Errorf("create S3 publisher: %w", err)
	}
	logger.Info("S3 publishing configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
		slog.String("prefix", cfg.S3Prefix),
	)
	return publisher, nil
}

func s3Config(cfg *config.Config) storage.S3Config {
	return storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Prefix:          cfg.S3Prefix,
	}
}
