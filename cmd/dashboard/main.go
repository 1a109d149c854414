package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/sire-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sire-dashboard/internal/adapter/kafka"
	s3adapter "github.com/couchcryptid/sire-dashboard/internal/adapter/s3"
	"github.com/couchcryptid/sire-dashboard/internal/cache"
	"github.com/couchcryptid/sire-dashboard/internal/config"
	"github.com/couchcryptid/sire-dashboard/internal/dataset"
	"github.com/couchcryptid/sire-dashboard/internal/observability"
	"github.com/couchcryptid/sire-dashboard/internal/pipeline"
	"github.com/couchcryptid/sire-dashboard/internal/refresh"
	"github.com/couchcryptid/sire-dashboard/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	dom, err := config.LoadDomain(cfg.RegionsPath)
	if err != nil {
		logger.Error("failed to load domain config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Source backend (local files by default, S3-compatible bucket via SOURCE_BACKEND=s3).
	var backend cache.Backend = cache.FileBackend{}
	if cfg.SourceBackend == config.BackendS3 {
		client, err := s3adapter.NewClient(ctx, cfg)
		if err != nil {
			logger.Error("failed to create s3 client", "error", err)
			os.Exit(1)
		}
		backend = s3adapter.NewBackend(client, cfg.S3Bucket)
		logger.Info("reading sources from s3", "bucket", cfg.S3Bucket, "endpoint", cfg.S3Endpoint)
	} else {
		logger.Info("reading sources from local files")
	}

	reg := cache.NewRegistry()
	store := dataset.NewStore(dataset.NewSources(backend, cfg, reg), dom.Scope, clockwork.NewRealClock(), logger, metrics)
	p := pipeline.New(store, dom, cfg.RegionValueCap, logger, metrics)
	charts := render.NewChartRenderer(cfg.ChartCacheSize, metrics)
	reg.Register(charts)

	opts := refresh.Options{
		Schedule:   cfg.RefreshSchedule,
		Store:      store,
		Invalidate: []refresh.Invalidator{charts},
		Logger:     logger,
		Metrics:    metrics,
	}

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts.Snapshotter = p
		opts.Publisher = writer
		logger.Info("region snapshot publishing enabled", "topic", cfg.KafkaSnapshotTopic)
	} else {
		logger.Info("region snapshot publishing disabled")
	}

	sched, err := refresh.New(opts)
	if err != nil {
		logger.Error("failed to create refresh scheduler", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Ready:     store,
		Dashboard: p,
		Snapshots: store,
		Charts:    charts,
		Unserved:  dom.Unserved,
		Logger:    logger,
	})

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start dataset loading and periodic refresh.
	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("refresh scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := reg.Close(); err != nil {
		logger.Error("cache registry close error", "error", err)
	}

	logger.Info("shutdown complete")
}
