package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/water-globe-etl/internal/adapter/carto"
	httpadapter "github.com/couchcryptid/water-globe-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/water-globe-etl/internal/adapter/kafka"
	"github.com/couchcryptid/water-globe-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/water-globe-etl/internal/config"
	"github.com/couchcryptid/water-globe-etl/internal/domain"
	"github.com/couchcryptid/water-globe-etl/internal/observability"
	"github.com/couchcryptid/water-globe-etl/internal/pipeline"
)

const dataSourceName = "water-use"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	source := domain.NewDataSource(dataSourceName)
	if err := source.SetHeightScale(cfg.HeightScale); err != nil {
		logger.Error("invalid height scale", "error", err)
		os.Exit(1)
	}

	client := carto.NewClient(carto.Config{
		BaseURL:         cfg.CartoBaseURL,
		APIKey:          cfg.CartoAPIKey,
		CountiesTable:   cfg.CartoCountiesTable,
		PopulationTable: cfg.CartoPopulationTable,
		Timeout:         cfg.CartoTimeout,
		RowLimit:        cfg.CartoRowLimit,
	}, metrics, logger)
	transformer := pipeline.NewTransformer(cfg.SeriesName, logger)

	opts := pipeline.Options{Interval: cfg.RefreshInterval}

	// Snapshot store (enabled via SNAPSHOT_DB).
	var store *sqlite.Store
	if cfg.SnapshotDB != "" {
		store, err = sqlite.Open(cfg.SnapshotDB)
		if err != nil {
			logger.Error("failed to open snapshot store", "error", err, "path", cfg.SnapshotDB)
			os.Exit(1)
		}
		opts.Snapshots = store
		logger.Info("row snapshots enabled", "path", cfg.SnapshotDB)
	}

	// Entity publisher (feature-flagged via KAFKA_ENABLED).
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts.Publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEntityTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(client, transformer, source, logger, metrics, opts)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, httpadapter.API{
		Source:    source,
		Refresher: p,
		Clock:     cfg.ClockSettings(),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
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
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("snapshot store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
