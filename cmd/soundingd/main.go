package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/sounding-edit-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sounding-edit-service/internal/adapter/kafka"
	"github.com/couchcryptid/sounding-edit-service/internal/adapter/predict"
	"github.com/couchcryptid/sounding-edit-service/internal/config"
	"github.com/couchcryptid/sounding-edit-service/internal/editor"
	"github.com/couchcryptid/sounding-edit-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := predict.NewClient(cfg.PredictBaseURL, cfg.PredictTimeout, metrics, logger)
	sampler := predict.NewCachedSampler(client, cfg.SampleCacheSize, metrics)
	logger.Info("prediction service configured", "base_url", cfg.PredictBaseURL,
		"timeout", cfg.PredictTimeout, "sample_cache_size", cfg.SampleCacheSize)

	// Edit publishing is feature-flagged via KAFKA_ENABLED.
	var (
		publisher editor.EditPublisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("edit publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEditTopic)
	} else {
		logger.Info("edit publishing disabled")
	}

	svc := editor.New(client, client, sampler, publisher, logger, metrics, editor.Options{
		Width:             cfg.SkewTWidth,
		Height:            cfg.SkewTHeight,
		Workers:           cfg.PredictWorkers,
		QueueSize:         cfg.PredictQueueSize,
		SampleMinInterval: cfg.SampleMinInterval,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Start prediction dispatcher and edit publisher.
	g.Go(func() error {
		return svc.Run(gctx)
	})

	// Shut down the HTTP server once a signal arrives or a component fails.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		svc.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
