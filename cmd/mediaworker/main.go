package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"tus-upload/internal/adapters/eventbroker/nats"
	"tus-upload/internal/adapters/storage/fs"
	"tus-upload/internal/adapters/storage/minio"
	"tus-upload/internal/adapters/storage/retry"
	"tus-upload/internal/config"
	"tus-upload/internal/core/port"
	"tus-upload/internal/core/service/mediaevent"

	_ "github.com/joho/godotenv/autoload"
)

func main() {

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	// Load config
	cfg, err := config.LoadMediaWorker()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log)

	storage, err := initStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	logger.Info("storage initialized", "driver", cfg.Storage.Driver)

	mediaService := mediaevent.NewMediaEventService(storage, logger)

	// Initialize NATS consumer
	natsConsumer, err := nats.NewNATSConsumer(cfg.NATS, logger)
	if err != nil {
		logger.Error("failed to create NATS consumer", "error", err)
		os.Exit(1)
	}
	logger.Info("NATS consumer initialized")

	if err := natsConsumer.Subscribe(ctx, mediaService); err != nil {
		logger.Error("failed to subscribe to NATS", "error", err)
		natsConsumer.Close()
		os.Exit(1)
	}
	logger.Info("NATS subscription active", "stream", cfg.NATS.StreamName, "consumer", cfg.NATS.ConsumerName)

	// Wait for termination signal
	<-ctx.Done()
	logger.Info("gracefully shutting down media worker")

	done := make(chan error, 1)
	go func() { done <- natsConsumer.Close() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("failed to close NATS consumer during shutdown", "error", err)
		}
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("shutdown timeout exceeded")
	}

	logger.Info("media worker shutdown complete")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("service", "mediaworker")
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)).With("service", "mediaworker")
}

func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (port.BlobStore, error) {
	var store port.BlobStore
	if cfg.Storage.Driver == "fs" {
		fsStore, err := fs.NewStore(cfg.FS.Root, logger)
		if err != nil {
			return nil, err
		}
		store = fsStore
	} else {
		minioAdapter, err := minio.NewAdapter(ctx, cfg.Minio, logger)
		if err != nil {
			return nil, err
		}
		store = minioAdapter
	}
	return retry.New(store, retry.Policy{
		Attempts:       cfg.Storage.RetryAttempts,
		BaseDelay:      cfg.Storage.RetryBaseDelay,
		MaxDelay:       cfg.Storage.RetryMaxDelay,
		AttemptTimeout: cfg.Storage.AttemptTimeout,
	}, logger), nil
}
