package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
	cachememory "tus-upload/internal/adapters/cache/memory"
	cacheredis "tus-upload/internal/adapters/cache/redis"
	"tus-upload/internal/adapters/eventbroker/nats"
	"tus-upload/internal/adapters/handlers/http/chi"
	"tus-upload/internal/adapters/handlers/http/chi/v1/attachment"
	lockmemory "tus-upload/internal/adapters/lock/memory"
	lockredis "tus-upload/internal/adapters/lock/redis"
	repomemory "tus-upload/internal/adapters/repository/memory"
	"tus-upload/internal/adapters/repository/postgres"
	"tus-upload/internal/adapters/storage/fs"
	"tus-upload/internal/adapters/storage/minio"
	"tus-upload/internal/adapters/storage/retry"
	"tus-upload/internal/config"
	"tus-upload/internal/core/port"
	"tus-upload/internal/core/service/cleanup"
	"tus-upload/internal/core/service/upload"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
)

func main() {

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log)
	checks := map[string]chi.ReadinessCheck{}

	//storage
	storage, err := initStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}

	//repositories
	var unitOfWork port.UnitOfWork
	switch cfg.SessionStore.Driver {
	case "postgres":
		db, err := initDB(cfg.Database)
		if err != nil {
			logger.Error("failed to init database", "error", err)
			os.Exit(1)
		}
		defer func(db *sql.DB) {
			if err := db.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}(db)
		logger.Info("db connection established")
		unitOfWork = postgres.NewUnitOfWork(db)
		checks["database"] = db.PingContext
	default:
		logger.Warn("sessions are kept in memory and lost on restart")
		unitOfWork = repomemory.NewUnitOfWork(repomemory.NewStore())
	}

	var redisClient *redis.Client
	if cfg.Lock.Driver == "redis" || cfg.Cache.Driver == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to reach redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var locker port.UploadLocker
	if cfg.Lock.Driver == "redis" {
		locker = lockredis.NewLocker(redisClient, cfg.Lock.TTL, logger)
	} else {
		locker = lockmemory.NewLocker()
	}

	var cache port.ResponseCache
	switch cfg.Cache.Driver {
	case "redis":
		cache = cacheredis.NewCache(redisClient, cfg.Cache.TTL)
	case "memory":
		cache = cachememory.NewCache(cfg.Cache.MaxEntries)
	}

	//events
	var publisher port.EventPublisher
	if cfg.NATS.URL != "" {
		natsPublisher, err := nats.NewNATSPublisher(ctx, cfg.NATS, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := natsPublisher.Close(); err != nil {
				logger.Error("failed to close NATS publisher", "error", err)
			}
		}()
		publisher = natsPublisher
		logger.Info("NATS publisher initialized", "subject", cfg.NATS.Subject)
	}

	uploadService := upload.NewUploadService(unitOfWork, storage, locker, publisher, cfg.Upload, logger)
	cleanupService := cleanup.NewCleanupService(unitOfWork, storage, locker, logger)

	//http
	attachmentHandler := attachment.NewAttachmentHandlerV1(uploadService, cache, attachment.Config{
		BasePath:           cfg.Upload.BasePath,
		MaxSize:            cfg.Upload.MaxSize,
		MaxChunkSize:       cfg.Upload.MaxChunkSize,
		CacheMaxObjectSize: cfg.Cache.MaxObjectSize,
	}, logger)

	router := chi.NewRouter(logger, attachmentHandler, chi.Options{
		Env:            cfg.Env.Env,
		BasePath:       cfg.Upload.BasePath,
		HandlerTimeout: cfg.Server.HandlerTimeout,
		MaxRequestSize: cfg.Upload.MaxChunkSize,
		Checks:         checks,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port, "base_path", cfg.Upload.BasePath)
		servErr := server.ListenAndServe()
		if servErr != nil && !errors.Is(servErr, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", servErr)
			stop()
		}
	}()

	// init cleanup task
	wg.Add(1)
	go func() {
		defer wg.Done()
		initCleanupTask(ctx, cleanupService, cfg.Upload.CleanupEvery, logger)
	}()

	//wait for context cancel
	<-ctx.Done()
	logger.Info("gracefully shutting down app")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	} else {
		logger.Info("server gracefully shutdown complete")
	}

	wg.Wait()
	logger.Info("app shutdown complete")

}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (port.BlobStore, error) {
	var store port.BlobStore
	switch cfg.Storage.Driver {
	case "fs":
		fsStore, err := fs.NewStore(cfg.FS.Root, logger)
		if err != nil {
			return nil, err
		}
		store = fsStore
	default:
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

func initDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenCons)
	db.SetMaxIdleConns(cfg.MaxIdleCons)
	db.SetConnMaxLifetime(cfg.ConMaxLifeTime)

	return db, nil
}

func initCleanupTask(ctx context.Context, service port.CleanupService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger.Info("cleanup task initialized", "interval", every)

	for {
		select {
		case <-ticker.C:
			if err := service.CleanupExpiredUploads(ctx, time.Now()); err != nil {
				logger.Error("failed to cleanup expired uploads", "error", err)
			}
		case <-ctx.Done():
			logger.Info("cleanup task stopped")
			return
		}
	}

}
