package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mediadrop/internal/server/api"
	"mediadrop/internal/server/auth"
	"mediadrop/internal/server/config"
	"mediadrop/internal/server/database"
	"mediadrop/internal/server/events"
	"mediadrop/internal/server/metrics"
	"mediadrop/internal/server/service"
	"mediadrop/internal/server/storage"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// printToken signs a development access token for a user id.
func printToken(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: server token <user-id>")
	}
	token, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL).Issue(args[0])
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(cfg *config.Config) error {
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"storage_backend", cfg.StorageBackend,
		"buckets", cfg.Buckets,
		"max_file_size", cfg.MaxFileSize,
		"session_expiry", cfg.SessionExpiry,
	)

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	partials := storage.NewPartials(cfg.SpoolPath)
	if err := partials.EnsureDir(); err != nil {
		return err
	}
	slog.Info("spool initialized", "path", cfg.SpoolPath)

	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	observer, err := metrics.NewObserver("mediadrop")
	if err != nil {
		return err
	}

	svc := service.NewUploadService(service.Dependencies{
		Files:    db.files,
		Sessions: db.sessions,
		Stats:    db.stats,
		Store:    store,
		Partials: partials,
		Events:   publisher,
		Observer: observer,
	}, cfg)

	// Start cleanup service
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	cleanup := storage.NewCleanupService(db.sessions, partials, cfg.CleanupInterval)
	cleanup.Start(cleanupCtx)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	handler := api.NewHandler(svc, db.health, cfg.BaseURL)
	e := api.SetupRouter(handler, cfg, issuer, observer, limiter)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	cleanupCancel()
	cleanup.Wait()

	slog.Info("server exited cleanly")
	return nil
}

type backends struct {
	files    service.MediaFileRepository
	sessions interface {
		service.SessionRepository
		storage.ExpiredSessions
	}
	stats  service.StatsSource
	health api.HealthChecker
	close  func()
}

// openDatabase connects to Postgres and migrates it, or keeps everything in
// memory when the URL is memory://.
func openDatabase(ctx context.Context, url string) (*backends, error) {
	if strings.HasPrefix(url, "memory://") {
		mem := database.NewMemory()
		slog.Warn("using in-memory database, records are lost on restart")
		return &backends{
			files:    mem.MediaFiles(),
			sessions: mem.Sessions(),
			stats:    mem,
			health:   mem,
			close:    func() {},
		}, nil
	}

	db, err := database.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database migrations complete")

	return &backends{
		files:    database.NewMediaFileRepository(db),
		sessions: database.NewSessionRepository(db),
		stats:    db,
		health:   db,
		close:    db.Close,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	var store storage.Store
	switch cfg.StorageBackend {
	case "filesystem":
		store = storage.NewFileSystemStore(cfg.StoragePath)
	case "minio":
		m, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
		store = m
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	for _, bucket := range cfg.Buckets {
		if err := store.EnsureBucket(ctx, bucket); err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}
	slog.Info("object storage initialized", "backend", cfg.StorageBackend)
	return store, nil
}

func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsExchange)
	if err != nil {
		return nil, err
	}
	slog.Info("publishing media events", "exchange", cfg.EventsExchange)
	return p, nil
}
