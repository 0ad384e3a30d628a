// cmd/service/main.go
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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"stargazer-ledger/internal/api"
	"stargazer-ledger/internal/config"
	"stargazer-ledger/internal/github"
	"stargazer-ledger/internal/ledger"
	"stargazer-ledger/internal/lock"
	"stargazer-ledger/internal/metrics"
	"stargazer-ledger/internal/store"
	"stargazer-ledger/internal/syncer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully", "store", cfg.StoreDriver, "environment", cfg.Environment)

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize the store
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 5. Initialize application components
	m := metrics.NewMetrics()

	ghOpts := []github.Option{
		github.WithRateLimit(cfg.GithubRequestsPerSecond, cfg.GithubBurst),
		github.WithMetrics(m),
	}
	if cfg.GithubBaseURL != "" {
		ghOpts = append(ghOpts, github.WithBaseURL(cfg.GithubBaseURL))
	}
	ghClient, err := github.NewClient(cfg.GithubToken, logger, ghOpts...)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	ledgerOpts := []ledger.Option{ledger.WithMetrics(m), ledger.WithCycleTimeout(cfg.CycleTimeout)}
	if cfg.RedisAddr != "" {
		locker, err := lock.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer locker.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithLocker(locker))
		logger.Info("Reconcile leases enabled", "redis", cfg.RedisAddr, "ttl", cfg.LockTTL.String())
	}

	svc := ledger.New(st, ghClient, logger, ledgerOpts...)
	if err := svc.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	appSyncer, err := syncer.NewSyncer(svc, logger, cfg.ReposToRegister, cfg.SyncInterval, cfg.SyncConcurrency)
	if err != nil {
		return fmt.Errorf("failed to create syncer: %w", err)
	}

	// 6. Start the syncer in a separate goroutine
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		appSyncer.Start(ctx)
	}()

	// 7. Serve the API until a shutdown signal arrives
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(svc, m, logger, cfg.IsDevelopment()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			cancel()
			<-syncDone
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	select {
	case <-syncDone:
	case <-shutdownCtx.Done():
		logger.Warn("Syncer did not stop before the shutdown deadline")
	}
	logger.Info("Shutdown complete")
	return nil
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using the in-memory store; data is lost on restart")
		return store.NewMemory(), func() {}, nil
	}

	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("failed to reach database: %w", err)
	}
	logger.Info("Database connection established")

	if err := runMigrations(cfg.MigrationsPath, cfg.DBURL); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	return store.NewPostgres(dbpool), dbpool.Close, nil
}

func runMigrations(sourceURL, dbURL string) error {
	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
