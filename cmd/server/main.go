package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/molduraria/internal/config"
	"github.com/Simplici0/molduraria/internal/db"
	"github.com/Simplici0/molduraria/internal/idempotency"
	"github.com/Simplici0/molduraria/internal/logger"
	"github.com/Simplici0/molduraria/internal/marketplace"
	"github.com/Simplici0/molduraria/internal/metrics"
	"github.com/Simplici0/molduraria/internal/migrations"
	"github.com/Simplici0/molduraria/internal/seed"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	database, err := db.Open(ctx, cfg.DBPath, zl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := migrations.Up(ctx, database); err != nil {
		return fmt.Errorf("run database migrations: %w", err)
	}

	if cfg.SeedCatalog {
		stats, err := seed.Run(ctx, database, seed.StarterCatalog())
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		zl.Info("catalog seeded", zap.Int("inserts", stats.Inserts), zap.Int("skipped", stats.Skipped))
	}

	dedup, closeDedup, err := newDedupStore(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeDedup()

	var meli *marketplace.MeliClient
	if cfg.MeliEnabled() {
		meli = marketplace.NewMeliClient(marketplace.MeliConfig{
			BaseURL:     cfg.MeliBaseURL,
			AccessToken: cfg.MeliAccessToken,
			SellerID:    cfg.MeliSellerID,
		}, nil, zl)
	}

	srv := newServer(database, serverOptions{
		Log:            zl,
		Metrics:        metrics.New(),
		Dedup:          dedup,
		DedupTTL:       cfg.ImportDedupTTL,
		Meli:           meli,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		zl.Info("shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newDedupStore uses Redis when REDIS_ADDR is set so every instance shares
// the import history, and a process-local store otherwise.
func newDedupStore(ctx context.Context, cfg config.Config, zl *zap.Logger) (idempotency.Store, func(), error) {
	if cfg.RedisAddr == "" {
		zl.Info("import dedup uses process memory")
		return idempotency.NewMemoryStore(), func() {}, nil
	}

	store, err := idempotency.NewRedisStore(ctx, idempotency.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	zl.Info("import dedup uses redis", zap.String("addr", cfg.RedisAddr))
	return store, func() { _ = store.Close() }, nil
}
