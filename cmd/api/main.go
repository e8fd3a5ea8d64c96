package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/padelbud/platform/internal/app"
	"github.com/padelbud/platform/internal/cache"
	"github.com/padelbud/platform/internal/guard"
	"github.com/padelbud/platform/internal/infra"
	"github.com/padelbud/platform/internal/provisioning"
	"github.com/padelbud/platform/internal/search"
	"github.com/padelbud/platform/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.RunMigrations {
		if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	pg := store.NewPostgresStore(pool, logger)

	var clubCache cache.Store = cache.NewInMemoryStore()
	if cfg.RedisEnabled {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		clubCache = cache.NewRedisStore(rdb)
		logger.Info("connected to redis")
	}
	clubs := cache.NewClubDirectory(pg, clubCache, cfg.SharedClubCacheTTL(), logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	finder := search.NewService(clubs, pg, pg, pg, logger,
		search.WithNearbyLimit(cfg.NearbyClubLimit),
		search.WithWindow(cfg.MatchWindow),
	)
	provisioner := provisioning.NewEngine(clubs, pg, pg, logger,
		provisioning.WithLocation(loc),
		provisioning.WithPriceCents(cfg.DefaultSlotPriceCents),
		provisioning.WithConcurrency(cfg.ProvisionConcurrency),
	)

	r := app.NewRouter(app.RouterDeps{
		Store:       pg,
		Clubs:       clubs,
		Pinger:      pg,
		Finder:      finder,
		Provisioner: provisioner,
		Limiter:     guard.NewRateLimiter(cfg.SearchRatePerMinute, time.Minute),
		HorizonDays: cfg.ProvisionHorizonDays,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Logger:      logger,
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
