package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"fieldsync/internal/platform/config"
	"fieldsync/internal/platform/httpserver"
	"fieldsync/internal/platform/logger"
	"fieldsync/internal/platform/postgres"
	platformredis "fieldsync/internal/platform/redis"
	"fieldsync/internal/sync/handler"
	"fieldsync/internal/sync/metrics"
	"fieldsync/internal/sync/registry"
	"fieldsync/internal/sync/service"
	"fieldsync/internal/sync/store/bundle"
	"fieldsync/internal/sync/store/cache"
	"fieldsync/internal/sync/store/ledger"
	"fieldsync/internal/sync/store/session"
	httptransport "fieldsync/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Sync logic
// lives under internal/sync.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()

	cacheStore, err := selectCacheBackend(cfg, db, redisClient, log)
	if err != nil {
		log.Error("cache backend selection failed", "error", err.Error())
		os.Exit(1)
	}

	registryClient := registry.New(cfg.Registry, cacheStore, m, log)
	ledgerStore := ledger.NewPostgres(db)
	sessionStore := session.NewPostgres(db)
	bundleStore := bundle.NewPostgres(db)

	syncService, err := service.New(registryClient, ledgerStore, sessionStore, cfg.Registry, log, m)
	if err != nil {
		log.Error("service construction failed", "error", err.Error())
		os.Exit(1)
	}

	syncHandler := handler.New(syncService, bundleStore, log)

	checkers := map[string]httptransport.HealthChecker{
		"postgres": func(ctx context.Context) error { return postgres.Health(ctx, db) },
	}
	if redisClient != nil {
		checkers["redis"] = redisClient.Health
	}

	router := httptransport.NewRouter(syncHandler, log, checkers)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting fieldsync", "addr", cfg.Addr, "cache_backend", cfg.CacheBackend)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}

// selectCacheBackend picks the lookup-cache implementation. Postgres is the
// default; redis requires a configured URL; memory is for local development
// and loses warm entries on restart.
func selectCacheBackend(cfg config.Config, db *sql.DB, redisClient *platformredis.Client, log *slog.Logger) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("cache backend is redis but FIELDSYNC_REDIS_URL is not set")
		}
		return cache.NewRedis(redisClient.Client, log), nil
	case "memory":
		return cache.NewMemory(), nil
	default:
		return cache.NewPostgres(db, log), nil
	}
}
