// Package main is the entry point for the fieldledger API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsm/redislock"

	"fieldledger/internal/app"
	"fieldledger/internal/config"
	"fieldledger/internal/domain/auth"
	"fieldledger/internal/infrastructure/cache"
	v1 "fieldledger/internal/infrastructure/http/v1"
	"fieldledger/internal/infrastructure/http/v1/handlers"
	"fieldledger/internal/infrastructure/metrics"
	"fieldledger/pkg/logger"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting fieldledger server", "version", version, "driver", cfg.Database.Driver)

	// --- Storage ---
	store, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer store.Close()

	m := metrics.New()
	readyChecks := map[string]handlers.Checker{"database": store.Ping}
	if store.Pool != nil {
		m.RegisterPool(store.Pool)
	}

	// --- Redis (optional) ---
	extras := app.Extras{Observer: m, OnFallback: m.CatalogFallback}
	rdb, err := app.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		// Redis only speeds things up; run without it.
		log.Warnw("redis unavailable, continuing without cache and lock", "error", err)
	}
	var listener *cache.CatalogListener
	if rdb != nil {
		defer rdb.Close()
		catalogCache := cache.NewCatalogCache(rdb, cfg.Catalog.CacheTTL)
		extras.CatalogCache = catalogCache
		extras.Locker = cache.NewStockLocker(redislock.New(rdb), cfg.Ledger.LockTTL)
		readyChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		if store.Pool != nil {
			listener = cache.NewCatalogListener(store.Pool.Pool, catalogCache)
			listener.Start(ctx)
		}
		log.Infow("redis connected", "addr", cfg.Redis.Addr)
	}

	services, err := app.NewServices(cfg, store, extras)
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}

	// --- JWT ---
	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret:         cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.Issuer,
		AccessTokenTTL: cfg.Auth.TokenTTL,
	})

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:         log,
		JWTValidator:   jwtService,
		Invoices:       services.Invoices,
		Stock:          services.Stock,
		Catalogs:       services.Catalogs,
		Idempotency:    store.Idempotency,
		Metrics:        m,
		MetricsHandler: m.Handler(),
		ReadyChecks:    readyChecks,
		Version:        version,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if listener != nil {
		listener.Stop()
	}

	log.Info("server stopped")
	_ = log.Sync()
}
