// Package main is the entry point for the fieldledger background worker.
// It relays outbox events and purges expired bookkeeping rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fieldledger/internal/app"
	"fieldledger/internal/config"
	"fieldledger/internal/infrastructure/storage/postgres"
	"fieldledger/pkg/logger"
)

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

	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatalw("worker requires the postgres driver", "driver", cfg.Database.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting fieldledger worker")

	store, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer store.Close()

	rdb, err := app.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warnw("redis unavailable, events go to the log only", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var cleaner Cleaner
	if idem, ok := store.Idempotency.(*postgres.IdempotencyStore); ok {
		cleaner = idem
	}
	w := NewWorker(WorkerConfig{
		PollInterval:    cfg.Worker.PollInterval,
		CleanupInterval: cfg.Worker.CleanupInterval,
		OutboxRetention: cfg.Worker.OutboxRetention,
	}, postgres.NewOutboxRelay(store.Pool, cfg.Worker.BatchSize, NewEventSink(rdb, cfg.Worker.EventChannel, log)), cleaner, log)

	w.AfterCleanup = func(ctx context.Context) {
		store.Pool.LogStats(ctx)
	}
	w.Run(ctx)

	log.Info("worker stopped")
	_ = log.Sync()
}
