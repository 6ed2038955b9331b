package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"fieldledger/internal/infrastructure/storage/postgres"
	"fieldledger/pkg/logger"
)

// Relay delivers pending outbox messages.
type Relay interface {
	ProcessBatch(ctx context.Context) (int, error)
	PurgePublished(ctx context.Context, retention time.Duration) (int64, error)
}

// Cleaner removes expired idempotency keys.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type WorkerConfig struct {
	PollInterval    time.Duration
	CleanupInterval time.Duration
	OutboxRetention time.Duration
}

// Worker polls the outbox and runs periodic cleanup until its context ends.
type Worker struct {
	cfg     WorkerConfig
	relay   Relay
	cleaner Cleaner
	log     *logger.Logger

	// AfterCleanup, if set, runs at the end of every cleanup tick.
	AfterCleanup func(ctx context.Context)
}

// NewWorker creates a worker. cleaner may be nil.
func NewWorker(cfg WorkerConfig, relay Relay, cleaner Cleaner, log *logger.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	return &Worker{cfg: cfg, relay: relay, cleaner: cleaner, log: log.WithComponent("worker")}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			w.drain(ctx)
		case <-cleanup.C:
			w.cleanup(ctx)
		}
	}
}

// drain processes batches until the outbox is empty or a batch fails.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n == 0 {
			return
		}
		w.log.Debugw("processed outbox batch", "count", n)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if w.cleaner != nil {
		n, err := w.cleaner.CleanupExpired(ctx)
		if err != nil {
			w.log.Errorw("idempotency cleanup failed", "error", err)
		} else if n > 0 {
			w.log.Infow("cleaned up idempotency keys", "count", n)
		}
	}
	if w.cfg.OutboxRetention > 0 {
		n, err := w.relay.PurgePublished(ctx, w.cfg.OutboxRetention)
		if err != nil {
			w.log.Errorw("outbox purge failed", "error", err)
		} else if n > 0 {
			w.log.Infow("purged published outbox messages", "count", n)
		}
	}
	if w.AfterCleanup != nil {
		w.AfterCleanup(ctx)
	}
}

// eventEnvelope is the msgpack message published for each outbox row.
type eventEnvelope struct {
	ID            string `msgpack:"id"`
	AggregateType string `msgpack:"aggregate_type"`
	AggregateID   string `msgpack:"aggregate_id"`
	EventType     string `msgpack:"event_type"`
	Payload       []byte `msgpack:"payload"`
	CreatedAt     int64  `msgpack:"created_at"`
}

// EventSink publishes outbox messages to a Redis channel, or only logs them
// when Redis is not configured.
type EventSink struct {
	rdb     *redis.Client
	channel string
	log     *logger.Logger
}

var _ postgres.OutboxHandler = (*EventSink)(nil)

// NewEventSink creates a sink. rdb may be nil.
func NewEventSink(rdb *redis.Client, channel string, log *logger.Logger) *EventSink {
	return &EventSink{rdb: rdb, channel: channel, log: log.WithComponent("event-sink")}
}

// Handle implements postgres.OutboxHandler.
func (s *EventSink) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	s.log.Infow("outbox event",
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
	)
	if s.rdb == nil {
		return nil
	}
	raw, err := encodeEnvelope(msg)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.channel, raw).Err()
}

func encodeEnvelope(msg *postgres.OutboxMessage) ([]byte, error) {
	return msgpack.Marshal(eventEnvelope{
		ID:            msg.ID.String(),
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID.String(),
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		CreatedAt:     msg.CreatedAt.UnixMilli(),
	})
}
