package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"fieldledger/internal/infrastructure/storage/postgres"
	"fieldledger/pkg/logger"
)

type fakeRelay struct {
	batches  []int
	err      error
	calls    int
	purged   []time.Duration
	purgeErr error
}

func (r *fakeRelay) ProcessBatch(context.Context) (int, error) {
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	if len(r.batches) == 0 {
		return 0, nil
	}
	n := r.batches[0]
	r.batches = r.batches[1:]
	return n, nil
}

func (r *fakeRelay) PurgePublished(_ context.Context, retention time.Duration) (int64, error) {
	r.purged = append(r.purged, retention)
	return 3, r.purgeErr
}

type fakeCleaner struct{ calls int }

func (c *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	c.calls++
	return 1, nil
}

func TestWorker_Drain(t *testing.T) {
	t.Run("stops on empty batch", func(t *testing.T) {
		relay := &fakeRelay{batches: []int{10, 4}}
		w := NewWorker(WorkerConfig{}, relay, nil, logger.NewNop())

		w.drain(context.Background())
		assert.Equal(t, 3, relay.calls)
	})

	t.Run("stops on error", func(t *testing.T) {
		relay := &fakeRelay{batches: []int{10}, err: errors.New("db down")}
		w := NewWorker(WorkerConfig{}, relay, nil, logger.NewNop())

		w.drain(context.Background())
		assert.Equal(t, 1, relay.calls)
	})
}

func TestWorker_Cleanup(t *testing.T) {
	relay := &fakeRelay{}
	cleaner := &fakeCleaner{}
	w := NewWorker(WorkerConfig{OutboxRetention: time.Hour}, relay, cleaner, logger.NewNop())
	var hooked bool
	w.AfterCleanup = func(context.Context) { hooked = true }

	w.cleanup(context.Background())
	assert.Equal(t, 1, cleaner.calls)
	assert.Equal(t, []time.Duration{time.Hour}, relay.purged)
	assert.True(t, hooked)

	t.Run("nil cleaner and zero retention", func(t *testing.T) {
		relay := &fakeRelay{}
		w := NewWorker(WorkerConfig{}, relay, nil, logger.NewNop())
		w.cleanup(context.Background())
		assert.Empty(t, relay.purged)
	})
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	relay := &fakeRelay{}
	w := NewWorker(WorkerConfig{PollInterval: time.Millisecond}, relay, nil, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Positive(t, relay.calls)
}

func TestEventSink_WithoutRedis(t *testing.T) {
	sink := NewEventSink(nil, "fieldledger.events", logger.NewNop())
	err := sink.Handle(context.Background(), &postgres.OutboxMessage{
		ID:        uuid.New(),
		EventType: "invoice.created",
	})
	require.NoError(t, err)
}

func TestEncodeEnvelope(t *testing.T) {
	msg := &postgres.OutboxMessage{
		ID:            uuid.New(),
		AggregateType: "invoice",
		AggregateID:   uuid.New(),
		EventType:     "invoice.created",
		Payload:       []byte(`{"number":"INV-2026-00001"}`),
		CreatedAt:     time.UnixMilli(1_700_000_000_000),
	}

	raw, err := encodeEnvelope(msg)
	require.NoError(t, err)

	var got eventEnvelope
	require.NoError(t, msgpack.Unmarshal(raw, &got))
	assert.Equal(t, msg.ID.String(), got.ID)
	assert.Equal(t, msg.AggregateID.String(), got.AggregateID)
	assert.Equal(t, "invoice.created", got.EventType)
	assert.Equal(t, msg.Payload, got.Payload)
	assert.Equal(t, int64(1_700_000_000_000), got.CreatedAt)
}
