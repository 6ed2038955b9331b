package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/apperror"
)

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("replays completed response", func(t *testing.T) {
		s := NewIdempotencyStore(time.Hour)
		replay, err := s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h")
		require.NoError(t, err)
		assert.Nil(t, replay)

		_, err = s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h")
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency), "in flight")

		require.NoError(t, s.CompleteKey(ctx, "k1", 201, "application/json", map[string]string{"id": "x"}))
		replay, err = s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h")
		require.NoError(t, err)
		require.NotNil(t, replay)
		assert.Equal(t, 201, replay.StatusCode)
		assert.JSONEq(t, `{"id":"x"}`, string(replay.Body))
	})

	t.Run("rejects different request", func(t *testing.T) {
		s := NewIdempotencyStore(time.Hour)
		_, err := s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h1")
		require.NoError(t, err)
		_, err = s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h2")
		assert.Error(t, err)
	})

	t.Run("expired key is reusable", func(t *testing.T) {
		s := NewIdempotencyStore(time.Minute)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }
		_, err := s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h")
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		replay, err := s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h")
		require.NoError(t, err)
		assert.Nil(t, replay)
	})

	t.Run("released key runs again", func(t *testing.T) {
		s := NewIdempotencyStore(time.Hour)
		_, err := s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h")
		require.NoError(t, err)

		require.NoError(t, s.ReleaseKey(ctx, "k1"))
		replay, err := s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h")
		require.NoError(t, err)
		assert.Nil(t, replay)
	})

	t.Run("release keeps finished key", func(t *testing.T) {
		s := NewIdempotencyStore(time.Hour)
		_, err := s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h")
		require.NoError(t, err)
		require.NoError(t, s.FailKey(ctx, "k1", 400, "application/json", map[string]string{"code": "VALIDATION_ERROR"}))

		require.NoError(t, s.ReleaseKey(ctx, "k1"))
		replay, err := s.AcquireKey(ctx, "k1", "tech-1", "POST /invoices", "h")
		require.NoError(t, err)
		require.NotNil(t, replay)
		assert.Equal(t, 400, replay.StatusCode)
	})
}
