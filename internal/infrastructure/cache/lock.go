package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"

	"fieldledger/internal/domain/invoice"
	"fieldledger/pkg/logger"
)

// StockLocker serializes saves of the same technician across instances. It
// only reduces conflicts; correctness rests on the versioned stock write, so
// any Redis failure means "not obtained".
type StockLocker struct {
	locker *redislock.Client
	ttl    time.Duration
}

var _ invoice.Locker = (*StockLocker)(nil)

// NewStockLocker creates a locker. locker may be nil.
func NewStockLocker(locker *redislock.Client, ttl time.Duration) *StockLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StockLocker{locker: locker, ttl: ttl}
}

// Obtain implements invoice.Locker.
func (l *StockLocker) Obtain(ctx context.Context, key string) (func(), bool) {
	if l == nil || l.locker == nil {
		return nil, false
	}
	lock, err := l.locker.Obtain(ctx, "fieldledger:lock:"+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 10),
	})
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			logger.Warn(ctx, "stock lock unavailable", "key", key, "error", err)
		}
		return nil, false
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "stock lock release failed", "key", key, "error", err)
		}
	}, true
}
