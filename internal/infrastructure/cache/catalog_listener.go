package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fieldledger/internal/domain/catalog"
	"fieldledger/pkg/logger"
)

// CatalogChangedChannel must match the channel the catalog repository
// notifies on.
const CatalogChangedChannel = "catalog_changed"

// CatalogListener drops cached catalogs when PostgreSQL announces a change,
// so instances do not serve a stale catalog until the TTL expires.
type CatalogListener struct {
	pool  *pgxpool.Pool
	cache catalog.Cache

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewCatalogListener creates a listener.
func NewCatalogListener(pool *pgxpool.Pool, cache catalog.Cache) *CatalogListener {
	return &CatalogListener{pool: pool, cache: cache}
}

// Start begins listening in the background. Calling Start twice is a no-op.
func (l *CatalogListener) Start(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go l.listenLoop(ctx)
}

// Stop ends listening and waits for the loop to exit.
func (l *CatalogListener) Stop() {
	l.lifecycleMu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.lifecycleMu.Unlock()
	if cancel != nil {
		cancel()
		l.wg.Wait()
	}
}

func (l *CatalogListener) listenLoop(ctx context.Context) {
	defer l.wg.Done()

	for ctx.Err() == nil {
		conn, err := l.pool.Acquire(ctx)
		if err != nil {
			logger.Error(ctx, "failed to acquire connection for LISTEN", "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}

		if _, err := conn.Exec(ctx, "LISTEN "+CatalogChangedChannel); err != nil {
			logger.Error(ctx, "failed to LISTEN", "error", err)
			conn.Release()
			sleepCtx(ctx, time.Second)
			continue
		}
		logger.Info(ctx, "listening for catalog changes")

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn(ctx, "catalog notification wait failed", "error", err)
				}
				break
			}
			if err := l.cache.Invalidate(ctx, n.Payload); err != nil {
				logger.Warn(ctx, "catalog cache invalidation failed", "team_id", n.Payload, "error", err)
			}
		}
		conn.Release()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
