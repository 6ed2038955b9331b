package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fieldledger/internal/config"
)

// OpenRedis connects to Redis. It returns (nil, nil) when Redis is disabled,
// in which case caching and locking are skipped.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}
