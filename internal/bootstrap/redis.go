package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/mcpgate/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// initializeRedisClient initializes the go-redis client shared by the
// connection refresh lock and the rate limiter. Returns nil when REDIS_ADDR
// is unset; both then fall back to in-process implementations.
// Note: rate limiting must use go-redis because ulule/limiter depends on go-redis types.
func initializeRedisClient(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Info("redis client initialized",
		zap.String("addr", cfg.RedisAddr),
		zap.Int("db", cfg.RedisDB),
	)
	return client, nil
}
