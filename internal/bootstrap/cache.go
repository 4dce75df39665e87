package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/mcpgate/internal/cache"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/metrics"
	"github.com/go-authgate/mcpgate/internal/models"

	"go.uber.org/zap"
)

const clientCachePrefix = "mcpgate:clients:"

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config, log *zap.Logger) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Info("prometheus metrics initialized")
	} else {
		log.Info("metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeClientCache initializes the OAuth client lookup cache
func initializeClientCache(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) (cache.Cache[models.OAuthClient], error) {
	switch cfg.ClientCacheType {
	case config.ClientCacheTypeRedis:
		ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
		defer cancel()

		c, err := cache.NewRedisCache[models.OAuthClient](ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   clientCachePrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis client cache: %w", err)
		}
		log.Info("client cache: redis",
			zap.String("addr", cfg.RedisAddr),
			zap.Int("db", cfg.RedisDB),
			zap.Duration("ttl", cfg.ClientCacheTTL),
		)
		return c, nil

	default: // memory
		log.Info("client cache: memory (single instance only)",
			zap.Duration("ttl", cfg.ClientCacheTTL))
		return cache.NewMemoryCache[models.OAuthClient](), nil
	}
}
