package bootstrap

import (
	"fmt"
	"time"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateLimitCleanupInterval = 5 * time.Minute

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	token    gin.HandlerFunc
	register gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration.
// redisClient may be nil unless RATE_LIMIT_STORE=redis.
func setupRateLimiting(
	cfg *config.Config,
	redisClient redis.UniversalClient,
	log *zap.Logger,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		noOp := func(c *gin.Context) { c.Next() }
		log.Info("rate limiting disabled")
		return rateLimitMiddlewares{token: noOp, register: noOp}, nil
	}

	shared := redisClient
	if cfg.RateLimitStore == config.RateLimitStoreRedis {
		if shared == nil {
			return rateLimitMiddlewares{}, fmt.Errorf("RATE_LIMIT_STORE=%s needs REDIS_ADDR", cfg.RateLimitStore)
		}
		log.Info("rate limiting enabled", zap.String("store", "redis"))
	} else {
		shared = nil
		log.Info("rate limiting enabled", zap.String("store", "memory"))
	}

	createLimiter := func(name string, requestsPerMinute int) (gin.HandlerFunc, error) {
		store, err := middleware.NewRateLimitStore(name, shared, rateLimitCleanupInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter for %s: %w", name, err)
		}
		limit, err := middleware.RateLimit(store, requestsPerMinute)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter for %s: %w", name, err)
		}
		return limit, nil
	}

	var (
		limiters rateLimitMiddlewares
		err      error
	)
	if limiters.token, err = createLimiter("token", cfg.TokenRateLimit); err != nil {
		return limiters, err
	}
	if limiters.register, err = createLimiter("register", cfg.RegisterRateLimit); err != nil {
		return limiters, err
	}
	return limiters, nil
}
