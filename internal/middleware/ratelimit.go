package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitKeyPrefix = "mcpgate:ratelimit:"

// NewRateLimitStore returns the counter store for the limiter called name.
// With a nil client the counters live in process memory and are not shared
// between instances; sweep sets how often expired memory counters are dropped.
func NewRateLimitStore(name string, client redis.UniversalClient, sweep time.Duration) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: rateLimitKeyPrefix + name, CleanUpInterval: sweep}
	if client == nil {
		return memory.NewStoreWithOptions(opts), nil
	}
	store, err := limiterRedis.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, fmt.Errorf("rate limit store %q: %w", name, err)
	}
	return store, nil
}

// RateLimit allows perMinute requests per client IP against store. Requests
// over the limit are answered 429 with an OAuth-style error body.
func RateLimit(store limiter.Store, perMinute int) (gin.HandlerFunc, error) {
	if store == nil {
		return nil, errors.New("rate limit: nil store")
	}
	if perMinute <= 0 {
		return nil, fmt.Errorf("rate limit: %d requests per minute", perMinute)
	}

	l := limiter.New(store, limiter.Rate{Period: time.Minute, Limit: int64(perMinute)})
	return mgin.NewMiddleware(l, mgin.WithLimitReachedHandler(rejectOverLimit)), nil
}

func rejectOverLimit(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":             "rate_limit_exceeded",
		"error_description": "Too many requests. Please try again later.",
	})
}
