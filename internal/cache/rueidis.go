package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

var _ Cache[struct{}] = (*RedisCache[struct{}])(nil)

// RedisOptions selects the Redis endpoint and key namespace for a RedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisCache shares JSON-encoded entries across instances through Redis.
// Client-side caching is disabled so deletes are visible immediately.
type RedisCache[T any] struct {
	rdb    rueidis.Client
	prefix string
}

// NewRedisCache dials opts.Addr and fails unless a PING succeeds within ctx.
func NewRedisCache[T any](ctx context.Context, opts RedisOptions) (*RedisCache[T], error) {
	rdb, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{opts.Addr},
		Password:     opts.Password,
		SelectDB:     opts.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: dial %s: %w", opts.Addr, err)
	}

	c := &RedisCache[T]{rdb: rdb, prefix: opts.Prefix}
	if err := c.Health(ctx); err != nil {
		rdb.Close()
		return nil, err
	}
	return c, nil
}

func (c *RedisCache[T]) key(k string) string { return c.prefix + k }

func (c *RedisCache[T]) unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var out T
	raw, err := c.rdb.Do(ctx, c.rdb.B().Get().Key(c.key(key)).Build()).AsBytes()
	switch {
	case rueidis.IsRedisNil(err):
		return out, ErrCacheMiss
	case err != nil:
		return out, c.unavailable(err)
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	return out, nil
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}

	set := c.rdb.B().Set().Key(c.key(key)).Value(rueidis.BinaryString(payload)).Px(ttl).Build()
	if err := c.rdb.Do(ctx, set).Error(); err != nil {
		return c.unavailable(err)
	}
	return nil
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Do(ctx, c.rdb.B().Del().Key(c.key(key)).Build()).Error(); err != nil {
		return c.unavailable(err)
	}
	return nil
}

func (c *RedisCache[T]) Health(ctx context.Context) error {
	if err := c.rdb.Do(ctx, c.rdb.B().Ping().Build()).Error(); err != nil {
		return c.unavailable(err)
	}
	return nil
}

func (c *RedisCache[T]) Close() error {
	c.rdb.Close()
	return nil
}
