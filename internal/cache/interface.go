package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a typed key-value cache with per-entry TTL.
type Cache[T any] interface {
	// Get returns ErrCacheMiss if the key does not exist or has expired.
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
	Health(ctx context.Context) error
}

// Loader fills a Cache from a slower source (usually the database).
// Concurrent misses for the same key share a single fetch.
type Loader[T any] struct {
	cache Cache[T]
	ttl   time.Duration
	group singleflight.Group
}

// NewLoader wraps c with a cache-aside read path.
func NewLoader[T any](c Cache[T], ttl time.Duration) *Loader[T] {
	return &Loader[T]{cache: c, ttl: ttl}
}

// Get returns the cached value for key or calls fetch and stores its result.
// Backend failures degrade to a direct fetch.
func (l *Loader[T]) Get(
	ctx context.Context,
	key string,
	fetch func(ctx context.Context) (T, error),
) (T, error) {
	if value, err := l.cache.Get(ctx, key); err == nil {
		return value, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		value, err := fetch(ctx)
		if err != nil {
			return value, err
		}
		_ = l.cache.Set(ctx, key, value, l.ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops key from the underlying cache.
func (l *Loader[T]) Invalidate(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, key)
}
