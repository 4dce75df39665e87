package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/mcpgate/internal/util"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mcpgate:lock:"

// ErrNotObtained is returned when the lock stays held by someone else
// for the whole wait window.
var ErrNotObtained = errors.New("lock: not obtained")

// Locker serializes work on a named resource across server instances.
type Locker interface {
	// Obtain blocks until the lock is held, ctx is done, or wait elapses.
	// The returned release func is safe to call after the TTL expired.
	Obtain(ctx context.Context, name string, ttl, wait time.Duration) (func(context.Context) error, error)
}

// Local is used when no Redis is configured. In-process callers are
// already serialized by singleflight, so it never blocks.
type Local struct{}

func (Local) Obtain(context.Context, string, time.Duration, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// Redis implements Locker with SET NX PX and an owner token per acquisition.
type Redis struct {
	client redis.UniversalClient
	retry  time.Duration
}

var _ Locker = (*Redis)(nil)

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, retry: 50 * time.Millisecond}
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (l *Redis) Obtain(
	ctx context.Context,
	name string,
	ttl, wait time.Duration,
) (func(context.Context) error, error) {
	key := keyPrefix + name
	token, err := util.RandomHex(16)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return func(ctx context.Context) error {
				_, err := releaseScript.Run(ctx, l.client, []string{key}, token).Result()
				if err != nil && !errors.Is(err, redis.Nil) {
					return fmt.Errorf("release lock %s: %w", name, err)
				}
				return nil
			}, nil
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotObtained, name)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
