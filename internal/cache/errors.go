package cache

import "errors"

// Sentinel errors returned by Cache implementations. Backends wrap
// ErrCacheUnavailable and ErrInvalidValue with the underlying cause.
var (
	ErrCacheMiss        = errors.New("cache: miss")
	ErrCacheUnavailable = errors.New("cache: backend unavailable")
	ErrInvalidValue     = errors.New("cache: undecodable entry")
)
