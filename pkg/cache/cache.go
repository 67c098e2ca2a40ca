package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the key/value store behind simulator sessions and cached datasets.
// Values are JSON encoded and strings are kept verbatim.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes keys matching a glob such as "dataset:eurusd:*".
	DeleteByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Close() error
}
