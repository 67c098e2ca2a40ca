package cache

import (
	"context"
	"time"
)

// LayeredCache implements two-level cache (L1: memory, L2: usually Redis).
// Writes go through to L2; reads fill L1 for at most MemoryTTL.
type LayeredCache struct {
	memCache  *MemoryCache
	remote    Service
	memoryTTL time.Duration
}

// NewLayeredCache creates a layered cache in front of remote.
func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     30 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		memCache:  NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize), WithMemoryDefaultTTL(cfg.MemoryTTL)),
		remote:    remote,
		memoryTTL: cfg.MemoryTTL,
	}
}

func (lc *LayeredCache) l1TTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.memoryTTL {
		return expiration
	}
	return lc.memoryTTL
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.remote.Set(ctx, key, data, expiration); err != nil {
		return err
	}
	_ = lc.memCache.Set(ctx, key, data, lc.l1TTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.memCache.Get(ctx, key, dest); err == nil {
		return nil
	}

	var raw []byte
	if err := lc.remote.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.memCache.Set(ctx, key, raw, lc.memoryTTL)
	return decode(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.memCache.DeleteByPattern(ctx, pattern)
	return lc.remote.DeleteByPattern(ctx, pattern)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.remote.Exists(ctx, keys...)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	return lc.remote.Close()
}
