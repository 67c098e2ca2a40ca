package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	"ForexDash/pkg/cache"
	applogger "ForexDash/pkg/logger"
)

// DefaultTTL matches how long the simulator keeps a parsed dataset before re-reading it.
const DefaultTTL = 30 * time.Minute

// DefaultLoadTimeout bounds one shared load, independent of the callers waiting on it.
const DefaultLoadTimeout = 2 * time.Minute

// CachedLoader keeps loaded series in a cache.Service under dataset:{pair}:{timeframe}.
// Concurrent misses for one key share a single underlying load.
type CachedLoader struct {
	next        repository.DatasetLoader
	cache       cache.Service
	ttl         time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
	logger      *applogger.Logger
}

type CachedOption func(*CachedLoader)

func WithTTL(ttl time.Duration) CachedOption {
	return func(c *CachedLoader) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithLoadTimeout(d time.Duration) CachedOption {
	return func(c *CachedLoader) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

func WithLogger(l *applogger.Logger) CachedOption {
	return func(c *CachedLoader) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewCachedLoader(next repository.DatasetLoader, store cache.Service, opts ...CachedOption) *CachedLoader {
	c := &CachedLoader{
		next:        next,
		cache:       store,
		ttl:         DefaultTTL,
		loadTimeout: DefaultLoadTimeout,
		logger:      applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(pair, timeframe string) string {
	return cache.GenerateKeyWithParams("dataset", pair, timeframe)
}

func (c *CachedLoader) Load(ctx context.Context, pair, timeframe string) ([]models.Tick, error) {
	key := cacheKey(pair, timeframe)

	var ticks []models.Tick
	err := c.cache.Get(ctx, key, &ticks)
	if err == nil {
		return ticks, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// a broken cache should not take the simulator down with it
		c.logger.Warn("dataset cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	// the shared load ignores caller cancellation and is bounded by loadTimeout
	ch := c.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		loaded, err := c.next.Load(loadCtx, pair, timeframe)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(loadCtx, key, loaded, c.ttl); err != nil {
			c.logger.Warn("dataset cache write failed", applogger.String("key", key), applogger.Error(err))
		}
		c.logger.Info("dataset loaded",
			applogger.String("pair", pair),
			applogger.String("timeframe", timeframe),
			applogger.Int("ticks", len(loaded)))
		return loaded, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load dataset %s/%s: %w", pair, timeframe, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, fmt.Errorf("load dataset %s/%s: %w", pair, timeframe, res.Err)
	}
	if res.Shared {
		c.logger.Debug("dataset load shared", applogger.String("key", key))
	}
	return res.Val.([]models.Tick), nil
}

// Invalidate drops one cached series, or every series when pair is empty.
func (c *CachedLoader) Invalidate(ctx context.Context, pair, timeframe string) error {
	if pair == "" {
		return c.cache.DeleteByPattern(ctx, cache.BuildPattern("dataset:"))
	}
	return c.cache.Delete(ctx, cacheKey(pair, timeframe))
}
