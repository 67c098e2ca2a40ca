package cache

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryItem stores an encoded value with its expiration.
type MemoryItem struct {
	Value    []byte
	ExpireAt time.Time
}

func (m *MemoryItem) expired(now time.Time) bool {
	return !now.Before(m.ExpireAt)
}

// MemoryCache implements Service in process with LRU eviction.
type MemoryCache struct {
	data       map[string]*MemoryItem
	access     map[string]time.Time
	mutex      sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	clock      clockwork.Clock
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
		DefaultTTL:      7 * 24 * time.Hour,
		Clock:           clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:       make(map[string]*MemoryItem),
		access:     make(map[string]time.Time),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		clock:      cfg.Clock,
		stop:       make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		go mc.cleanupExpired(cfg.CleanupInterval)
	}
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	data = append([]byte(nil), data...)

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, exists := mc.data[key]; !exists && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}
	mc.putLocked(key, data, expiration)
	return nil
}

func (mc *MemoryCache) putLocked(key string, data []byte, expiration time.Duration) {
	now := mc.clock.Now()
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}
	mc.data[key] = &MemoryItem{Value: data, ExpireAt: now.Add(expiration)}
	mc.access[key] = now
}

// lookupLocked returns the live item for key, dropping it if expired.
func (mc *MemoryCache) lookupLocked(key string) (*MemoryItem, bool) {
	item, exists := mc.data[key]
	if !exists {
		return nil, false
	}
	if item.expired(mc.clock.Now()) {
		delete(mc.data, key)
		delete(mc.access, key)
		return nil, false
	}
	return item, true
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mutex.Lock()
	item, ok := mc.lookupLocked(key)
	if !ok {
		mc.mutex.Unlock()
		return ErrCacheMiss
	}
	mc.access[key] = mc.clock.Now()
	data := item.Value
	mc.mutex.Unlock()

	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.access, key)
	}
	return nil
}

// DeleteByPattern removes keys matching a glob pattern, as Redis KEYS would.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for key := range mc.data {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if matched {
			delete(mc.data, key)
			delete(mc.access, key)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		if _, ok := mc.lookupLocked(key); ok {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of stored keys, expired ones included until swept.
func (mc *MemoryCache) Len() int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return len(mc.data)
}

func (mc *MemoryCache) evictLRU() {
	var (
		oldestKey  string
		oldestTime time.Time
	)
	for key, accessTime := range mc.access {
		if oldestKey == "" || accessTime.Before(oldestTime) {
			oldestTime = accessTime
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(mc.data, oldestKey)
		delete(mc.access, oldestKey)
	}
}

func (mc *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := mc.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.Chan():
			mc.sweep()
		}
	}
}

func (mc *MemoryCache) sweep() {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := mc.clock.Now()
	for key, item := range mc.data {
		if item.expired(now) {
			delete(mc.data, key)
			delete(mc.access, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	return nil
}
