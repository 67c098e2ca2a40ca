package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type session struct {
	Pair  string `json:"pair"`
	Index int    `json:"index"`
}

func newMemory(clock clockwork.Clock, opts ...MemoryOption) *MemoryCache {
	opts = append([]MemoryOption{WithMemoryClock(clock), WithMemoryCleanup(0)}, opts...)
	return NewMemoryCache(opts...)
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(clockwork.NewFakeClock())
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "sim:eurusd", session{Pair: "eurusd", Index: 7}, time.Minute))
	var got session
	require.NoError(t, mc.Get(ctx, "sim:eurusd", &got))
	assert.Equal(t, session{Pair: "eurusd", Index: 7}, got)

	require.NoError(t, mc.Set(ctx, "plain", "value", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "plain", &s))
	assert.Equal(t, "value", s)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	mc := newMemory(clock)
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", 1, 30*time.Second))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(31 * time.Second)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	ok, err = mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	mc := newMemory(clock, WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	clock.Advance(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	clock.Advance(time.Second)
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	clock.Advance(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(clockwork.NewFakeClock())
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "dataset:eurusd:1m", "x", 0))
	require.NoError(t, mc.Set(ctx, "dataset:gbpusd:1m", "y", 0))
	require.NoError(t, mc.Set(ctx, "cursor:abc", "z", 0))
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("dataset:")))

	ok, _ := mc.Exists(ctx, "dataset:eurusd:1m", "dataset:gbpusd:1m")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "cursor:abc")
	assert.True(t, ok)
}

func TestLayeredCacheFillsL1FromRemote(t *testing.T) {
	ctx := context.Background()
	remote := newMemory(clockwork.NewFakeClock())
	lc := NewLayeredCache(remote)
	defer lc.Close()

	require.NoError(t, remote.Set(ctx, "k", session{Pair: "gbpusd", Index: 2}, 0))
	var got session
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "gbpusd", got.Pair)

	// served from L1 after the remote copy is gone
	require.NoError(t, remote.Delete(ctx, "k"))
	got = session{}
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 2, got.Index)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}
