package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexDash/internal/domain/models"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.RevealedTick
	fails   int
}

func (s *recordingSink) Publish(ctx context.Context, rt models.RevealedTick) error {
	return s.PublishBatch(ctx, []models.RevealedTick{rt})
}

func (s *recordingSink) PublishBatch(_ context.Context, batch []models.RevealedTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("sink unavailable")
	}
	s.batches = append(s.batches, append([]models.RevealedTick(nil), batch...))
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func rt(symbol string, minute int) models.RevealedTick {
	return models.RevealedTick{
		Symbol: symbol,
		Tick: models.Tick{
			Timestamp: time.Date(2024, 1, 2, 10, minute, 0, 0, time.UTC),
			Open:      1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 10,
		},
	}
}

func runPipeline(t *testing.T, p *RevealPipeline) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, p.Run(ctx))
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestRevealPipelineBatchesBySize(t *testing.T) {
	sink := &recordingSink{}
	p := NewRevealPipeline(sink, nil, WithBatch(3, time.Hour))
	stop := runPipeline(t, p)

	for i := 0; i < 6; i++ {
		require.True(t, p.Enqueue(rt("EURUSD", i)))
	}
	require.Eventually(t, func() bool { return sink.total() == 6 }, time.Second, 5*time.Millisecond)
	stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.batches, 2)
	assert.Len(t, sink.batches[0], 3)
	assert.Equal(t, int64(6), p.Published())
}

func TestRevealPipelineFlushesOnInterval(t *testing.T) {
	sink := &recordingSink{}
	clock := clockwork.NewFakeClock()
	p := NewRevealPipeline(sink, nil, WithBatch(100, time.Second), WithPipelineClock(clock))
	stop := runPipeline(t, p)
	defer stop()

	p.Enqueue(rt("EURUSD", 0))
	p.Enqueue(rt("EURUSD", 1))
	require.Eventually(t, func() bool { return len(p.buf) == 0 }, time.Second, time.Millisecond)
	assert.Zero(t, sink.total())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return sink.total() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRevealPipelineDrainsOnStop(t *testing.T) {
	sink := &recordingSink{}
	p := NewRevealPipeline(sink, nil, WithBatch(100, time.Hour))
	stop := runPipeline(t, p)

	p.Enqueue(rt("EURUSD", 0))
	p.Enqueue(rt("GBPUSD", 0))
	stop()

	assert.Equal(t, 2, sink.total())
}

func TestRevealPipelineRetriesThenDrops(t *testing.T) {
	sink := &recordingSink{fails: 2}
	p := NewRevealPipeline(sink, nil, WithBatch(1, time.Hour), WithRetry(2, time.Millisecond))
	stop := runPipeline(t, p)

	p.Enqueue(rt("EURUSD", 0))
	require.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	sink.fails = 10
	sink.mu.Unlock()
	p.Enqueue(rt("EURUSD", 1))
	require.Eventually(t, func() bool { return p.Dropped() == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, int64(1), p.Published())
}

func TestRevealPipelineRejects(t *testing.T) {
	p := NewRevealPipeline(&recordingSink{}, nil, WithBufferSize(1))

	assert.False(t, p.Enqueue(models.RevealedTick{Symbol: "EURUSD"}), "zero timestamp")
	bad := rt("EURUSD", 0)
	bad.Tick.Low = -1
	assert.False(t, p.Enqueue(bad))

	assert.True(t, p.Enqueue(rt("EURUSD", 0)))
	assert.False(t, p.Enqueue(rt("EURUSD", 1)), "buffer full")
	assert.Equal(t, int64(3), p.Dropped())
}
