package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	"ForexDash/pkg/cache"
)

type staticLoader struct {
	series map[string][]models.Tick
	loads  int
}

func (l *staticLoader) Load(_ context.Context, pair, tf string) ([]models.Tick, error) {
	l.loads++
	ticks, ok := l.series[pair+"_"+tf]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ticks, nil
}

var t0 = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

func series(n int) []models.Tick {
	out := make([]models.Tick, n)
	for i := range out {
		px := 1.1 + float64(i)*0.001
		out[i] = models.Tick{
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Open:      px,
			High:      px + 0.002,
			Low:       px - 0.002,
			Close:     px + 0.001,
			Volume:    100,
		}
	}
	return out
}

func newSim(t *testing.T, n int, opts ...Option) (*Simulator, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0.Add(24 * time.Hour))
	loader := &staticLoader{series: map[string][]models.Tick{
		"EURUSD_1m": series(n),
		"eurusd_1m": series(n),
	}}
	sessions := cache.NewMemoryCache(cache.WithMemoryClock(clock))
	t.Cleanup(func() { _ = sessions.Close() })

	base := []Option{WithClock(clock), WithRand(rand.New(rand.NewSource(7)))}
	s := New(loader, sessions, append(base, opts...)...)
	seq := 0
	s.newToken = func() string {
		seq++
		return fmt.Sprintf("tok-%d", seq)
	}
	return s, clock
}

func TestRange(t *testing.T) {
	s, _ := newSim(t, 25)
	ctx := context.Background()

	res, err := s.Range(ctx, "EURUSD", "1m", 10, 20)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 10, res.Returned)
	require.Len(t, res.Data, 10)
	assert.Equal(t, "2024-01-02 10:10", res.Data[0].Timestamp)
	assert.Equal(t, RangeMetadata{HasMore: true, TotalAvailable: 25, NextFrom: 20}, res.Metadata)

	res, err = s.Range(ctx, "EURUSD", "1m", 20, 40)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Returned)
	assert.False(t, res.Metadata.HasMore)
	assert.Equal(t, 25, res.Metadata.NextFrom)

	res, err = s.Range(ctx, "EURUSD", "1m", 30, 40)
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.NotNil(t, res.Data)
	assert.False(t, res.Metadata.HasMore)
}

func TestRangeRejects(t *testing.T) {
	s, _ := newSim(t, 5, WithMaxRange(10))
	ctx := context.Background()

	for _, r := range [][2]int{{-1, 5}, {5, 5}, {6, 5}, {0, 11}} {
		_, err := s.Range(ctx, "EURUSD", "1m", r[0], r[1])
		assert.ErrorIs(t, err, ErrInvalidRange, "range %v", r)
	}

	_, err := s.Range(ctx, "GBPJPY", "1m", 0, 5)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNextWalksCursorTokens(t *testing.T) {
	s, _ := newSim(t, 3)
	ctx := context.Background()

	first, err := s.Next(ctx, "eurusd", "1m", "", false)
	require.NoError(t, err)
	require.NotNil(t, first.Data)
	assert.Equal(t, "2024-01-02 10:00", first.Data.Date)
	assert.Equal(t, 3, first.TotalRows)
	assert.True(t, first.HasMore)
	assert.Equal(t, "tok-1", first.Cursor)

	second, err := s.Next(ctx, "eurusd", "1m", first.Cursor, false)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 10:01", second.Data.Date)

	again, err := s.Next(ctx, "eurusd", "1m", first.Cursor, false)
	require.NoError(t, err)
	assert.Equal(t, second.Data.Date, again.Data.Date, "replaying a token repeats its tick")

	last, err := s.Next(ctx, "eurusd", "1m", second.Cursor, false)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 10:02", last.Data.Date)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.Cursor)

	reset, err := s.Next(ctx, "eurusd", "1m", second.Cursor, true)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 10:00", reset.Data.Date)
}

func TestNextUnknownOrExpiredTokenStartsOver(t *testing.T) {
	s, clock := newSim(t, 3, WithSessionTTL(time.Minute))
	ctx := context.Background()

	res, err := s.Next(ctx, "eurusd", "1m", "nope", false)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 10:00", res.Data.Date)

	clock.Advance(2 * time.Minute)
	res, err = s.Next(ctx, "eurusd", "1m", res.Cursor, false)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 10:00", res.Data.Date)

	_, err = s.Next(ctx, "eurusd", "2m", "", false)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestNextTokenBoundToSeries(t *testing.T) {
	s, _ := newSim(t, 3)
	ctx := context.Background()

	res, err := s.Next(ctx, "eurusd", "1m", "", false)
	require.NoError(t, err)
	other, err := s.Next(ctx, "EURUSD", "1m", res.Cursor, false)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 10:00", other.Data.Date)
}

func TestStream(t *testing.T) {
	s, clock := newSim(t, 2)
	ctx := context.Background()
	src := series(2)

	res, err := s.Stream(ctx, "EURUSD", "1m", false)
	require.NoError(t, err)
	assert.False(t, res.Exhausted)
	assert.Equal(t, "Live data for EURUSD at interval 1m", res.Message)
	require.NotNil(t, res.Data)
	assert.Equal(t, "2024-01-03 10:00", res.Data.Date, "date is restamped to now")
	assert.InDelta(t, src[0].Open, res.Data.Open, 0.00026)
	assert.InDelta(t, src[0].Close, res.Data.Close, 0.00026)
	assert.GreaterOrEqual(t, res.Data.High, max(res.Data.Open, res.Data.Close))
	assert.LessOrEqual(t, res.Data.Low, min(res.Data.Open, res.Data.Close))
	assert.GreaterOrEqual(t, res.Data.Volume, 95.0)
	assert.LessOrEqual(t, res.Data.Volume, 104.0)

	_, err = s.Stream(ctx, "EURUSD", "1m", false)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Position("EURUSD", "1m"))

	res, err = s.Stream(ctx, "EURUSD", "1m", false)
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Nil(t, res.Data)
	assert.Equal(t, "All data for EURUSD at interval 1m has been consumed", res.Message)

	res, err = s.Stream(ctx, "EURUSD", "1m", true)
	require.NoError(t, err)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 1, s.Position("EURUSD", "1m"))

	_, _ = s.Stream(ctx, "EURUSD", "1m", false)
	clock.Advance(DefaultStreamTTL)
	res, err = s.Stream(ctx, "EURUSD", "1m", false)
	require.NoError(t, err)
	assert.False(t, res.Exhausted, "an old stream position starts over")
}

func TestStreamVolumeFloor(t *testing.T) {
	s, _ := newSim(t, 0)
	tick := models.Tick{Open: 1, High: 1, Low: 1, Close: 1, Volume: 0}
	for i := 0; i < 50; i++ {
		c := s.jitter(tick)
		assert.GreaterOrEqual(t, c.Volume, 1.0)
	}
}
