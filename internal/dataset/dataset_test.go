package dataset

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	"ForexDash/pkg/cache"
	apphttp "ForexDash/pkg/http"
)

var t0 = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

func TestReadCSV(t *testing.T) {
	in := "\ufeffVolume,Date,Open,High,Low,Close\n" +
		"10,2024-01-02 10:00,1.1,1.2,1.0,1.15\n" +
		"12,2024-01-02 10:01,1.15,1.25,1.1,1.2\n" +
		"9,2024-01-02 09:59,1,1,1,1\n" +
		",,,,,\n" +
		"11,2024-01-02 10:02,1.2,1.3,1.1\n"

	ticks, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, ticks, 3, "the backwards row and the blank row are skipped")
	assert.True(t, ticks[0].Timestamp.Equal(t0))
	assert.InDelta(t, 1.15, ticks[0].Close, 1e-9)
	assert.InDelta(t, 12, ticks[1].Volume, 1e-9)
	assert.Zero(t, ticks[2].Close, "short rows leave missing columns at zero")
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Open,Close\n1,2\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("Date,Open\nyesterday,1\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadCSV(strings.NewReader("Date,Open\n2024-01-02 10:00,abc\n"))
	assert.Error(t, err)

	ticks, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestCSVLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eurusd_5m.csv"),
		[]byte("Date,Open,High,Low,Close,Volume\n2024-01-02 10:00,1,2,0.5,1.5,3\n"), 0o644))

	l := NewCSVLoader(dir)
	ticks, err := l.Load(context.Background(), "eurusd", "5m")
	require.NoError(t, err)
	require.Len(t, ticks, 1)

	_, err = l.Load(context.Background(), "gbpusd", "5m")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = l.Load(context.Background(), "../etc", "5m")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestParquetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := []models.Tick{
		{Timestamp: t0, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 10},
		{Timestamp: t0.Add(time.Minute), Open: 1.15, High: 1.3, Low: 1.1, Close: 1.25, Volume: 7},
	}
	require.NoError(t, WriteParquet(dir, "EURUSD", "1m", in))

	out, err := NewParquetLoader(dir).Load(context.Background(), "EURUSD", "1m")
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		assert.True(t, in[i].Timestamp.Equal(out[i].Timestamp))
		assert.Equal(t, in[i].Close, out[i].Close)
		assert.Equal(t, in[i].Volume, out[i].Volume)
	}

	_, err = NewParquetLoader(dir).Load(context.Background(), "EURUSD", "5m")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGitHubLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/EURUSD1m.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[
			{"timestamp":"2024-01-02 10:00","open":1.1,"high":1.2,"low":1.0,"close":1.15,"volume":10},
			{"timestamp":1704189660000,"open":1.15,"high":1.2,"low":1.1,"close":1.18,"volume":4}
		]`))
	}))
	defer srv.Close()

	l := NewGitHubLoader(apphttp.NewClient(apphttp.WithBaseURL(srv.URL)))
	ticks, err := l.Load(context.Background(), "EURUSD", "1m")
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.True(t, ticks[1].Timestamp.Equal(t0.Add(time.Minute)))

	_, err = l.Load(context.Background(), "GBPUSD", "1m")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

type countingLoader struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (l *countingLoader) Load(_ context.Context, _, _ string) ([]models.Tick, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	if l.err != nil {
		return nil, l.err
	}
	return []models.Tick{{Timestamp: t0, Close: 1.1}}, nil
}

func TestCachedLoaderSharesLoads(t *testing.T) {
	store := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer store.Close()
	next := &countingLoader{gate: make(chan struct{})}
	l := NewCachedLoader(next, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticks, err := l.Load(ctx, "EURUSD", "1m")
			assert.NoError(t, err)
			assert.Len(t, ticks, 1)
		}()
	}
	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// give the rest a moment to pile onto the in-flight load
	time.Sleep(20 * time.Millisecond)
	close(next.gate)
	wg.Wait()
	assert.LessOrEqual(t, next.calls.Load(), int32(2))

	before := next.calls.Load()
	_, err := l.Load(ctx, "EURUSD", "1m")
	require.NoError(t, err)
	assert.Equal(t, before, next.calls.Load(), "served from cache")

	require.NoError(t, l.Invalidate(ctx, "EURUSD", "1m"))
	_, err = l.Load(ctx, "EURUSD", "1m")
	require.NoError(t, err)
	assert.Equal(t, before+1, next.calls.Load())

	require.NoError(t, l.Invalidate(ctx, "", ""))
	ok, err := store.Exists(ctx, cacheKey("EURUSD", "1m"))
	require.NoError(t, err)
	assert.False(t, ok)
}

type ctxLoader struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (l *ctxLoader) Load(ctx context.Context, _, _ string) ([]models.Tick, error) {
	l.calls.Add(1)
	select {
	case <-l.gate:
		return []models.Tick{{Timestamp: t0, Close: 1.1}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCachedLoaderSurvivesCancelledCaller(t *testing.T) {
	store := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer store.Close()
	next := &ctxLoader{gate: make(chan struct{})}
	l := NewCachedLoader(next, store)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := l.Load(ctx, "EURUSD", "1m")
		first <- err
	}()
	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		ticks, err := l.Load(context.Background(), "EURUSD", "1m")
		if err == nil && len(ticks) != 1 {
			err = fmt.Errorf("got %d ticks", len(ticks))
		}
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(next.gate)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedLoaderPassesErrors(t *testing.T) {
	store := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer store.Close()
	next := &countingLoader{err: repository.ErrNotFound}
	l := NewCachedLoader(next, store)

	_, err := l.Load(context.Background(), "EURUSD", "1m")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	_, err = l.Load(context.Background(), "EURUSD", "1m")
	assert.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load(), "failures are not cached")
}

func TestNewPicksSource(t *testing.T) {
	l, err := New(Options{Dir: "data"})
	require.NoError(t, err)
	assert.IsType(t, &CSVLoader{}, l)

	l, err = New(Options{Source: SourceParquet})
	require.NoError(t, err)
	assert.IsType(t, &ParquetLoader{}, l)

	_, err = New(Options{Source: SourceGitHub})
	assert.Error(t, err)
	l, err = New(Options{Source: SourceGitHub, HTTPClient: apphttp.NewClient()})
	require.NoError(t, err)
	assert.IsType(t, &GitHubLoader{}, l)

	_, err = New(Options{Source: SourceClickHouse})
	assert.Error(t, err)

	_, err = New(Options{Source: "s3"})
	assert.Error(t, err)
}
