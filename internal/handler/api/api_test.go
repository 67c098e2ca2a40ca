package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	"ForexDash/internal/pollcache"
	"ForexDash/internal/service/ratelimit"
	"ForexDash/internal/simulator"
	"ForexDash/internal/usecase"
	"ForexDash/pkg/cache"
)

var t0 = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

func series(n int) []models.Tick {
	out := make([]models.Tick, n)
	for i := range out {
		out[i] = models.Tick{Timestamp: t0.Add(time.Duration(i) * time.Minute), Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 10}
	}
	return out
}

type pagedSource struct{ ticks []models.Tick }

func (s pagedSource) Fetch(_ context.Context, req repository.FetchRequest) (*models.Page, error) {
	lo := min(req.Offset, len(s.ticks))
	hi := min(lo+req.Limit, len(s.ticks))
	return &models.Page{Ticks: s.ticks[lo:hi], Total: len(s.ticks), HasMore: hi < len(s.ticks), NextOffset: hi}, nil
}

type mapLoader map[string][]models.Tick

func (m mapLoader) Load(_ context.Context, pair, tf string) ([]models.Tick, error) {
	if t, ok := m[pair+"_"+tf]; ok {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func newWindows(t *testing.T) (*echo.Echo, *pollcache.Cache) {
	t.Helper()
	c := pollcache.New(pagedSource{series(30)}, pollcache.Config{ChunkSize: 10, VisibleSize: 5},
		pollcache.WithDispatcher(func(f func()) { f() }))
	t.Cleanup(func() { _ = c.Close() })
	e := echo.New()
	NewWindowsHandler(nil, usecase.NewWindowService(c, nil, nil, 2)).RegisterRoutes(e)
	return e, c
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, e *echo.Echo, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var env envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func TestWindowRoutes(t *testing.T) {
	e, c := newWindows(t)

	rec, env := call(t, e, http.MethodPost, "/api/windows/EURUSD")
	require.Equal(t, http.StatusCreated, rec.Code)
	var snap models.WindowSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "EURUSD", snap.Symbol)
	assert.Equal(t, 10, snap.Buffered)
	assert.Equal(t, 30, snap.TotalAvailable)

	require.NoError(t, c.Advance("EURUSD"))
	rec, env = call(t, e, http.MethodGet, "/api/windows/EURUSD")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 1, snap.Cursor)
	assert.Len(t, snap.VisibleTicks, 2)

	rec, env = call(t, e, http.MethodPost, "/api/windows/EURUSD/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 0, snap.Cursor)

	rec, _ = call(t, e, http.MethodPost, "/api/windows/EURUSD/reset")
	assert.Equal(t, http.StatusOK, rec.Code)

	call(t, e, http.MethodPost, "/api/windows/GBPUSD")
	rec, env = call(t, e, http.MethodGet, "/api/windows")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.WindowSnapshot `json:"rows"`
		Total int64                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(2), list.Total)
	assert.Equal(t, "EURUSD", list.Rows[0].Symbol)

	rec, _ = call(t, e, http.MethodPost, "/api/windows/USDJPY")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = call(t, e, http.MethodDelete, "/api/windows/GBPUSD")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = call(t, e, http.MethodGet, "/api/windows/GBPUSD")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = call(t, e, http.MethodDelete, "/api/windows/GBPUSD")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = call(t, e, http.MethodPost, "/api/windows/"+strings.Repeat("X", 40))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWindowStream(t *testing.T) {
	e, c := newWindows(t)
	call(t, e, http.MethodPost, "/api/windows/EURUSD")

	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/windows/EURUSD"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snap models.WindowSnapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, 0, snap.Cursor)

	require.NoError(t, c.Advance("EURUSD"))
	for snap.Cursor != 1 {
		require.NoError(t, conn.ReadJSON(&snap))
	}

	require.NoError(t, conn.WriteJSON(controlMsg{Action: "refresh"}))
	for snap.Cursor != 0 {
		require.NoError(t, conn.ReadJSON(&snap))
	}

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/windows/GBPUSD", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func newSimulatorEcho(t *testing.T, limiter *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	sessions := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = sessions.Close() })
	sim := simulator.New(mapLoader{"EURUSD_1m": series(3), "eurusd_1m": series(3)}, sessions)
	e := echo.New()
	NewSimulatorHandler(nil, sim, limiter).RegisterRoutes(e)
	return e
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSimulatorRange(t *testing.T) {
	e := newSimulatorEcho(t, nil)

	rec := get(e, "/api/forex-ohlcv/EURUSD/1m?from_limit=1&to_limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	var res simulator.RangeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Returned)
	assert.Equal(t, 3, res.Metadata.NextFrom)
	assert.False(t, res.Metadata.HasMore)

	rec = get(e, "/api/forex-ohlcv/EURUSD/1m")
	require.Equal(t, http.StatusOK, rec.Code, "limits default to 0..200")

	rec = get(e, "/api/forex-ohlcv/EURUSD/1m?from_limit=5&to_limit=2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	rec = get(e, "/api/forex-ohlcv/EURUSD/1m?from_limit=0&to_limit=5000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(e, "/api/forex-ohlcv/XAUUSD/1m")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimulatorCursor(t *testing.T) {
	e := newSimulatorEcho(t, nil)

	rec := get(e, "/technical/simulate/live/single?pair=eurusd&interval=1m")
	require.Equal(t, http.StatusOK, rec.Code)
	var res simulator.CursorResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Data)
	assert.Equal(t, "2024-01-02 10:00", res.Data.Date)
	require.NotEmpty(t, res.Cursor)

	rec = get(e, "/technical/simulate/live/single?pair=eurusd&interval=1m&cursor="+res.Cursor)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "2024-01-02 10:01", res.Data.Date)

	rec = get(e, "/technical/simulate/live/single?pair=eurusd&interval=2m")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), invalidIntervalMsg)
}

func TestSimulatorStream(t *testing.T) {
	e := newSimulatorEcho(t, nil)

	for i := 0; i < 3; i++ {
		rec := get(e, "/api/forex/ohlcv")
		require.Equal(t, http.StatusOK, rec.Code)
		var res simulator.StreamResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.False(t, res.Exhausted)
		assert.Equal(t, "Live data for EURUSD at interval 1m", res.Message)
	}
	rec := get(e, "/api/forex/ohlcv?pair=EURUSD&interval=1m")
	var res simulator.StreamResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Exhausted)
	assert.Nil(t, res.Data)

	rec = get(e, "/api/forex/ohlcv?reset=true")
	res = simulator.StreamResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Exhausted)

	rec = get(e, "/api/forex/ohlcv?interval=4h")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulatorRateLimited(t *testing.T) {
	e := newSimulatorEcho(t, ratelimit.New(0.001, 2))

	assert.Equal(t, http.StatusOK, get(e, "/api/forex/ohlcv").Code)
	assert.Equal(t, http.StatusOK, get(e, "/api/forex/ohlcv").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(e, "/api/forex/ohlcv").Code)
}
