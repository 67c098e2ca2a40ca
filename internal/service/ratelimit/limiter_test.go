package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestAllowRefills(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(2, 3, WithClock(clock))

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a"), "burst %d", i)
	}
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	clock.Advance(500 * time.Millisecond)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a"))
	}
	assert.False(t, l.Allow("a"), "refill is capped at burst")
}

func TestIdleKeysAreForgotten(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(1, 1, WithClock(clock), WithIdleTTL(time.Minute))

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	clock.Advance(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}

func TestMiddleware(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(0.5, 1, WithClock(clock))

	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, l.Middleware())

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)
	rec := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"status":429`)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2").Code)
}
