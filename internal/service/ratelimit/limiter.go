package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	apphttp "ForexDash/pkg/http"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a token bucket per key. Every key shares one rate and burst.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	rate     float64 // tokens per second
	burst    float64
	clock    clockwork.Clock
	idle     time.Duration
	lastScan time.Time
}

type Option func(*Limiter)

func WithClock(c clockwork.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithIdleTTL sets how long a full, unused bucket is kept before it is forgotten.
func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.idle = d
		}
	}
}

// New allows rps requests per second per key with bursts up to burst.
// A burst below one is raised to one.
func New(rps float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		m:     make(map[string]*bucket),
		rate:  rps,
		burst: float64(max(burst, 1)),
		clock: clockwork.NewRealClock(),
		idle:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastScan = l.clock.Now()
	return l
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take consumes a token, or reports how long until one is available.
func (l *Limiter) take(key string) (bool, time.Duration) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.m[key] = b
	}
	// refill
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(l.burst, b.tokens+elapsed*l.rate)
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, time.Minute
	}
	return false, time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
}

func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastScan) < l.idle {
		return
	}
	l.lastScan = now
	for k, b := range l.m {
		if now.Sub(b.last) >= l.idle {
			delete(l.m, k)
		}
	}
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, wait := l.take(c.RealIP())
			if !ok {
				secs := max(int(wait.Seconds()+0.999), 1)
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return apphttp.AppErrorResponse(c,
					apphttp.TooManyRequestsError("rate limit exceeded").WithParam("retry_after", secs))
			}
			return next(c)
		}
	}
}
