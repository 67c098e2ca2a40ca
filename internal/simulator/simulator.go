// Package simulator serves finite OHLCV datasets as if they were live feeds.
// It backs the three upstream shapes the dashboard polls: offset ranges,
// cursor-token stepping and a server-held stream position.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	"ForexDash/pkg/cache"
	applogger "ForexDash/pkg/logger"
	"ForexDash/pkg/util"
)

const (
	DefaultMaxRange   = 1000
	DefaultSessionTTL = time.Hour
	// DefaultStreamTTL is how long a stream position lives before it starts over.
	DefaultStreamTTL = 30 * time.Minute
)

type streamState struct {
	started time.Time
	index   int
}

// cursorSession is what a cursor token points at.
type cursorSession struct {
	Pair     string `json:"pair"`
	Interval string `json:"interval"`
	Position int    `json:"position"`
}

type Simulator struct {
	loader     repository.DatasetLoader
	sessions   cache.Service
	clock      clockwork.Clock
	logger     *applogger.Logger
	maxRange   int
	sessionTTL time.Duration
	streamTTL  time.Duration
	newToken   func() string

	rmu sync.Mutex
	rnd *rand.Rand

	mu      sync.Mutex
	streams map[string]*streamState
}

type Option func(*Simulator)

func WithClock(c clockwork.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

// WithRand fixes the jitter source, for reproducible streams.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rnd = r }
}

func WithLogger(l *applogger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMaxRange(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.maxRange = n
		}
	}
}

func WithSessionTTL(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

func WithStreamTTL(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.streamTTL = d
		}
	}
}

// New builds a simulator over loader. Cursor tokens live in sessions, which may be
// shared between replicas when it is Redis-backed.
func New(loader repository.DatasetLoader, sessions cache.Service, opts ...Option) *Simulator {
	s := &Simulator{
		loader:     loader,
		sessions:   sessions,
		clock:      clockwork.NewRealClock(),
		logger:     applogger.Nop(),
		maxRange:   DefaultMaxRange,
		sessionTTL: DefaultSessionTTL,
		streamTTL:  DefaultStreamTTL,
		newToken:   uuid.NewString,
		streams:    make(map[string]*streamState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(s.clock.Now().UnixNano()))
	}
	return s
}

// Range returns ticks [from, to) of the series. Ranges past the end are clipped;
// a range starting at or after the end is empty with hasMore false.
func (s *Simulator) Range(ctx context.Context, pair, timeframe string, from, to int) (*RangeResult, error) {
	switch {
	case from < 0:
		return nil, fmt.Errorf("%w: from_limit must not be negative", ErrInvalidRange)
	case to <= from:
		return nil, fmt.Errorf("%w: to_limit must be greater than from_limit", ErrInvalidRange)
	case to-from > s.maxRange:
		return nil, fmt.Errorf("%w: at most %d ticks per request", ErrInvalidRange, s.maxRange)
	}

	ticks, err := s.loader.Load(ctx, pair, timeframe)
	if err != nil {
		return nil, err
	}
	total := len(ticks)
	lo, hi := min(from, total), min(to, total)

	data := make([]OHLCV, 0, hi-lo)
	for _, t := range ticks[lo:hi] {
		data = append(data, OHLCV{
			Timestamp: util.FormatMinute(t.Timestamp),
			Open:      t.Open,
			High:      t.High,
			Low:       t.Low,
			Close:     t.Close,
			Volume:    t.Volume,
		})
	}
	return &RangeResult{
		Success:   true,
		Pair:      pair,
		Timeframe: timeframe,
		Data:      data,
		Total:     total,
		Returned:  len(data),
		Metadata: RangeMetadata{
			HasMore:        hi < total,
			TotalAvailable: total,
			NextFrom:       hi,
		},
	}, nil
}

func sessionKey(token string) string {
	return cache.GenerateKeyWithParams("sim:cursor", token)
}

// Next returns the tick a cursor token points at plus a token for the one after it.
// An empty, unknown or expired token, or reset, starts from the first tick.
// Replaying a token returns the same tick again.
func (s *Simulator) Next(ctx context.Context, pair, interval, cursor string, reset bool) (*CursorResult, error) {
	if !repository.IsValidInterval(repository.Interval(interval)) {
		return nil, ErrInvalidInterval
	}
	ticks, err := s.loader.Load(ctx, pair, interval)
	if err != nil {
		return nil, err
	}

	pos := 0
	if cursor != "" && !reset {
		var sess cursorSession
		err := s.sessions.Get(ctx, sessionKey(cursor), &sess)
		switch {
		case err == nil && sess.Pair == pair && sess.Interval == interval:
			pos = sess.Position
		case err == nil, errors.Is(err, cache.ErrCacheMiss):
			s.logger.Debug("cursor not found, starting over", applogger.String("pair", pair))
		default:
			return nil, fmt.Errorf("read cursor: %w", err)
		}
	}

	now := s.clock.Now().UTC()
	res := &CursorResult{
		Pair:      pair,
		Interval:  interval,
		Date:      now.Format(time.RFC3339),
		TotalRows: len(ticks),
	}
	if pos >= len(ticks) {
		return res, nil
	}

	t := ticks[pos]
	res.Data = &Candle{
		Date:   util.FormatMinute(t.Timestamp),
		Open:   t.Open,
		High:   t.High,
		Low:    t.Low,
		Close:  t.Close,
		Volume: t.Volume,
	}
	res.Returned = 1
	res.HasMore = pos+1 < len(ticks)
	if res.HasMore {
		token := s.newToken()
		sess := cursorSession{Pair: pair, Interval: interval, Position: pos + 1}
		if err := s.sessions.Set(ctx, sessionKey(token), sess, s.sessionTTL); err != nil {
			return nil, fmt.Errorf("store cursor: %w", err)
		}
		res.Cursor = token
	}
	return res, nil
}

// Stream hands out the next tick of pair/interval on every call, restamped to now
// and jittered to look live. Reset rewinds; so does a position older than the stream TTL.
func (s *Simulator) Stream(ctx context.Context, pair, interval string, reset bool) (*StreamResult, error) {
	if !repository.IsValidInterval(repository.Interval(interval)) {
		return nil, ErrInvalidInterval
	}
	ticks, err := s.loader.Load(ctx, pair, interval)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	key := pair + "_" + interval

	s.mu.Lock()
	st, ok := s.streams[key]
	if !ok || reset || now.Sub(st.started) >= s.streamTTL {
		st = &streamState{started: now}
		s.streams[key] = st
	}
	idx := st.index
	if idx < len(ticks) {
		st.index++
	}
	s.mu.Unlock()

	res := &StreamResult{Timestamp: now.UTC().Format(time.RFC3339Nano)}
	if idx >= len(ticks) {
		res.Message = fmt.Sprintf("All data for %s at interval %s has been consumed", pair, interval)
		res.Exhausted = true
		return res, nil
	}
	res.Message = fmt.Sprintf("Live data for %s at interval %s", pair, interval)
	c := s.jitter(ticks[idx])
	c.Date = util.FormatMinute(now.UTC())
	res.Data = &c
	return res, nil
}

// Position reports how far the stream for pair/interval has advanced.
func (s *Simulator) Position(pair, interval string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.streams[pair+"_"+interval]; ok {
		return st.index
	}
	return 0
}

// jitter nudges open and close by up to ±0.00025, keeps high/low outside them,
// and moves volume by -5..+4 with a floor of 1.
func (s *Simulator) jitter(t models.Tick) Candle {
	s.rmu.Lock()
	dOpen := (s.rnd.Float64() - 0.5) * 0.0005
	dClose := (s.rnd.Float64() - 0.5) * 0.0005
	dHigh := s.rnd.Float64() * 0.0003
	dLow := s.rnd.Float64() * 0.0003
	dVol := float64(s.rnd.Intn(10) - 5)
	s.rmu.Unlock()

	open := t.Open + dOpen
	closePx := t.Close + dClose
	return Candle{
		Open:   round5(open),
		Close:  round5(closePx),
		High:   round5(math.Max(open, closePx) + dHigh),
		Low:    round5(math.Min(open, closePx) - dLow),
		Volume: math.Max(1, math.Round(t.Volume)+dVol),
	}
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
