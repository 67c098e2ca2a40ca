// Package pollcache keeps a sliding window of OHLCV ticks per symbol. Ticks are
// fetched from an upstream TickSource in chunks, buffered ahead of the cursor and
// revealed one at a time on a central clock.
package pollcache

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	applogger "ForexDash/pkg/logger"
	"ForexDash/pkg/metrics"
)

var ErrUnknownSymbol = errors.New("pollcache: symbol is not subscribed")

// Cache owns every subscribed window. All window state is guarded by mu;
// fetches run outside the lock and are matched back by generation.
type Cache struct {
	cfg       Config
	stepTicks int
	source    repository.TickSource
	dedup     bool

	clock    clockwork.Clock
	metrics  repository.Metrics
	logger   *applogger.Logger
	dispatch func(func())

	baseCtx context.Context
	stop    context.CancelFunc

	mu      sync.Mutex
	windows map[string]*window

	wmu       sync.Mutex
	watchers  map[int]*watcher
	nextWatch int
	onReveal  []func(models.RevealedTick)
}

type window struct {
	symbol string
	buffer []models.Tick
	seen   map[int64]struct{}

	cursor    int
	base      int // ticks evicted from the front of buffer
	fetched   int // upstream offset of the next chunk
	total     int
	hasMore   bool
	countdown int
	populated bool
	exhausted bool

	busy         bool
	cancel       context.CancelFunc
	refetch      bool
	resetPending bool
	generation   uint64

	err    error
	sticky bool
}

type Option func(*Cache)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDispatcher replaces the goroutine launcher used for fetches.
// Tests pass func(f func()) { f() } to run fetches inline.
func WithDispatcher(d func(func())) Option {
	return func(c *Cache) { c.dispatch = d }
}

// New builds a cache over source. Sources implementing repository.Deduplicator
// get timestamp-based duplicate suppression.
func New(source repository.TickSource, cfg Config, opts ...Option) *Cache {
	cfg = cfg.withDefaults()
	c := &Cache{
		cfg:       cfg,
		stepTicks: cfg.stepTicks(),
		source:    source,
		clock:     clockwork.NewRealClock(),
		metrics:   metrics.Noop{},
		logger:    applogger.Nop(),
		dispatch:  func(f func()) { go f() },
		windows:   make(map[string]*window),
		watchers:  make(map[int]*watcher),
	}
	if d, ok := source.(repository.Deduplicator); ok {
		c.dedup = d.DedupByTimestamp()
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseCtx, c.stop = context.WithCancel(context.Background())
	return c
}

// Config returns the effective configuration after defaults.
func (c *Cache) Config() Config { return c.cfg }

// Subscribe creates the window for symbol and starts its initial fetch.
// Subscribing twice returns the existing window.
func (c *Cache) Subscribe(symbol string) models.WindowSnapshot {
	c.mu.Lock()
	if w, ok := c.windows[symbol]; ok {
		snap := c.snapshotLocked(w)
		c.mu.Unlock()
		return snap
	}
	// a new window starts at the top even if the source kept a position from an earlier subscription
	w := &window{symbol: symbol, total: -1, resetPending: true}
	c.clearLocked(w)
	c.windows[symbol] = w
	job := c.startFetchLocked(w)
	c.mu.Unlock()

	c.logger.Info("window subscribed", applogger.String("symbol", symbol))
	c.launch(job)
	c.notify(symbol)
	return c.mustSnapshot(symbol)
}

// Unsubscribe drops the window and aborts its in-flight fetch, if any.
func (c *Cache) Unsubscribe(symbol string) error {
	c.mu.Lock()
	w, ok := c.windows[symbol]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownSymbol
	}
	delete(c.windows, symbol)
	w.generation++
	if w.cancel != nil {
		w.cancel()
	}
	c.mu.Unlock()

	c.logger.Info("window unsubscribed", applogger.String("symbol", symbol))
	return nil
}

// Refresh clears the local buffer and refetches the first chunk.
func (c *Cache) Refresh(symbol string) error { return c.restart(symbol, false) }

// Reset is Refresh plus a request that the source forgets its own position
// for symbol on the next fetch.
func (c *Cache) Reset(symbol string) error { return c.restart(symbol, true) }

func (c *Cache) restart(symbol string, hard bool) error {
	c.mu.Lock()
	w, ok := c.windows[symbol]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownSymbol
	}
	w.generation++
	c.clearLocked(w)
	if hard {
		w.resetPending = true
	}
	var job *fetchJob
	if w.busy {
		// the in-flight fetch is now stale; start over once it settles
		w.cancel()
		w.refetch = true
	} else {
		job = c.startFetchLocked(w)
	}
	c.mu.Unlock()

	c.logger.Info("window restarted", applogger.String("symbol", symbol), applogger.Bool("reset", hard))
	c.launch(job)
	c.notify(symbol)
	return nil
}

func (c *Cache) clearLocked(w *window) {
	w.buffer = nil
	w.seen = make(map[int64]struct{})
	w.cursor = 0
	w.base = 0
	w.fetched = 0
	w.total = -1
	w.hasMore = true
	w.countdown = c.stepTicks
	w.populated = false
	w.exhausted = false
	w.err = nil
	w.sticky = false
}

// Snapshot returns a copy of the window state for symbol.
func (c *Cache) Snapshot(symbol string) (models.WindowSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[symbol]
	if !ok {
		return models.WindowSnapshot{}, ErrUnknownSymbol
	}
	return c.snapshotLocked(w), nil
}

// Snapshots returns every window ordered by symbol.
func (c *Cache) Snapshots() []models.WindowSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.WindowSnapshot, 0, len(c.windows))
	for _, w := range c.windows {
		out = append(out, c.snapshotLocked(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols lists the subscribed symbols in order.
func (c *Cache) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.windows))
	for s := range c.windows {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (c *Cache) mustSnapshot(symbol string) models.WindowSnapshot {
	snap, err := c.Snapshot(symbol)
	if err != nil {
		// unsubscribed concurrently
		return models.WindowSnapshot{Symbol: symbol, VisibleTicks: []models.Tick{}}
	}
	return snap
}

func (c *Cache) snapshotLocked(w *window) models.WindowSnapshot {
	s := models.WindowSnapshot{
		Symbol:           w.symbol,
		VisibleTicks:     []models.Tick{},
		IsLoading:        w.busy,
		HasMore:          w.hasMore,
		CountdownSeconds: int(math.Ceil(float64(w.countdown) * c.cfg.TickInterval.Seconds())),
		Cursor:           w.base + w.cursor,
		Buffered:         len(w.buffer),
		TotalAvailable:   w.total,
		Exhausted:        w.populated && !w.hasMore && w.cursor == len(w.buffer)-1,
	}
	if w.err != nil {
		s.Error = w.err.Error()
	}
	if w.populated {
		lo := w.cursor - c.cfg.VisibleSize + 1
		if lo < 0 {
			lo = 0
		}
		s.VisibleTicks = append(s.VisibleTicks, w.buffer[lo:w.cursor+1]...)
		cur := w.buffer[w.cursor]
		s.CurrentTick = &cur
	}
	return s
}

// Close aborts every in-flight fetch. The cache must not be used afterwards.
func (c *Cache) Close() error {
	c.stop()
	c.mu.Lock()
	for _, w := range c.windows {
		w.generation++
		w.busy = false
	}
	c.windows = make(map[string]*window)
	c.mu.Unlock()
	return nil
}
