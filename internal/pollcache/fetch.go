package pollcache

import (
	"context"
	"errors"
	"fmt"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	applogger "ForexDash/pkg/logger"
)

type fetchJob struct {
	w      *window
	symbol string
	gen    uint64
	req    repository.FetchRequest
	ctx    context.Context
	cancel context.CancelFunc
}

// startFetchLocked marks w busy and prepares a fetch for its next chunk.
// It returns nil when a fetch is already outstanding.
func (c *Cache) startFetchLocked(w *window) *fetchJob {
	if w.busy {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.baseCtx, c.cfg.requestTimeout())
	w.busy = true
	w.cancel = cancel
	return &fetchJob{
		w:      w,
		symbol: w.symbol,
		gen:    w.generation,
		req: repository.FetchRequest{
			Symbol: w.symbol,
			Offset: w.fetched,
			Limit:  c.cfg.ChunkSize,
			Reset:  w.resetPending,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Cache) launch(job *fetchJob) {
	if job == nil {
		return
	}
	c.dispatch(func() { c.runFetch(job) })
}

func (c *Cache) runFetch(job *fetchJob) {
	start := c.clock.Now()
	page, err := c.source.Fetch(job.ctx, job.req)
	timedOut := errors.Is(job.ctx.Err(), context.DeadlineExceeded)
	job.cancel()
	elapsed := c.clock.Since(start).Seconds()

	c.mu.Lock()
	w, ok := c.windows[job.symbol]
	if !ok || w != job.w {
		c.mu.Unlock()
		c.metrics.RecordFetch(job.symbol, "discarded", elapsed)
		return
	}
	w.busy = false
	w.cancel = nil
	if w.generation != job.gen {
		var next *fetchJob
		if w.refetch {
			w.refetch = false
			next = c.startFetchLocked(w)
		}
		c.mu.Unlock()
		c.metrics.RecordFetch(job.symbol, "discarded", elapsed)
		c.logger.Debug("discarded stale fetch",
			applogger.String("symbol", job.symbol),
			applogger.Uint64("generation", job.gen))
		c.launch(next)
		c.notify(job.symbol)
		return
	}

	if err == nil && page == nil {
		err = fmt.Errorf("%w: empty page", repository.ErrMalformed)
	}
	if err != nil && timedOut {
		err = fmt.Errorf("request timed out after %s: %w", c.cfg.requestTimeout(), err)
	}
	var rev *models.RevealedTick
	if err != nil {
		w.err = err
		w.sticky = errors.Is(err, repository.ErrMalformed)
	} else {
		rev = c.applyLocked(w, job.req, page)
	}
	buffered := len(w.buffer)
	c.mu.Unlock()

	if err != nil {
		result := "error"
		if errors.Is(err, repository.ErrMalformed) {
			result = "malformed"
		}
		c.metrics.RecordFetch(job.symbol, result, elapsed)
		c.metrics.RecordError("fetch_" + result)
		c.logger.Warn("fetch failed",
			applogger.String("symbol", job.symbol),
			applogger.Int("offset", job.req.Offset),
			applogger.Error(err))
	} else {
		c.metrics.RecordFetch(job.symbol, "ok", elapsed)
		c.metrics.RecordBuffered(job.symbol, buffered)
	}
	if rev != nil {
		c.reveal([]models.RevealedTick{*rev})
	}
	c.notify(job.symbol)
}

// applyLocked appends page to w. It returns the first tick when this page
// populated an empty window.
func (c *Cache) applyLocked(w *window, req repository.FetchRequest, page *models.Page) *models.RevealedTick {
	w.err = nil
	w.sticky = false
	if req.Reset {
		w.resetPending = false
	}

	for _, t := range page.Ticks {
		if n := len(w.buffer); n > 0 && t.Timestamp.Before(w.buffer[n-1].Timestamp) {
			continue
		}
		if c.dedup {
			key := t.Timestamp.UnixNano()
			if _, dup := w.seen[key]; dup {
				continue
			}
			w.seen[key] = struct{}{}
		}
		w.buffer = append(w.buffer, t)
	}

	if page.NextOffset > req.Offset {
		w.fetched = page.NextOffset
	} else {
		w.fetched = req.Offset + len(page.Ticks)
	}
	w.hasMore = page.HasMore
	if page.Total >= 0 {
		w.total = page.Total
	}
	c.evictLocked(w)

	if w.populated || len(w.buffer) == 0 {
		return nil
	}
	w.populated = true
	w.cursor = 0
	return &models.RevealedTick{Symbol: w.symbol, Tick: w.buffer[0]}
}

// evictLocked trims the oldest ticks beyond MaxRetained. The visible window
// ending at the cursor is never evicted, so the cap is soft.
func (c *Cache) evictLocked(w *window) {
	limit := c.cfg.MaxRetained
	if limit <= 0 || len(w.buffer) <= limit {
		return
	}
	n := len(w.buffer) - limit
	if keep := w.cursor - c.cfg.VisibleSize + 1; n > keep {
		n = keep
	}
	if n <= 0 {
		return
	}
	if c.dedup {
		// anything re-delivered from here on is older than the tail and gets dropped anyway
		for _, t := range w.buffer[:n] {
			delete(w.seen, t.Timestamp.UnixNano())
		}
	}
	w.buffer = append([]models.Tick(nil), w.buffer[n:]...)
	w.cursor -= n
	w.base += n
}
