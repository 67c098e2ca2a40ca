package pollcache

import (
	"context"

	"ForexDash/internal/domain/models"
	applogger "ForexDash/pkg/logger"
)

// Advance runs one clock tick for symbol.
func (c *Cache) Advance(symbol string) error {
	c.mu.Lock()
	w, ok := c.windows[symbol]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownSymbol
	}
	rev, job := c.advanceLocked(w)
	c.mu.Unlock()

	c.launch(job)
	if rev != nil {
		c.reveal([]models.RevealedTick{*rev})
		c.notify(symbol)
	}
	return nil
}

// AdvanceAll runs one clock tick for every window.
func (c *Cache) AdvanceAll() {
	var (
		revealed []models.RevealedTick
		jobs     []*fetchJob
		changed  []string
	)
	c.mu.Lock()
	for symbol, w := range c.windows {
		rev, job := c.advanceLocked(w)
		if rev != nil {
			revealed = append(revealed, *rev)
			changed = append(changed, symbol)
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	c.mu.Unlock()

	for _, job := range jobs {
		c.launch(job)
	}
	c.reveal(revealed)
	c.notify(changed...)
}

// advanceLocked decrements the countdown, moves the cursor when it expires and
// starts a pre-fetch when the buffer ahead of the cursor runs low. The cursor
// keeps moving while a fetch is outstanding; only the fetch is single-flight.
func (c *Cache) advanceLocked(w *window) (*models.RevealedTick, *fetchJob) {
	var rev *models.RevealedTick
	if w.populated {
		w.countdown--
		if w.countdown <= 0 {
			w.countdown = c.stepTicks
			switch {
			case w.cursor < len(w.buffer)-1:
				w.cursor++
				rev = &models.RevealedTick{Symbol: w.symbol, Tick: w.buffer[w.cursor]}
			case !w.hasMore && !w.exhausted:
				w.exhausted = true
				c.logger.Info("series exhausted",
					applogger.String("symbol", w.symbol),
					applogger.Int("ticks", w.base+len(w.buffer)))
			}
		}
	}

	if w.busy || w.sticky || !w.hasMore {
		return rev, nil
	}
	// an exhausted buffer always fetches, whatever the low-water mark
	if remaining := len(w.buffer) - 1 - w.cursor; remaining > 0 && remaining >= c.cfg.LowWater {
		return rev, nil
	}
	return rev, c.startFetchLocked(w)
}

// Run drives AdvanceAll from the cache clock until ctx is done.
func (c *Cache) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	c.logger.Info("poll cache clock started",
		applogger.Duration("tick_interval", c.cfg.TickInterval),
		applogger.Duration("step_interval", c.cfg.StepInterval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			c.AdvanceAll()
		}
	}
}
