package pollcache

import (
	"ForexDash/internal/domain/models"
)

const watchBuffer = 16

type watcher struct {
	symbol string
	ch     chan models.WindowSnapshot
}

// Watch returns a channel that receives a snapshot of symbol after every
// reveal or fetch outcome. Slow readers miss intermediate snapshots.
// The returned func stops the watch and closes the channel.
func (c *Cache) Watch(symbol string) (<-chan models.WindowSnapshot, func()) {
	c.wmu.Lock()
	id := c.nextWatch
	c.nextWatch++
	w := &watcher{symbol: symbol, ch: make(chan models.WindowSnapshot, watchBuffer)}
	c.watchers[id] = w
	c.wmu.Unlock()

	var once bool
	return w.ch, func() {
		c.wmu.Lock()
		defer c.wmu.Unlock()
		if once {
			return
		}
		once = true
		delete(c.watchers, id)
		close(w.ch)
	}
}

// OnReveal registers fn to be called, outside the cache lock, for every
// tick that becomes current.
func (c *Cache) OnReveal(fn func(models.RevealedTick)) {
	c.wmu.Lock()
	c.onReveal = append(c.onReveal, fn)
	c.wmu.Unlock()
}

func (c *Cache) reveal(ticks []models.RevealedTick) {
	if len(ticks) == 0 {
		return
	}
	c.wmu.Lock()
	hooks := append(make([]func(models.RevealedTick), 0, len(c.onReveal)), c.onReveal...)
	c.wmu.Unlock()

	for _, rt := range ticks {
		c.metrics.RecordReveal(rt.Symbol, rt.Tick.Close)
		for _, fn := range hooks {
			fn(rt)
		}
	}
}

func (c *Cache) notify(symbols ...string) {
	if len(symbols) == 0 {
		return
	}
	c.wmu.Lock()
	watched := make(map[string]bool)
	for _, w := range c.watchers {
		watched[w.symbol] = true
	}
	c.wmu.Unlock()

	snaps := make(map[string]models.WindowSnapshot)
	for _, s := range symbols {
		if !watched[s] {
			continue
		}
		if snap, err := c.Snapshot(s); err == nil {
			snaps[s] = snap
		}
	}
	if len(snaps) == 0 {
		return
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	for _, w := range c.watchers {
		snap, ok := snaps[w.symbol]
		if !ok {
			continue
		}
		select {
		case w.ch <- snap:
		default:
		}
	}
}
