package usecase

import (
	"context"

	"ForexDash/internal/domain/models"
	mid "ForexDash/internal/middleware"
	"ForexDash/internal/pollcache"
	applogger "ForexDash/pkg/logger"
)

// RevealCollector forwards every tick the cache reveals into the sink pipeline.
type RevealCollector struct {
	pipe   *mid.RevealPipeline
	logger *applogger.Logger
}

// NewRevealCollector hooks onto cache reveals. Ticks are only delivered once Start runs.
func NewRevealCollector(cache *pollcache.Cache, pipe *mid.RevealPipeline, logger *applogger.Logger) *RevealCollector {
	if logger == nil {
		logger = applogger.Nop()
	}
	c := &RevealCollector{pipe: pipe, logger: logger}
	cache.OnReveal(c.collect)
	return c
}

func (c *RevealCollector) collect(rt models.RevealedTick) {
	if !c.pipe.Enqueue(rt) {
		c.logger.Debug("revealed tick not queued", applogger.String("symbol", rt.Symbol))
	}
}

// Start runs the pipeline until ctx is done, flushing what is buffered on the way out.
func (c *RevealCollector) Start(ctx context.Context) error {
	c.logger.Info("reveal collector started")
	err := c.pipe.Run(ctx)
	c.logger.Info("reveal collector stopped",
		applogger.Int64("published", c.pipe.Published()),
		applogger.Int64("dropped", c.pipe.Dropped()))
	return err
}

// Stats reports ticks handed to the sink and ticks lost on the way.
func (c *RevealCollector) Stats() (published, dropped int64) {
	return c.pipe.Published(), c.pipe.Dropped()
}
