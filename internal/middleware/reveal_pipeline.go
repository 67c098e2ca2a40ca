package middleware

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"ForexDash/internal/domain/models"
	domrepo "ForexDash/internal/domain/repository"
	applogger "ForexDash/pkg/logger"
	"ForexDash/pkg/metrics"
)

// RevealPipeline sits between the poll cache and the tick sink. Enqueue never blocks
// the cache: ticks are validated, buffered, and flushed in batches by Run, with
// retries when the sink is unavailable.
type RevealPipeline struct {
	sink          domrepo.TickSink
	metrics       domrepo.Metrics
	logger        *applogger.Logger
	clock         clockwork.Clock
	buf           chan models.RevealedTick
	batchSize     int
	flushInterval time.Duration
	maxRetries    int
	backoff       time.Duration

	published atomic.Int64
	dropped   atomic.Int64
}

const maxBackoff = 5 * time.Second

type PipelineOption func(*RevealPipeline)

// WithBufferSize sets how many ticks may wait for the sink before new ones are dropped.
func WithBufferSize(n int) PipelineOption {
	return func(p *RevealPipeline) {
		if n > 0 {
			p.buf = make(chan models.RevealedTick, n)
		}
	}
}

func WithBatch(size int, interval time.Duration) PipelineOption {
	return func(p *RevealPipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if interval > 0 {
			p.flushInterval = interval
		}
	}
}

// WithRetry sets how often a failed batch is retried and the first backoff, which doubles per attempt.
func WithRetry(maxRetries int, backoff time.Duration) PipelineOption {
	return func(p *RevealPipeline) {
		if maxRetries >= 0 {
			p.maxRetries = maxRetries
		}
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

func WithPipelineClock(c clockwork.Clock) PipelineOption {
	return func(p *RevealPipeline) { p.clock = c }
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *RevealPipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewRevealPipeline(sink domrepo.TickSink, m domrepo.Metrics, opts ...PipelineOption) *RevealPipeline {
	p := &RevealPipeline{
		sink:          sink,
		metrics:       m,
		logger:        applogger.Nop(),
		clock:         clockwork.NewRealClock(),
		buf:           make(chan models.RevealedTick, 1024),
		batchSize:     50,
		flushInterval: 500 * time.Millisecond,
		maxRetries:    3,
		backoff:       200 * time.Millisecond,
	}
	if p.metrics == nil {
		p.metrics = metrics.Noop{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue validates rt and queues it for the sink. It reports false when rt was dropped.
func (p *RevealPipeline) Enqueue(rt models.RevealedTick) bool {
	if err := validateTick(rt); err != nil {
		p.metrics.RecordError("pipeline_validate")
		p.logger.Warn("dropping invalid tick", applogger.String("symbol", rt.Symbol), applogger.Error(err))
		p.dropped.Add(1)
		return false
	}
	select {
	case p.buf <- rt:
		return true
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		p.dropped.Add(1)
		return false
	}
}

// Published returns how many ticks reached the sink.
func (p *RevealPipeline) Published() int64 { return p.published.Load() }

// Dropped returns how many ticks were rejected, overflowed or given up on.
func (p *RevealPipeline) Dropped() int64 { return p.dropped.Load() }

// Run flushes batches until ctx is cancelled, then drains what is left.
func (p *RevealPipeline) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]models.RevealedTick, 0, p.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		p.send(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// the run context is gone, so the drain gets its own deadline
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		drain:
			for {
				select {
				case rt := <-p.buf:
					batch = append(batch, rt)
					if len(batch) >= p.batchSize {
						flush(drainCtx)
					}
				default:
					break drain
				}
			}
			flush(drainCtx)
			cancel()
			return nil
		case rt := <-p.buf:
			batch = append(batch, rt)
			if len(batch) >= p.batchSize {
				flush(ctx)
			}
		case <-ticker.Chan():
			flush(ctx)
		}
	}
}

func (p *RevealPipeline) send(ctx context.Context, batch []models.RevealedTick) {
	start := p.clock.Now()
	backoff := p.backoff
	var err error
	attempts := 0
retry:
	for ; attempts <= p.maxRetries; attempts++ {
		if attempts > 0 {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				break retry
			case <-p.clock.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
		if err = p.sink.PublishBatch(ctx, batch); err == nil {
			p.published.Add(int64(len(batch)))
			p.metrics.RecordLatency("pipeline_flush", p.clock.Since(start).Seconds())
			return
		}
		p.metrics.RecordError("pipeline_flush")
	}
	p.dropped.Add(int64(len(batch)))
	p.metrics.RecordError("pipeline_batch_dropped")
	p.logger.Error("tick batch dropped",
		applogger.Int("size", len(batch)),
		applogger.Int("attempts", attempts),
		applogger.Error(err))
}

func validateTick(rt models.RevealedTick) error {
	if rt.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if rt.Tick.Timestamp.IsZero() {
		return fmt.Errorf("timestamp missing")
	}
	t := rt.Tick
	if t.Open < 0 || t.High < 0 || t.Low < 0 || t.Close < 0 || t.Volume < 0 {
		return fmt.Errorf("negative price/volume")
	}
	return nil
}
