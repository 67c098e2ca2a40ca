package repository

import (
	"context"

	"ForexDash/internal/domain/models"
)

// FetchRequest asks a source for the chunk starting at Offset.
// Reset asks the source to drop any server-held position for the symbol first.
type FetchRequest struct {
	Symbol string
	Offset int
	Limit  int
	Reset  bool
}

// TickSource is the upstream time-series the poll cache pages through.
type TickSource interface {
	Fetch(ctx context.Context, req FetchRequest) (*models.Page, error)
}

// Deduplicator is implemented by sources that may deliver the same tick twice.
type Deduplicator interface {
	DedupByTimestamp() bool
}

// TickSink receives ticks as they are revealed.
type TickSink interface {
	Publish(ctx context.Context, rt models.RevealedTick) error
	PublishBatch(ctx context.Context, batch []models.RevealedTick) error
	Close() error
}

// DatasetLoader loads a full finite OHLCV series for a pair/timeframe.
type DatasetLoader interface {
	Load(ctx context.Context, pair, timeframe string) ([]models.Tick, error)
}

type Metrics interface {
	RecordFetch(symbol, result string, seconds float64)
	RecordReveal(symbol string, price float64)
	RecordBuffered(symbol string, n int)
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
