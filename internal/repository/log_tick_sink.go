package repository

import (
	"context"

	"ForexDash/internal/domain/models"
	domrepo "ForexDash/internal/domain/repository"
	applogger "ForexDash/pkg/logger"
)

// LogTickSink stands in for Kafka when no broker is configured.
type LogTickSink struct {
	l *applogger.Logger
}

var _ domrepo.TickSink = (*LogTickSink)(nil)

func NewLogTickSink(l *applogger.Logger) *LogTickSink {
	if l == nil {
		l = applogger.Nop()
	}
	return &LogTickSink{l: l}
}

func (s *LogTickSink) Publish(_ context.Context, rt models.RevealedTick) error {
	s.l.Debug("tick revealed",
		applogger.String("symbol", rt.Symbol),
		applogger.Time("timestamp", rt.Tick.Timestamp),
		applogger.Float64("close", rt.Tick.Close))
	return nil
}

func (s *LogTickSink) PublishBatch(ctx context.Context, batch []models.RevealedTick) error {
	for _, rt := range batch {
		_ = s.Publish(ctx, rt)
	}
	return nil
}

func (s *LogTickSink) Close() error { return nil }
