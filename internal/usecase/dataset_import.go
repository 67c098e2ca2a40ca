package usecase

import (
	"context"
	"errors"
	"fmt"

	"ForexDash/internal/domain/models"
	drepo "ForexDash/internal/domain/repository"
	applogger "ForexDash/pkg/logger"
)

// SeriesWriter persists a complete series, replacing what was there.
type SeriesWriter interface {
	StoreSeries(ctx context.Context, pair, timeframe string, ticks []models.Tick) error
}

// DatasetImporter copies datasets from one backend into another, e.g. CSV files into ClickHouse.
type DatasetImporter struct {
	src    drepo.DatasetLoader
	dst    SeriesWriter
	logger *applogger.Logger
}

func NewDatasetImporter(src drepo.DatasetLoader, dst SeriesWriter, logger *applogger.Logger) *DatasetImporter {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &DatasetImporter{src: src, dst: dst, logger: logger}
}

// Import copies every pair/timeframe combination. Missing source series are skipped;
// any other failure stops the import. It returns the number of ticks written.
func (im *DatasetImporter) Import(ctx context.Context, pairs, timeframes []string) (int, error) {
	total := 0
	for _, pair := range pairs {
		for _, tf := range timeframes {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			ticks, err := im.src.Load(ctx, pair, tf)
			if errors.Is(err, drepo.ErrNotFound) {
				im.logger.Warn("dataset missing, skipped", applogger.String("pair", pair), applogger.String("timeframe", tf))
				continue
			}
			if err != nil {
				return total, fmt.Errorf("load %s/%s: %w", pair, tf, err)
			}
			if err := im.dst.StoreSeries(ctx, pair, tf, ticks); err != nil {
				return total, fmt.Errorf("store %s/%s: %w", pair, tf, err)
			}
			total += len(ticks)
			im.logger.Info("dataset imported",
				applogger.String("pair", pair),
				applogger.String("timeframe", tf),
				applogger.Int("ticks", len(ticks)))
		}
	}
	return total, nil
}
