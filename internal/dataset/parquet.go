package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
)

// tickRecord is the on-disk parquet schema.
type tickRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ParquetLoader reads {dir}/{pair}_{interval}.parquet files.
type ParquetLoader struct {
	dir string
}

func NewParquetLoader(dir string) *ParquetLoader {
	return &ParquetLoader{dir: dir}
}

func (l *ParquetLoader) Load(_ context.Context, pair, timeframe string) ([]models.Tick, error) {
	path, err := filePath(l.dir, pair, timeframe, ".parquet")
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: parquet file for %s_%s", repository.ErrNotFound, pair, timeframe)
	}

	rows, err := parquet.ReadFile[tickRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ticks := make([]models.Tick, len(rows))
	for i, r := range rows {
		ticks[i] = models.Tick{
			Timestamp: time.UnixMilli(r.Timestamp).UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		}
	}
	return inOrder(ticks), nil
}

// WriteParquet stores ticks in the layout ParquetLoader reads. It is used to convert
// CSV datasets once so later loads skip text parsing.
func WriteParquet(dir, pair, timeframe string, ticks []models.Tick) error {
	path, err := filePath(dir, pair, timeframe, ".parquet")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records := make([]tickRecord, len(ticks))
	for i, t := range ticks {
		records[i] = tickRecord{
			Timestamp: t.Timestamp.UnixMilli(),
			Open:      t.Open,
			High:      t.High,
			Low:       t.Low,
			Close:     t.Close,
			Volume:    t.Volume,
		}
	}
	return parquet.WriteFile(path, records)
}

// ParquetWriter stores whole series as parquet files under dir.
type ParquetWriter struct {
	dir string
}

func NewParquetWriter(dir string) *ParquetWriter {
	return &ParquetWriter{dir: dir}
}

func (w *ParquetWriter) StoreSeries(_ context.Context, pair, timeframe string, ticks []models.Tick) error {
	return WriteParquet(w.dir, pair, timeframe, ticks)
}
