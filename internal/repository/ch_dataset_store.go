package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ForexDash/internal/domain/models"
	domrepo "ForexDash/internal/domain/repository"
	applogger "ForexDash/pkg/logger"
)

// insertChunk caps rows per multi-row INSERT.
const insertChunk = 2000

type sqlDB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// CHDatasetStore keeps simulator datasets in ClickHouse, one row per candle.
// It implements domain repository.DatasetLoader.
type CHDatasetStore struct {
	db    sqlDB
	table string
	l     *applogger.Logger
}

var _ domrepo.DatasetLoader = (*CHDatasetStore)(nil)

func NewCHDatasetStore(db sqlDB, database string, l *applogger.Logger) *CHDatasetStore {
	if l == nil {
		l = applogger.Nop()
	}
	if database == "" {
		database = "default"
	}
	return &CHDatasetStore{db: db, table: database + ".ohlcv", l: l}
}

// Schema returns the idempotent DDL for the dataset table.
func (s *CHDatasetStore) Schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol LowCardinality(String),
            tf     LowCardinality(String),
            bucket DateTime64(3, 'UTC'),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            vol    Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, tf, bucket)
    `, s.table)}
}

func (s *CHDatasetStore) Load(ctx context.Context, pair, timeframe string) ([]models.Tick, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT bucket, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ? AND tf = ?
        ORDER BY bucket ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, pair, timeframe)
	if err != nil {
		s.l.Error("clickhouse dataset query error",
			applogger.String("symbol", pair),
			applogger.String("tf", timeframe),
			applogger.Error(err))
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	defer rows.Close()

	out := make([]models.Tick, 0, 1024)
	for rows.Next() {
		var t models.Tick
		if err := rows.Scan(&t.Timestamp, &t.Open, &t.High, &t.Low, &t.Close, &t.Volume); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.Timestamp = t.Timestamp.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no rows for %s/%s", domrepo.ErrNotFound, pair, timeframe)
	}
	s.l.Debug("clickhouse dataset ok",
		applogger.String("symbol", pair),
		applogger.String("tf", timeframe),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)))
	return out, nil
}

// StoreSeries writes ticks with multi-row inserts. Re-importing a series is safe:
// the ReplacingMergeTree keeps one row per bucket.
func (s *CHDatasetStore) StoreSeries(ctx context.Context, pair, timeframe string, ticks []models.Tick) error {
	if pair == "" || timeframe == "" {
		return fmt.Errorf("pair and timeframe are required")
	}
	for start := 0; start < len(ticks); start += insertChunk {
		end := start + insertChunk
		if end > len(ticks) {
			end = len(ticks)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, t := range ticks[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, pair, timeframe, t.Timestamp.UTC(), t.Open, t.High, t.Low, t.Close, t.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, tf, bucket, open, high, low, close, vol) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s/%s rows %d-%d: %w", pair, timeframe, start, end, err)
		}
	}
	return nil
}

func (s *CHDatasetStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
