package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	"ForexDash/pkg/util"
)

// CSVLoader reads {dir}/{pair}_{interval}.csv files with a
// Date,Open,High,Low,Close,Volume header. Column order is free.
type CSVLoader struct {
	dir string
}

func NewCSVLoader(dir string) *CSVLoader {
	return &CSVLoader{dir: dir}
}

func (l *CSVLoader) Load(_ context.Context, pair, timeframe string) ([]models.Tick, error) {
	path, err := filePath(l.dir, pair, timeframe, ".csv")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: csv file for %s_%s", repository.ErrNotFound, pair, timeframe)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ticks, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ticks, nil
}

// ReadCSV parses an OHLCV CSV stream. Date is required; missing price or volume columns read as zero.
func ReadCSV(r io.Reader) ([]models.Tick, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	dateCol, ok := col["date"]
	if !ok {
		if dateCol, ok = col["timestamp"]; !ok {
			return nil, fmt.Errorf("header has no Date column")
		}
	}

	var ticks []models.Tick
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if dateCol >= len(rec) || strings.TrimSpace(rec[dateCol]) == "" {
			continue
		}
		ts, ok := util.ParseTime(rec[dateCol])
		if !ok {
			return nil, fmt.Errorf("line %d: bad date %q", line, rec[dateCol])
		}
		t := models.Tick{Timestamp: ts}
		for name, dst := range map[string]*float64{
			"open": &t.Open, "high": &t.High, "low": &t.Low, "close": &t.Close, "volume": &t.Volume,
		} {
			i, ok := col[name]
			if !ok || i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
				continue
			}
			v, err := util.ParseFloat(rec[i])
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, name, err)
			}
			*dst = v
		}
		ticks = append(ticks, t)
	}
	return inOrder(ticks), nil
}
