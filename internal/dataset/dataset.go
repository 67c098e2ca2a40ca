// Package dataset loads complete, finite OHLCV series for a pair and timeframe.
// The simulator serves these series as if they were arriving live.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
)

// filePath returns {dir}/{pair}_{timeframe}{ext}. Names that could escape dir are rejected.
func filePath(dir, pair, timeframe, ext string) (string, error) {
	for _, part := range []string{pair, timeframe} {
		if part == "" || strings.ContainsAny(part, `/\`) || strings.Contains(part, "..") {
			return "", fmt.Errorf("%w: invalid name %q", repository.ErrNotFound, part)
		}
	}
	return filepath.Join(dir, pair+"_"+timeframe+ext), nil
}

// inOrder drops ticks that go back in time. Datasets are expected in order;
// a stray row is skipped rather than failing the whole load.
func inOrder(ticks []models.Tick) []models.Tick {
	out := ticks[:0]
	for _, t := range ticks {
		if n := len(out); n > 0 && t.Timestamp.Before(out[n-1].Timestamp) {
			continue
		}
		out = append(out, t)
	}
	return out
}
