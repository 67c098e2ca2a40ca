// Package upstream implements repository.TickSource over the two HTTP
// pagination styles the dashboard backends expose.
package upstream

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	apphttp "ForexDash/pkg/http"
	applogger "ForexDash/pkg/logger"
	"ForexDash/pkg/util"
)

const (
	ModeOffset = "offset"
	ModeCursor = "cursor"
)

// Config selects and parameterises a source.
type Config struct {
	Mode      string
	BaseURL   string
	Timeframe string
}

// New builds the source for cfg.Mode on top of client.
func New(cfg Config, client *apphttp.Client, logger *applogger.Logger) (repository.TickSource, error) {
	if logger == nil {
		logger = applogger.Nop()
	}
	switch strings.ToLower(cfg.Mode) {
	case "", ModeOffset:
		return NewOffsetClient(client, cfg.Timeframe, logger), nil
	case ModeCursor:
		return NewCursorClient(client, cfg.Timeframe, logger), nil
	default:
		return nil, fmt.Errorf("upstream: unknown mode %q", cfg.Mode)
	}
}

// classify maps transport errors onto the cache error taxonomy: anything the
// server rejected outright or sent back garbled is malformed, the rest is transient.
func classify(err error) error {
	var se *apphttp.StatusError
	if errors.As(err, &se) && !se.Temporary() {
		return fmt.Errorf("%w: %v", repository.ErrMalformed, err)
	}
	var de *apphttp.DecodeError
	if errors.As(err, &de) {
		return fmt.Errorf("%w: %v", repository.ErrMalformed, err)
	}
	return err
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", repository.ErrMalformed, fmt.Sprintf(format, args...))
}

func parseStamp(s string) (time.Time, error) {
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, malformed("bad timestamp %q", s)
	}
	return t, nil
}

// checkOrder rejects chunks whose timestamps go backwards.
func checkOrder(ticks []models.Tick) error {
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Timestamp.Before(ticks[i-1].Timestamp) {
			return malformed("tick %d at %s precedes %s", i, ticks[i].Timestamp, ticks[i-1].Timestamp)
		}
	}
	return nil
}
