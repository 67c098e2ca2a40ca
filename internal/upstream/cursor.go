package upstream

import (
	"context"
	"net/url"
	"sync"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	apphttp "ForexDash/pkg/http"
	applogger "ForexDash/pkg/logger"
)

type cursorTick struct {
	Date   string  `json:"Date"`
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"`
	Volume float64 `json:"Volume"`
}

type cursorResponse struct {
	Pair      string      `json:"pair"`
	Interval  string      `json:"interval"`
	Date      string      `json:"date"`
	TotalRows int         `json:"total_rows"`
	Returned  int         `json:"returned"`
	HasMore   bool        `json:"has_more"`
	Cursor    string      `json:"cursor"`
	Data      *cursorTick `json:"data"`
}

// CursorClient steps /technical/simulate/live/single one tick per request.
// The opaque cursor returned by the server is kept per symbol; the request
// offset is ignored.
type CursorClient struct {
	http     *apphttp.Client
	interval string
	logger   *applogger.Logger

	mu      sync.Mutex
	cursors map[string]string
}

func NewCursorClient(client *apphttp.Client, interval string, logger *applogger.Logger) *CursorClient {
	return &CursorClient{
		http:     client,
		interval: string(repository.NormalizeInterval(interval)),
		logger:   logger,
		cursors:  make(map[string]string),
	}
}

// DedupByTimestamp is true: a retried request can hand back the same tick.
func (c *CursorClient) DedupByTimestamp() bool { return true }

func (c *CursorClient) Fetch(ctx context.Context, req repository.FetchRequest) (*models.Page, error) {
	c.mu.Lock()
	if req.Reset {
		delete(c.cursors, req.Symbol)
	}
	cursor := c.cursors[req.Symbol]
	c.mu.Unlock()

	q := url.Values{}
	q.Set("pair", req.Symbol)
	q.Set("interval", c.interval)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if req.Reset {
		q.Set("reset", "true")
	}

	var resp cursorResponse
	if err := c.http.GetJSON(ctx, "/technical/simulate/live/single", q, &resp); err != nil {
		return nil, classify(err)
	}

	page := &models.Page{Total: resp.TotalRows, HasMore: resp.HasMore}
	if resp.Data != nil {
		ts, err := parseStamp(resp.Data.Date)
		if err != nil {
			return nil, err
		}
		page.Ticks = []models.Tick{{
			Timestamp: ts,
			Open:      resp.Data.Open,
			High:      resp.Data.High,
			Low:       resp.Data.Low,
			Close:     resp.Data.Close,
			Volume:    resp.Data.Volume,
		}}
	} else if resp.HasMore {
		return nil, malformed("cursor response has no tick but has_more is set")
	}
	if resp.HasMore && resp.Cursor == "" {
		return nil, malformed("cursor response has no next cursor")
	}

	c.mu.Lock()
	c.cursors[req.Symbol] = resp.Cursor
	c.mu.Unlock()

	c.logger.Debug("cursor tick fetched",
		applogger.String("symbol", req.Symbol),
		applogger.String("cursor", resp.Cursor),
		applogger.Bool("has_more", resp.HasMore))
	return page, nil
}
