package upstream

import (
	"context"
	"net/url"
	"strconv"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	apphttp "ForexDash/pkg/http"
	applogger "ForexDash/pkg/logger"
)

type offsetTick struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type offsetResponse struct {
	Success   bool         `json:"success"`
	Pair      string       `json:"pair"`
	Timeframe string       `json:"timeframe"`
	Data      []offsetTick `json:"data"`
	Total     int          `json:"total"`
	Returned  int          `json:"returned"`
	Error     string       `json:"error"`
	Metadata  *struct {
		HasMore        bool `json:"hasMore"`
		TotalAvailable int  `json:"totalAvailable"`
		NextFrom       int  `json:"nextFrom"`
	} `json:"metadata"`
}

// OffsetClient pages through /api/forex-ohlcv/{pair}/{timeframe} with
// from_limit/to_limit offsets.
type OffsetClient struct {
	http      *apphttp.Client
	timeframe string
	logger    *applogger.Logger
}

func NewOffsetClient(client *apphttp.Client, timeframe string, logger *applogger.Logger) *OffsetClient {
	if timeframe == "" {
		timeframe = string(repository.DefaultInterval())
	}
	return &OffsetClient{http: client, timeframe: timeframe, logger: logger}
}

func (c *OffsetClient) Fetch(ctx context.Context, req repository.FetchRequest) (*models.Page, error) {
	path := "/api/forex-ohlcv/" + url.PathEscape(req.Symbol) + "/" + url.PathEscape(c.timeframe)
	q := url.Values{}
	q.Set("from_limit", strconv.Itoa(req.Offset))
	q.Set("to_limit", strconv.Itoa(req.Offset+req.Limit))

	var resp offsetResponse
	if err := c.http.GetJSON(ctx, path, q, &resp); err != nil {
		return nil, classify(err)
	}
	if !resp.Success {
		return nil, malformed("upstream reported failure: %s", resp.Error)
	}
	if resp.Metadata == nil {
		return nil, malformed("response has no metadata")
	}

	ticks := make([]models.Tick, 0, len(resp.Data))
	for _, d := range resp.Data {
		ts, err := parseStamp(d.Timestamp)
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, models.Tick{
			Timestamp: ts,
			Open:      d.Open,
			High:      d.High,
			Low:       d.Low,
			Close:     d.Close,
			Volume:    d.Volume,
		})
	}
	if err := checkOrder(ticks); err != nil {
		return nil, err
	}

	total := resp.Metadata.TotalAvailable
	if total == 0 && resp.Total > 0 {
		total = resp.Total
	}
	c.logger.Debug("offset chunk fetched",
		applogger.String("symbol", req.Symbol),
		applogger.Int("from", req.Offset),
		applogger.Int("returned", len(ticks)),
		applogger.Bool("has_more", resp.Metadata.HasMore))

	return &models.Page{
		Ticks:      ticks,
		Total:      total,
		HasMore:    resp.Metadata.HasMore,
		NextOffset: resp.Metadata.NextFrom,
	}, nil
}
