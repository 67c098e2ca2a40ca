package simulator

import "errors"

var (
	// ErrInvalidRange is returned for negative, empty or oversized offset ranges.
	ErrInvalidRange = errors.New("invalid range")
	// ErrInvalidInterval is returned for intervals other than 1m, 5m, 15m and 1hr.
	ErrInvalidInterval = errors.New("invalid interval")
)

// OHLCV is one candle in offset responses.
type OHLCV struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type RangeMetadata struct {
	HasMore        bool `json:"hasMore"`
	TotalAvailable int  `json:"totalAvailable"`
	NextFrom       int  `json:"nextFrom"`
}

// RangeResult is the body of GET /api/forex-ohlcv/:pair/:timeframe.
type RangeResult struct {
	Success   bool          `json:"success"`
	Pair      string        `json:"pair"`
	Timeframe string        `json:"timeframe"`
	Data      []OHLCV       `json:"data"`
	Total     int           `json:"total"`
	Returned  int           `json:"returned"`
	Metadata  RangeMetadata `json:"metadata"`
}

// Candle is the capitalised row shape the CSV datasets use.
type Candle struct {
	Date   string  `json:"Date"`
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"`
	Volume float64 `json:"Volume"`
}

// CursorResult is the body of GET /technical/simulate/live/single.
type CursorResult struct {
	Pair      string  `json:"pair"`
	Interval  string  `json:"interval"`
	Date      string  `json:"date"`
	TotalRows int     `json:"total_rows"`
	Returned  int     `json:"returned"`
	HasMore   bool    `json:"has_more"`
	Cursor    string  `json:"cursor"`
	Data      *Candle `json:"data"`
}

// StreamResult is the body of GET /api/forex/ohlcv.
type StreamResult struct {
	Message   string  `json:"message"`
	Timestamp string  `json:"timestamp"`
	Data      *Candle `json:"data,omitempty"`
	Exhausted bool    `json:"exhausted"`
}
