package models

import "time"

// Tick is one OHLCV sample. Upstream data is expected to satisfy
// Low <= min(Open, Close) and High >= max(Open, Close); nothing here enforces it.
type Tick struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Page is one chunk returned by an upstream source.
type Page struct {
	Ticks []Tick
	// Total is the upstream-reported tick count for the symbol, -1 when unknown.
	Total      int
	HasMore    bool
	NextOffset int
}

// RevealedTick is a tick that the poll cache has just made current for a symbol.
type RevealedTick struct {
	Symbol string `json:"symbol"`
	Tick   Tick   `json:"tick"`
}

// WindowSnapshot is the read-only view of a series window handed to consumers.
type WindowSnapshot struct {
	Symbol           string `json:"symbol"`
	VisibleTicks     []Tick `json:"visibleTicks"`
	CurrentTick      *Tick  `json:"currentTick,omitempty"`
	IsLoading        bool   `json:"isLoading"`
	Error            string `json:"error,omitempty"`
	HasMore          bool   `json:"hasMore"`
	CountdownSeconds int    `json:"countdownSeconds"`
	Cursor           int    `json:"cursor"`
	Buffered         int    `json:"buffered"`
	TotalAvailable   int    `json:"totalAvailable"`
	Exhausted        bool   `json:"exhausted"`
}
