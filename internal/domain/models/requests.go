package models

// Requests for the simulator HTTP endpoints, bound by Echo and checked by the validator.

type RangeRequest struct {
	Pair      string `param:"pair" validate:"required,pair"`
	Timeframe string `param:"timeframe" validate:"required"`
	FromLimit int    `query:"from_limit" default:"0" validate:"gte=0"`
	ToLimit   int    `query:"to_limit" default:"200" validate:"gtfield=FromLimit"`
}

type CursorRequest struct {
	Pair     string `query:"pair" default:"eurusd" validate:"required,pair"`
	Interval string `query:"interval" default:"1m" validate:"oneof=1m 5m 15m 1hr"`
	Cursor   string `query:"cursor"`
	Reset    bool   `query:"reset"`
}

type StreamRequest struct {
	Pair     string `query:"pair" default:"EURUSD" validate:"required,pair"`
	Interval string `query:"interval" default:"1m" validate:"oneof=1m 5m 15m 1hr"`
	Reset    bool   `query:"reset"`
}

type SymbolRequest struct {
	Symbol string `param:"symbol" validate:"required,pair"`
}
