package repository

import "errors"

var (
	// ErrMalformed marks an upstream response that cannot be parsed or fails validation.
	// Polling does not retry it until the window is refreshed or reset.
	ErrMalformed = errors.New("malformed upstream response")
	// ErrNotFound marks a pair/timeframe the source has no data for.
	ErrNotFound = errors.New("series not found")
)
