package repository

import "time"

// Interval is a simulator candle resolution.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1hr Interval = "1hr"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval1hr: time.Hour,
}

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	_, ok := intervalDurations[iv]
	return ok
}

// DefaultInterval returns the default interval.
func DefaultInterval() Interval { return Interval1m }

// NormalizeInterval converts raw string to a valid interval (or default).
func NormalizeInterval(s string) Interval {
	iv := Interval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// Duration returns the wall-clock length of the interval, one minute when unknown.
func (iv Interval) Duration() time.Duration {
	if d, ok := intervalDurations[iv]; ok {
		return d
	}
	return time.Minute
}
