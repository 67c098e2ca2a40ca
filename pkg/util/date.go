package util

import (
	"strconv"
	"strings"
	"time"
)

// Layouts accepted for tick timestamps, tried in order after RFC3339.
var tickLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006.01.02 15:04",
	"2006-01-02",
}

// ParseTime tries RFC3339, RFC3339Nano, the common CSV layouts and unix
// seconds or milliseconds. Layouts without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range tickLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		// anything past year 5138 in seconds is really milliseconds
		if ts > 1e11 {
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// FormatMinute renders t the way the CSV datasets write it.
func FormatMinute(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
