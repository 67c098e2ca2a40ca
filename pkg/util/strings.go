package util

import (
	"strconv"
	"strings"
)

// ParseFloat trims stray whitespace and carriage returns before parsing.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, "\r", "")), 64)
}

// SplitList splits a comma separated list and drops empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
