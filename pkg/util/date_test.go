package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeCSVLayouts(t *testing.T) {
	want := time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-01 14:05", "2024-03-01 14:05:00", "2024-03-01T14:05", " 2024.03.01 14:05 "} {
		got, ok := ParseTime(s)
		require.True(t, ok, s)
		assert.True(t, want.Equal(got), "%s parsed as %s", s, got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(ts.Unix(), 10))
	require.True(t, ok)
	assert.Equal(t, ts.Unix(), got.Unix())

	got, ok = ParseTime(strconv.FormatInt(ts.UnixMilli(), 10))
	require.True(t, ok)
	assert.True(t, ts.Equal(got))
}

func TestParseFloatAndSplitList(t *testing.T) {
	v, err := ParseFloat(" 1.08345\r")
	require.NoError(t, err)
	assert.InDelta(t, 1.08345, v, 1e-9)

	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, SplitList("EURUSD, ,GBPUSD,"))
	assert.Nil(t, SplitList(""))
}
