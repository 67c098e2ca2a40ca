package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) all() []AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []AggregatedLogEntry
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestCollectorFoldsDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "logs",
		Publisher:      pub,
	})

	fields := map[string]interface{}{"symbol": "EURUSD"}
	c.AddLog("error", "fetch failed", fields, "a.go:1")
	c.AddLog("error", "fetch failed", fields, "a.go:1")
	c.AddLog("error", "other", nil, "b.go:2")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	entries := pub.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "logs", pub.topic)
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 2, counts["fetch failed"])
	assert.Equal(t, 1, counts["other"])
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "one", nil, "x")
	c.AddLog("error", "two", nil, "x")

	require.Eventually(t, func() bool { return len(pub.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.Pending())
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})

	l.Error("upstream down", String("symbol", "GBPUSD"), Error(errors.New("boom")))
	l.Warn("not collected")
	l.RemoveCollector()

	entries := pub.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "upstream down", entries[0].Message)
	assert.Equal(t, "GBPUSD", entries[0].Fields["symbol"])
	assert.Equal(t, "boom", entries[0].Fields["error"])
}
