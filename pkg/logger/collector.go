package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated log entries somewhere (Kafka in production).
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // max unique entries before an early flush
	Topic          string
	Publisher      Publisher
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds identical error lines (same level, message, fields and caller)
// into one entry with a counter and publishes the batch periodically.
type LogCollector struct {
	config *CollectionConfig
	logMap map[string]*AggregatedLogEntry
	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		config: config,
		logMap: make(map[string]*AggregatedLogEntry),
		ctx:    ctx,
		cancel: cancel,
	}

	c.wg.Add(1)
	go c.periodicFlush()

	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := c.generateKey(level, message, fields, caller)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, ok := c.logMap[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.logMap) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// Pending returns the number of distinct entries waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.logMap)
}

func (c *LogCollector) generateKey(level, message string, fields map[string]interface{}, caller string) string {
	data, _ := json.Marshal(struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *LogCollector) periodicFlush() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.flushLocked()
			c.mutex.Unlock()
		case <-c.ctx.Done():
			c.mutex.Lock()
			c.flushLocked()
			c.mutex.Unlock()
			return
		}
	}
}

// flushLocked must be called with c.mutex held.
func (c *LogCollector) flushLocked() {
	if len(c.logMap) == 0 || c.config.Publisher == nil {
		return
	}

	logs := make([]AggregatedLogEntry, 0, len(c.logMap))
	for _, entry := range c.logMap {
		logs = append(logs, *entry)
	}
	c.logMap = make(map[string]*AggregatedLogEntry)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, logs); err != nil {
			fmt.Fprintf(os.Stderr, "failed to send aggregated logs: %v\n", err)
		}
	}()
}

func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
