package pollcache

import "time"

// Config tunes a Cache. Zero values fall back to the defaults below.
type Config struct {
	// ChunkSize is the number of ticks requested per fetch.
	ChunkSize int
	// LowWater triggers a pre-fetch once fewer ticks than this remain after the cursor.
	LowWater int
	// VisibleSize is the length of the visible window ending at the cursor.
	VisibleSize int
	// TickInterval is the period of the central clock.
	TickInterval time.Duration
	// StepInterval is how often the cursor moves; it is rounded to whole clock ticks.
	StepInterval time.Duration
	// RequestTimeoutFloor is the lower bound of the per-request timeout.
	RequestTimeoutFloor time.Duration
	// MaxRetained caps the buffer length, 0 keeps everything.
	MaxRetained int
}

const (
	DefaultChunkSize           = 200
	DefaultLowWater            = 50
	DefaultVisibleSize         = 100
	DefaultTickInterval        = time.Second
	DefaultRequestTimeoutFloor = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.LowWater < 0 {
		c.LowWater = 0
	} else if c.LowWater == 0 {
		c.LowWater = DefaultLowWater
	}
	if c.VisibleSize <= 0 {
		c.VisibleSize = DefaultVisibleSize
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.StepInterval < c.TickInterval {
		c.StepInterval = c.TickInterval
	}
	if c.RequestTimeoutFloor <= 0 {
		c.RequestTimeoutFloor = DefaultRequestTimeoutFloor
	}
	if c.MaxRetained < 0 {
		c.MaxRetained = 0
	}
	return c
}

// stepTicks is the countdown start value in clock ticks.
func (c Config) stepTicks() int {
	n := int(c.StepInterval / c.TickInterval)
	if n < 1 {
		return 1
	}
	return n
}

// requestTimeout bounds each fetch by the step interval, never below the floor.
func (c Config) requestTimeout() time.Duration {
	if c.StepInterval > c.RequestTimeoutFloor {
		return c.StepInterval
	}
	return c.RequestTimeoutFloor
}
