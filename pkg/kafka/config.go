package kafka

import "time"

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds the writer settings for revealed-tick and error-log topics.
type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	BatchSize    int
	BatchTimeout time.Duration
	Async        bool
	// HashByKey keeps every message for one symbol on one partition.
	HashByKey bool

	writer messageWriter
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

func WithClientID(id string) ProducerOption {
	return func(c *ProducerConfig) { c.ClientID = id }
}

// WithCompression takes one of gzip, snappy, lz4, zstd or none.
func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = compression }
}

// WithRequiredAcks sets the acknowledgement level, -1 meaning all replicas.
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) { c.RequiredAcks = acks }
}

func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) { c.MaxAttempts = n }
}

// WithBatching sets how many messages are grouped and how long the writer lingers.
func WithBatching(size int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) { c.BatchSize, c.BatchTimeout = size, linger }
}

func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(c *ProducerConfig) { c.WriteTimeout = d }
}

func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = hash }
}

func withWriter(w messageWriter) ProducerOption {
	return func(c *ProducerConfig) { c.writer = w }
}
