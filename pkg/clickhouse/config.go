package clickhouse

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig is the connection setup for the ohlcv dataset database.
type ClientConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	// UseHTTP switches from the native protocol (9000) to HTTP (8123).
	UseHTTP     bool
	MaxExecTime time.Duration
}

func WithHost(host string) ClientOption {
	return func(c *ClientConfig) { c.Host = host }
}

func WithPort(port int) ClientOption {
	return func(c *ClientConfig) { c.Port = port }
}

func WithDatabase(database string) ClientOption {
	return func(c *ClientConfig) { c.Database = database }
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) { c.User, c.Password = user, password }
}

// WithMaxConnections bounds the database/sql pool.
func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) { c.MaxOpenConns, c.MaxIdleConns = maxOpen, maxIdle }
}

// WithTimeouts sets the dial and read timeouts; zero keeps the driver default.
func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *ClientConfig) { c.DialTimeout, c.ReadTimeout = dial, read }
}

func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = useHTTP }
}

// WithMaxExecutionTime caps a single dataset query server side.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}
