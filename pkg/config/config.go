package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"ForexDash/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
		// ErrorTopic enables the Kafka error-log collector when Kafka is enabled.
		ErrorTopic string `yaml:"error_topic"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Upstream struct {
		Mode      string        `yaml:"mode" default:"offset"`
		BaseURL   string        `yaml:"base_url" default:"http://localhost:8080"`
		Timeframe string        `yaml:"timeframe" default:"1m"`
		Timeout   time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"upstream"`
	Window struct {
		ChunkSize           int           `yaml:"chunk_size" default:"200"`
		LowWater            int           `yaml:"low_water" default:"50"`
		VisibleSize         int           `yaml:"visible_size" default:"100"`
		TickInterval        time.Duration `yaml:"tick_interval" default:"1s"`
		StepInterval        time.Duration `yaml:"step_interval" default:"1s"`
		RequestTimeoutFloor time.Duration `yaml:"request_timeout_floor" default:"10s"`
		MaxRetained         int           `yaml:"max_retained"`
		// MaxWindows caps concurrent subscriptions, 0 means no cap.
		MaxWindows int `yaml:"max_windows" default:"32"`
		// Symbols are subscribed at startup.
		Symbols []string `yaml:"symbols"`
	} `yaml:"window"`
	Simulator struct {
		Enabled bool `yaml:"enabled" default:"true"`
		// Source is one of csv, parquet, github, clickhouse.
		Source        string        `yaml:"source" default:"csv"`
		DataDir       string        `yaml:"data_dir" default:"data"`
		GitHubBaseURL string        `yaml:"github_base_url" default:"https://robinspt1999.github.io/forex-pair"`
		DatasetTTL    time.Duration `yaml:"dataset_ttl" default:"30m"`
		MaxRange      int           `yaml:"max_range" default:"1000"`
		SessionTTL    time.Duration `yaml:"session_ttl" default:"1h"`
		RateLimit     struct {
			RPS   float64 `yaml:"rps" default:"20"`
			Burst int     `yaml:"burst" default:"40"`
		} `yaml:"rate_limit"`
	} `yaml:"simulator"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"forexdash"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"forex.ticks"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	Publisher struct {
		BufferSize    int           `yaml:"buffer_size" default:"1024"`
		BatchSize     int           `yaml:"batch_size" default:"50"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"500ms"`
		MaxRetries    int           `yaml:"max_retries" default:"3"`
		RetryBackoff  time.Duration `yaml:"retry_backoff" default:"200ms"`
	} `yaml:"publisher"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"forex"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
}

// Load reads a YAML configuration file on top of the `default` tag values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, decodes YAML bytes over them and validates.
// Defaults go first so an explicit false or 0 in the file survives.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("UPSTREAM_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := getenv("UPSTREAM_MODE"); v != "" {
		c.Upstream.Mode = v
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.Window.Symbols = util.SplitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Upstream.Mode {
	case "offset", "cursor":
	default:
		return fmt.Errorf("upstream.mode must be 'offset' or 'cursor', got '%s'", c.Upstream.Mode)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Window.ChunkSize <= 0 {
		return fmt.Errorf("window.chunk_size must be positive")
	}
	if c.Window.LowWater < 0 {
		return fmt.Errorf("window.low_water cannot be negative")
	}
	if c.Window.VisibleSize <= 0 {
		return fmt.Errorf("window.visible_size must be positive")
	}
	if c.Window.TickInterval <= 0 {
		return fmt.Errorf("window.tick_interval must be positive")
	}
	if c.Window.MaxRetained > 0 && c.Window.MaxRetained < c.Window.VisibleSize {
		return fmt.Errorf("window.max_retained (%d) must be at least window.visible_size (%d)",
			c.Window.MaxRetained, c.Window.VisibleSize)
	}
	if c.Simulator.Enabled {
		switch c.Simulator.Source {
		case "csv", "parquet", "github":
		case "clickhouse":
			if !c.ClickHouse.Enabled {
				return fmt.Errorf("simulator.source 'clickhouse' requires clickhouse.enabled")
			}
		default:
			return fmt.Errorf("simulator.source must be csv, parquet, github or clickhouse, got '%s'", c.Simulator.Source)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
