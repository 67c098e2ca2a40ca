package di

import (
	"context"
	"fmt"
	"time"

	"ForexDash/internal/dataset"
	"ForexDash/internal/domain/repository"
	"ForexDash/internal/handler/api"
	mid "ForexDash/internal/middleware"
	"ForexDash/internal/pollcache"
	internalrepo "ForexDash/internal/repository"
	"ForexDash/internal/service/ratelimit"
	"ForexDash/internal/simulator"
	"ForexDash/internal/upstream"
	"ForexDash/internal/usecase"
	"ForexDash/pkg/cache"
	pkgch "ForexDash/pkg/clickhouse"
	"ForexDash/pkg/config"
	xhttp "ForexDash/pkg/http"
	pkgkafka "ForexDash/pkg/kafka"
	applogger "ForexDash/pkg/logger"
	"ForexDash/pkg/metrics"
	"ForexDash/pkg/server"
)

// Stores holds the two cache.Service roles. Both are Redis-backed when Redis is enabled.
type Stores struct {
	Sessions cache.Service
	Datasets cache.Service
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideRedis connects to Redis, or returns nil when it is disabled.
func ProvideRedis(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideStores puts sessions straight on Redis and datasets behind an in-process L1,
// falling back to memory for both without Redis.
func ProvideStores(redis *cache.RedisCache) Stores {
	if redis == nil {
		return Stores{
			Sessions: cache.NewMemoryCache(cache.WithMemoryMaxSize(100_000)),
			Datasets: cache.NewMemoryCache(cache.WithMemoryMaxSize(256)),
		}
	}
	return Stores{
		Sessions: redis,
		Datasets: cache.NewLayeredCache(redis, cache.WithLayeredMemorySize(64), cache.WithLayeredMemoryTTL(5*time.Minute)),
	}
}

// ProvideClickHouseClient creates a ClickHouse client, or returns nil when it is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideDatasetStore creates the ClickHouse dataset table, or returns nil without ClickHouse.
func ProvideDatasetStore(ch *pkgch.Client, l *applogger.Logger) (*internalrepo.CHDatasetStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHDatasetStore(ch.DB(), ch.Database(), l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + ch.Database()}, store.Schema()...)
	if err := ch.InitSchema(ctx, stmts); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideDatasetLoader builds the configured loader behind the dataset cache.
func ProvideDatasetLoader(cfg *config.Config, store *internalrepo.CHDatasetStore, stores Stores, l *applogger.Logger) (*dataset.CachedLoader, error) {
	opts := dataset.Options{
		Source: cfg.Simulator.Source,
		Dir:    cfg.Simulator.DataDir,
		HTTPClient: xhttp.NewClient(
			xhttp.WithBaseURL(cfg.Simulator.GitHubBaseURL),
			xhttp.WithTimeout(cfg.Upstream.Timeout),
		),
	}
	if store != nil {
		opts.ClickHouse = store
	}
	loader, err := dataset.New(opts)
	if err != nil {
		return nil, err
	}
	return dataset.NewCachedLoader(loader, stores.Datasets,
		dataset.WithTTL(cfg.Simulator.DatasetTTL),
		dataset.WithLogger(l),
	), nil
}

// ProvideSimulator creates the dataset simulator.
func ProvideSimulator(cfg *config.Config, loader *dataset.CachedLoader, stores Stores, l *applogger.Logger) *simulator.Simulator {
	return simulator.New(loader, stores.Sessions,
		simulator.WithLogger(l),
		simulator.WithMaxRange(cfg.Simulator.MaxRange),
		simulator.WithSessionTTL(cfg.Simulator.SessionTTL),
		simulator.WithStreamTTL(cfg.Simulator.DatasetTTL),
	)
}

// ProvideRateLimiter creates the per-client limiter for simulator routes.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Simulator.RateLimit.RPS <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Simulator.RateLimit.RPS, cfg.Simulator.RateLimit.Burst)
}

// ProvideTickSource creates the upstream client the windows page through.
func ProvideTickSource(cfg *config.Config, l *applogger.Logger) (repository.TickSource, error) {
	client := xhttp.NewClient(
		xhttp.WithBaseURL(cfg.Upstream.BaseURL),
		xhttp.WithTimeout(cfg.Upstream.Timeout),
	)
	return upstream.New(upstream.Config{
		Mode:      cfg.Upstream.Mode,
		BaseURL:   cfg.Upstream.BaseURL,
		Timeframe: cfg.Upstream.Timeframe,
	}, client, l)
}

// ProvidePollCache creates the windowed poll cache.
func ProvidePollCache(cfg *config.Config, src repository.TickSource, m repository.Metrics, l *applogger.Logger) *pollcache.Cache {
	return pollcache.New(src, pollcache.Config{
		ChunkSize:           cfg.Window.ChunkSize,
		LowWater:            cfg.Window.LowWater,
		VisibleSize:         cfg.Window.VisibleSize,
		TickInterval:        cfg.Window.TickInterval,
		StepInterval:        cfg.Window.StepInterval,
		RequestTimeoutFloor: cfg.Window.RequestTimeoutFloor,
		MaxRetained:         cfg.Window.MaxRetained,
	}, pollcache.WithMetrics(m), pollcache.WithLogger(l))
}

// ProvideWindowService creates the window use case.
func ProvideWindowService(cfg *config.Config, c *pollcache.Cache, l *applogger.Logger) *usecase.WindowService {
	return usecase.NewWindowService(c, l, cfg.Window.Symbols, cfg.Window.MaxWindows)
}

// ProvideKafkaProducer creates a Kafka producer, or returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID("forexdash"),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTickSink publishes to Kafka when a producer exists and logs otherwise.
func ProvideTickSink(cfg *config.Config, producer *pkgkafka.Producer, m repository.Metrics, l *applogger.Logger) repository.TickSink {
	if producer == nil {
		return internalrepo.NewLogTickSink(l)
	}
	return internalrepo.NewKafkaTickSink(producer, cfg.Kafka.Topic, m)
}

// ProvideRevealPipeline buffers revealed ticks towards the sink.
func ProvideRevealPipeline(cfg *config.Config, sink repository.TickSink, m repository.Metrics, l *applogger.Logger) *mid.RevealPipeline {
	return mid.NewRevealPipeline(sink, m,
		mid.WithBufferSize(cfg.Publisher.BufferSize),
		mid.WithBatch(cfg.Publisher.BatchSize, cfg.Publisher.FlushInterval),
		mid.WithRetry(cfg.Publisher.MaxRetries, cfg.Publisher.RetryBackoff),
		mid.WithPipelineLogger(l),
	)
}

// ProvideRevealCollector hooks the pipeline onto cache reveals.
func ProvideRevealCollector(c *pollcache.Cache, pipe *mid.RevealPipeline, l *applogger.Logger) *usecase.RevealCollector {
	return usecase.NewRevealCollector(c, pipe, l)
}

// ProvideHTTPServer registers the window routes, the simulator routes when enabled,
// and a health check per connected backend.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	windows *usecase.WindowService,
	sim *simulator.Simulator,
	limiter *ratelimit.Limiter,
	redis *cache.RedisCache,
	ch *pkgch.Client,
) *xhttp.Server {
	handlers := []xhttp.Handler{api.NewWindowsHandler(l, windows)}
	if cfg.Simulator.Enabled {
		handlers = append(handlers, api.NewSimulatorHandler(l, sim, limiter))
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(true, cfg.Server.CORSOrigins...),
		xhttp.WithMetricsPath(metricsPath),
	}
	if redis != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", redis.Ping))
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	return xhttp.NewServer(l, handlers, opts...)
}

// ProvideApp creates the application and attaches the Kafka error-log collector when configured.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	windows *usecase.WindowService,
	collector *usecase.RevealCollector,
	httpServer *xhttp.Server,
	sink repository.TickSink,
	producer *pkgkafka.Producer,
	stores Stores,
	redis *cache.RedisCache,
	ch *pkgch.Client,
) *server.App {
	if producer != nil && cfg.Log.ErrorTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: 30 * time.Second,
			Topic:        cfg.Log.ErrorTopic,
			Publisher:    producer,
		})
	}

	closers := []server.Closer{{Name: "tick sink", Close: sink.Close}}
	if redis == nil {
		closers = append(closers,
			server.Closer{Name: "session store", Close: stores.Sessions.Close},
			server.Closer{Name: "dataset store", Close: stores.Datasets.Close},
		)
	} else {
		closers = append(closers, server.Closer{Name: "redis", Close: redis.Close})
	}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	return server.New(cfg, l, windows, collector, httpServer, closers...)
}
