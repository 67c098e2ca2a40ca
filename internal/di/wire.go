//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"ForexDash/pkg/config"
	"ForexDash/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedis,
		ProvideStores,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideDatasetStore,
		ProvideDatasetLoader,
		ProvideTickSink,
		ProvideTickSource,

		// Use cases
		ProvidePollCache,
		ProvideWindowService,
		ProvideRevealPipeline,
		ProvideRevealCollector,
		ProvideSimulator,
		ProvideRateLimiter,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
