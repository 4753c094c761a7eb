//go:build wireinject
// +build wireinject

package di

import (
	"EconCast/pkg/config"
	"EconCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,
		ProvideCache,
		ProvideWarmupQueue,

		// Repositories
		ProvideSeriesStorage,
		ProvideSeriesPublisher,
		ProvideModelCache,
		ProvideSeriesSource,

		// Engines
		ProvideForecastConfig,
		ProvideForecastEngine,
		ProvideAlertsEngine,

		// Use cases
		ProvideForecastUseCase,
		ProvideModelWarmup,
		ProvideSeriesProcessor,
		ProvideSeriesCollector,
		ProvideKafkaObservationsHandler,
		ProvideAlertsUseCase,
		ProvideSeriesUseCase,

		// HTTP
		ProvideLimiter,
		ProvideRouter,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
