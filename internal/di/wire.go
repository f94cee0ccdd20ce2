//go:build wireinject
// +build wireinject

package di

import (
	"StockCast/pkg/config"
	"StockCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvidePriceHistory,
		ProvideBlobStore,
		ProvidePublisher,
		ProvideRecorder,
		ProvideCacheBackend,
		ProvidePredictionCache,

		// Model pipeline
		ProvideEngineer,
		ProvideModelStore,
		ProvideSeriesProvider,

		// Use cases
		ProvidePredictUseCase,
		ProvideBatchUseCase,
		ProvideMarketUseCase,
		ProvideImportanceUseCase,
		ProvideTrainUseCase,

		// Edge
		ProvideHandler,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
