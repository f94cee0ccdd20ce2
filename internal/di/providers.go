package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"StockCast/internal/domain/repository"
	"StockCast/internal/handler/api"
	internalrepo "StockCast/internal/repository"
	"StockCast/internal/scheduler"
	svccache "StockCast/internal/service/cache"
	"StockCast/internal/services/features"
	"StockCast/internal/services/forest"
	"StockCast/internal/services/modelstore"
	"StockCast/internal/usecase"
	pkgcache "StockCast/pkg/cache"
	pkgch "StockCast/pkg/clickhouse"
	"StockCast/pkg/config"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/metrics"
	"StockCast/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Logger.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Logger.Format
	if format == "" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// candle store is disabled (predictions then run on synthetic history).
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
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.CandlesSchema); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvidePriceHistory creates the candle store repository. Nil when
// ClickHouse is disabled; SeriesProvider degrades to synthetic series.
func ProvidePriceHistory(chClient *pkgch.Client, l *applogger.Logger) repository.PriceHistory {
	if chClient == nil {
		return nil
	}
	ph := internalrepo.NewCHPriceHistory(chClient)
	ph.SetLogger(l)
	return ph
}

// ProvideBlobStore creates the on-disk model artifact store.
func ProvideBlobStore(cfg *config.Config) (repository.ModelBlobStore, error) {
	store, err := internalrepo.NewFileBlobStore(cfg.Models.Dir)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	return store, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCacheBackend picks the prediction cache backend: layered
// memory+Redis when Redis is configured, bounded in-memory otherwise.
func ProvideCacheBackend(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}

	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}

	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvidePredictionCache wraps the backend with the typed prediction facade.
func ProvidePredictionCache(backend pkgcache.Service, cfg *config.Config, l *applogger.Logger) *svccache.PredictionCache {
	return svccache.NewPredictionCache(backend, cfg.Prediction.CacheTTL, l)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when publishing
// is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvidePublisher creates the prediction event publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.PredictionsTopic, cfg.Kafka.MarketTopic)
}

// ProvideRecorder creates the SQLite prediction audit log.
func ProvideRecorder(cfg *config.Config, l *applogger.Logger) (repository.Recorder, error) {
	if !cfg.Recorder.Enabled {
		return nil, nil
	}
	rec, err := internalrepo.NewSQLiteRecorder(cfg.Recorder.Path, l)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	return rec, nil
}

// ProvideEngineer creates the feature engineering pipeline.
func ProvideEngineer() *features.Engineer {
	return features.NewEngineer()
}

// ProvideModelStore creates the per-ticker model lifecycle manager.
func ProvideModelStore(
	eng *features.Engineer,
	blobs repository.ModelBlobStore,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *modelstore.Store {
	fc := forest.Config{
		Trees:    cfg.Models.Forest.Trees,
		MaxDepth: cfg.Models.Forest.MaxDepth,
		MinLeaf:  cfg.Models.Forest.MinLeafSize,
		Seed:     cfg.Models.Seed,
	}
	return modelstore.NewStore(eng, blobs, m, fc, l)
}

// ProvideSeriesProvider creates the history loader with synthetic fallback.
func ProvideSeriesProvider(ph repository.PriceHistory, cfg *config.Config, l *applogger.Logger) *usecase.SeriesProvider {
	return usecase.NewSeriesProvider(ph, cfg.Prediction.Lookback, l)
}

// ProvidePredictUseCase creates the single-ticker prediction use case.
func ProvidePredictUseCase(
	series *usecase.SeriesProvider,
	store *modelstore.Store,
	eng *features.Engineer,
	cache *svccache.PredictionCache,
	pub repository.Publisher,
	rec repository.Recorder,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.PredictUseCase {
	return usecase.NewPredictUseCase(series, store, eng, cache, pub, rec, m, cfg.Models.Seed, l)
}

// ProvideBatchUseCase creates the bounded-concurrency batch use case.
func ProvideBatchUseCase(predictor *usecase.PredictUseCase, cfg *config.Config, l *applogger.Logger) *usecase.BatchUseCase {
	return usecase.NewBatchUseCase(predictor, cfg.Prediction.BatchWorkers, cfg.Prediction.TickerTimeout, l)
}

// ProvideMarketUseCase creates the watchlist sentiment aggregator.
func ProvideMarketUseCase(
	batch *usecase.BatchUseCase,
	rec repository.Recorder,
	pub repository.Publisher,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.MarketUseCase {
	return usecase.NewMarketUseCase(batch, cfg.Watchlist, rec, pub, l)
}

// ProvideImportanceUseCase creates the feature importance reporter.
func ProvideImportanceUseCase(store *modelstore.Store) *usecase.ImportanceUseCase {
	return usecase.NewImportanceUseCase(store)
}

// ProvideTrainUseCase creates the explicit retraining use case.
func ProvideTrainUseCase(series *usecase.SeriesProvider, store *modelstore.Store) *usecase.TrainUseCase {
	return usecase.NewTrainUseCase(series, store)
}

// ProvideHandler creates the Echo HTTP handler.
func ProvideHandler(
	l *applogger.Logger,
	predictor *usecase.PredictUseCase,
	batch *usecase.BatchUseCase,
	market *usecase.MarketUseCase,
	importance *usecase.ImportanceUseCase,
	train *usecase.TrainUseCase,
	ph repository.PriceHistory,
) *api.PredictionsHandler {
	h := api.NewPredictionsHandler(l, predictor, batch, market, importance, train)
	if ph != nil {
		h.SetHistory(ph)
	}
	return h
}

// ProvideScheduler creates the cron-driven prewarm/retrain scheduler.
func ProvideScheduler(
	market *usecase.MarketUseCase,
	train *usecase.TrainUseCase,
	cfg *config.Config,
	l *applogger.Logger,
) *scheduler.Scheduler {
	sc := scheduler.Config{
		PrewarmCron: cfg.Scheduler.PrewarmCron,
		RetrainCron: cfg.Scheduler.RetrainCron,
		Horizon:     cfg.Scheduler.Horizon,
		JobTimeout:  cfg.Scheduler.JobTimeout,
	}
	return scheduler.New(market, train, cfg.Watchlist, sc, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.PredictionsHandler,
	sched *scheduler.Scheduler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	rec repository.Recorder,
) *server.App {
	return server.New(cfg, l, handler, sched, chClient, producer, rec)
}
