package repository

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
)

// PriceHistory yields chronological OHLCV history for a ticker. The series is
// owned by the caller of the prediction engine; implementations must return
// candles in ascending time order.
type PriceHistory interface {
	GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, ticker string, n int) ([]models.Candle, error)
	Health(ctx context.Context) error
}

// ModelBlobStore persists trained model artifacts as opaque named blobs.
// Exactly two blobs exist per ticker (model, scaler); contents round-trip
// byte for byte.
type ModelBlobStore interface {
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
	Exists(name string) bool
}

// Recorder appends finished predictions to an audit log for later analysis.
// Recording failures are logged and swallowed; they never fail a prediction.
type Recorder interface {
	RecordPrediction(ctx context.Context, r *models.PredictionResult) error
	RecordMarketSummary(ctx context.Context, s *models.MarketSummary) error
	Close() error
}

// Publisher emits prediction events to downstream consumers.
type Publisher interface {
	PublishPrediction(ctx context.Context, r *models.PredictionResult) error
	PublishMarketSummary(ctx context.Context, s *models.MarketSummary) error
	Close() error
}

// Metrics records operational measurements for the prediction engine.
type Metrics interface {
	RecordPrediction(ticker, outcome string)
	RecordTraining(ticker string, mse, r2 float64)
	RecordCache(result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
