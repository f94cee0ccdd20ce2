package service

import (
	"context"

	"StockCast/internal/domain/models"
)

// PricePredictor produces a multi-day forecast for one ticker from its price
// history. Internal failures surface as a fallback result, not an error;
// only invalid input (horizon <= 0) is rejected.
type PricePredictor interface {
	Predict(ctx context.Context, ticker string, series []models.Candle, horizon int) (*models.PredictionResult, error)
}

// BatchPredictor fans a prediction out across tickers. One ticker's failure
// never aborts the batch; the failing ticker carries a fallback result.
type BatchPredictor interface {
	BatchPredict(ctx context.Context, tickers []string, horizon int) (*models.BatchResult, error)
}

// MarketAnalyzer rolls a batch up into a market-wide sentiment summary.
type MarketAnalyzer interface {
	MarketPredictions(ctx context.Context, horizon int) (*models.MarketSummary, error)
}

// ModelExplainer reports the feature importances of a trained model.
type ModelExplainer interface {
	FeatureImportance(ctx context.Context, ticker string) (*models.ImportanceReport, error)
}
