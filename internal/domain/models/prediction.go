package models

import "time"

// Trend labels for a per-ticker forecast. A real forecast is never neutral:
// the sign of the summed daily returns decides bullish vs bearish. Neutral is
// reserved for fallback results and the market-wide majority vote.
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// FallbackNote marks a placeholder result produced when no model could be
// trained or loaded. Downstream consumers key off this field.
const FallbackNote = "Fallback prediction - ML model unavailable"

// Candle represents one OHLCV record of a ticker's price history.
type Candle struct {
	Bucket time.Time `json:"date"`
	Ticker string    `json:"ticker"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// DayForecast is a single step of the multi-day price path.
type DayForecast struct {
	Day            int     `json:"day"`
	PredictedPrice float64 `json:"predicted_price"`
	PriceChangePct float64 `json:"price_change_pct"`
	Confidence     float64 `json:"confidence"`
}

// PredictionResult is the forecast for one ticker over a horizon.
// PredictedPrice at day i is CurrentPrice compounded by the daily returns
// through day i; OverallTrend is bullish iff the returns sum is positive.
type PredictionResult struct {
	Ticker        string        `json:"ticker"`
	CurrentPrice  float64       `json:"current_price"`
	Predictions   []DayForecast `json:"predictions"`
	OverallTrend  string        `json:"overall_trend"`
	AvgConfidence float64       `json:"avg_confidence"`
	RiskScore     float64       `json:"risk_score"`
	Timestamp     time.Time     `json:"timestamp"`
	Note          string        `json:"note,omitempty"`
}

// IsFallback reports whether the result is a placeholder rather than a real
// model forecast.
func (r *PredictionResult) IsFallback() bool { return r.Note != "" }

// BatchResult is the envelope returned by a batch prediction run.
type BatchResult struct {
	BatchID      string                       `json:"batch_id"`
	Predictions  map[string]*PredictionResult `json:"predictions"`
	TotalTickers int                          `json:"total_tickers"`
	Timestamp    time.Time                    `json:"timestamp"`
}

// MarketSummary aggregates a batch into a market-wide sentiment view.
// BullishStocks + BearishStocks + NeutralStocks always equals the number of
// tickers in the batch.
type MarketSummary struct {
	MarketSentiment string                       `json:"market_sentiment"`
	BullishStocks   int                          `json:"bullish_stocks"`
	BearishStocks   int                          `json:"bearish_stocks"`
	NeutralStocks   int                          `json:"neutral_stocks"`
	AvgConfidence   float64                      `json:"avg_confidence"`
	AvgRiskScore    float64                      `json:"avg_risk_score"`
	TopPredictions  map[string]*PredictionResult `json:"top_predictions"`
	Recommendations []string                     `json:"recommendations"`
	Timestamp       time.Time                    `json:"timestamp"`
}

// FeatureRank is one entry of a feature-importance report.
type FeatureRank struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Rank       int     `json:"rank"`
}

// ImportanceReport explains which features drive a ticker's trained model.
type ImportanceReport struct {
	Ticker    string        `json:"ticker"`
	Features  []FeatureRank `json:"features"`
	ModelType string        `json:"model_type"`
	Timestamp time.Time     `json:"timestamp"`
}

// TrainingReport captures held-out evaluation of a freshly trained model.
// The metrics are informational only; they never gate model acceptance.
type TrainingReport struct {
	Ticker    string    `json:"ticker"`
	Rows      int       `json:"rows"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	MSE       float64   `json:"mse"`
	R2        float64   `json:"r2"`
	TrainedAt time.Time `json:"trained_at"`
}
