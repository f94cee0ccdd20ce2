package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockCast/internal/domain/models"
	applogger "StockCast/pkg/logger"
)

func testRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "audit.db"), l)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordPrediction(t *testing.T) {
	r := testRecorder(t)

	res := &models.PredictionResult{
		Ticker:       "AAPL",
		CurrentPrice: 187.5,
		Predictions: []models.DayForecast{
			{Day: 1, PredictedPrice: 189.1, PriceChangePct: 0.85, Confidence: 0.62},
			{Day: 2, PredictedPrice: 190.4, PriceChangePct: 0.69, Confidence: 0.62},
		},
		OverallTrend:  models.TrendBullish,
		AvgConfidence: 0.62,
		RiskScore:     31.0,
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, r.RecordPrediction(context.Background(), res))

	var ticker, trend, payload string
	var horizon, fallback int
	err := r.db.QueryRow(
		`SELECT ticker, overall_trend, horizon, fallback, payload FROM predictions`,
	).Scan(&ticker, &trend, &horizon, &fallback, &payload)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", ticker)
	assert.Equal(t, models.TrendBullish, trend)
	assert.Equal(t, 2, horizon)
	assert.Equal(t, 0, fallback)
	assert.Contains(t, payload, `"predicted_price":189.1`)
}

func TestRecordFallbackFlag(t *testing.T) {
	r := testRecorder(t)

	res := &models.PredictionResult{
		Ticker:    "NEW",
		Timestamp: time.Now().UTC(),
		Note:      models.FallbackNote,
	}
	require.NoError(t, r.RecordPrediction(context.Background(), res))

	var fallback int
	require.NoError(t, r.db.QueryRow(`SELECT fallback FROM predictions`).Scan(&fallback))
	assert.Equal(t, 1, fallback)
}

func TestRecordMarketSummary(t *testing.T) {
	r := testRecorder(t)

	sum := &models.MarketSummary{
		MarketSentiment: models.TrendBearish,
		BullishStocks:   1,
		BearishStocks:   4,
		NeutralStocks:   1,
		AvgConfidence:   0.55,
		AvgRiskScore:    72.0,
		Recommendations: []string{"Strong bearish signals - consider defensive positioning"},
		Timestamp:       time.Now().UTC(),
	}
	require.NoError(t, r.RecordMarketSummary(context.Background(), sum))

	var sentiment string
	var bullish, bearish, neutral int
	err := r.db.QueryRow(
		`SELECT market_sentiment, bullish_stocks, bearish_stocks, neutral_stocks FROM market_summaries`,
	).Scan(&sentiment, &bullish, &bearish, &neutral)
	require.NoError(t, err)
	assert.Equal(t, models.TrendBearish, sentiment)
	assert.Equal(t, 6, bullish+bearish+neutral)
}
