package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockCast/internal/domain/service"
)

func newBatch(t *testing.T) *BatchUseCase {
	t.Helper()
	return NewBatchUseCase(newPredictor(t, nil), 4, 30*time.Second, testLogger(t))
}

func TestBatchRejectsInvalidInput(t *testing.T) {
	uc := newBatch(t)

	_, err := uc.BatchPredict(context.Background(), []string{"AAPL"}, 0)
	assert.ErrorIs(t, err, service.ErrInvalidHorizon)

	_, err = uc.BatchPredict(context.Background(), nil, 5)
	assert.Error(t, err)
}

func TestBatchCoversEveryTicker(t *testing.T) {
	uc := newBatch(t)
	tickers := []string{"AAPL", "GOOGL", "MSFT"}

	res, err := uc.BatchPredict(context.Background(), tickers, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalTickers)
	assert.NotEmpty(t, res.BatchID)
	require.Len(t, res.Predictions, 3)
	for _, ticker := range tickers {
		p, ok := res.Predictions[ticker]
		require.True(t, ok, "missing result for %s", ticker)
		assert.Equal(t, ticker, p.Ticker)
		assert.Len(t, p.Predictions, 5)
	}
}

func TestBatchTimeoutYieldsFallback(t *testing.T) {
	// a per-ticker timeout in the past forces every prediction to fail fast
	uc := NewBatchUseCase(newPredictor(t, nil), 2, time.Nanosecond, testLogger(t))

	res, err := uc.BatchPredict(context.Background(), []string{"AAPL", "MSFT"}, 5)
	require.NoError(t, err)
	require.Len(t, res.Predictions, 2)
	for _, p := range res.Predictions {
		assert.True(t, p.IsFallback(), "expired ticker must degrade to fallback")
		assert.Len(t, p.Predictions, 5)
	}
}

func TestBatchManyTickersBoundedWorkers(t *testing.T) {
	uc := NewBatchUseCase(newPredictor(t, nil), 3, 30*time.Second, testLogger(t))

	tickers := make([]string, 20)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%02d", i)
	}

	res, err := uc.BatchPredict(context.Background(), tickers, 3)
	require.NoError(t, err)
	assert.Len(t, res.Predictions, 20)
	assert.Equal(t, 20, res.TotalTickers)
}

func TestBatchIDFormat(t *testing.T) {
	uc := newBatch(t)
	uc.WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 14, 30, 45, 0, time.UTC)
	})

	res, err := uc.BatchPredict(context.Background(), []string{"AAPL"}, 2)
	require.NoError(t, err)
	assert.Equal(t, "20240601_143045", res.BatchID)
}
