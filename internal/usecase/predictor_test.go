package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/service"
	svccache "StockCast/internal/service/cache"
	"StockCast/internal/services/features"
	"StockCast/internal/services/forest"
	"StockCast/internal/services/modelstore"
	pkgcache "StockCast/pkg/cache"
	"StockCast/pkg/logger"
)

// --- shared fixtures ---

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{data: make(map[string][]byte)} }

func (m *memBlobs) Put(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobs) Get(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[name], nil
}

func (m *memBlobs) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[name]
	return ok
}

type stubMetrics struct {
	mu       sync.Mutex
	hits     int
	misses   int
	outcomes map[string]int
	errors   map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{outcomes: make(map[string]int), errors: make(map[string]int)}
}

func (s *stubMetrics) RecordPrediction(_, outcome string) {
	s.mu.Lock()
	s.outcomes[outcome]++
	s.mu.Unlock()
}
func (s *stubMetrics) RecordTraining(string, float64, float64) {}
func (s *stubMetrics) RecordCache(result string) {
	s.mu.Lock()
	if result == "hit" {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()
}
func (s *stubMetrics) RecordError(kind string) {
	s.mu.Lock()
	s.errors[kind]++
	s.mu.Unlock()
}
func (s *stubMetrics) RecordLatency(string, float64) {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

// driftSeries produces a steadily rising price path: every daily return is
// strictly positive, so a model fit on it must forecast upward.
func driftSeries(n int) []models.Candle {
	out := make([]models.Candle, n)
	price := 100.0
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price *= 1 + 0.001 + 0.002*math.Abs(math.Sin(float64(i)))
		out[i] = models.Candle{Bucket: day.AddDate(0, 0, i), Ticker: "UP", Close: price, Volume: 1e6}
	}
	return out
}

func newPredictor(t *testing.T, metrics *stubMetrics) *PredictUseCase {
	t.Helper()
	log := testLogger(t)
	cfg := forest.Config{Trees: 10, MaxDepth: 5, MinLeaf: 1, Seed: 42}
	store := modelstore.NewStore(features.NewEngineer(), newMemBlobs(), nil, cfg, log)
	cache := svccache.NewPredictionCache(pkgcache.NewMemoryCache(), time.Hour, log)
	series := NewSeriesProvider(nil, 366, log)

	uc := NewPredictUseCase(series, store, features.NewEngineer(), cache, nil, nil, nil, 42, log)
	if metrics != nil {
		uc.metrics = metrics
	}
	return uc
}

// --- tests ---

func TestPredictRejectsInvalidHorizon(t *testing.T) {
	uc := newPredictor(t, nil)
	for _, h := range []int{0, -1, -30} {
		_, err := uc.Predict(context.Background(), "AAPL", driftSeries(100), h)
		assert.ErrorIs(t, err, service.ErrInvalidHorizon)
		_, err = uc.GetPrediction(context.Background(), "AAPL", h)
		assert.ErrorIs(t, err, service.ErrInvalidHorizon)
	}
}

func TestPredictUpwardDriftIsBullish(t *testing.T) {
	uc := newPredictor(t, nil)
	series := driftSeries(300)

	res, err := uc.Predict(context.Background(), "UP", series, 5)
	require.NoError(t, err)
	require.False(t, res.IsFallback(), "a 300-row series must train a real model")

	assert.Equal(t, "UP", res.Ticker)
	assert.Equal(t, models.TrendBullish, res.OverallTrend)
	assert.InDelta(t, series[len(series)-1].Close, res.CurrentPrice, 1e-9)
	require.Len(t, res.Predictions, 5)

	price := res.CurrentPrice
	for i, day := range res.Predictions {
		assert.Equal(t, i+1, day.Day)
		assert.GreaterOrEqual(t, day.Confidence, 0.3)
		assert.LessOrEqual(t, day.Confidence, 0.95)
		// the path compounds daily: price[i] = price[i-1] * (1 + pct/100)
		price *= 1 + day.PriceChangePct/100
		assert.InDelta(t, price, day.PredictedPrice, 1e-6)
	}

	assert.GreaterOrEqual(t, res.RiskScore, 0.0)
	assert.LessOrEqual(t, res.RiskScore, 100.0)
	assert.GreaterOrEqual(t, res.AvgConfidence, 0.3)
	assert.LessOrEqual(t, res.AvgConfidence, 0.95)
}

func TestPredictShortHistoryFallsBack(t *testing.T) {
	metrics := newStubMetrics()
	uc := newPredictor(t, metrics)

	res, err := uc.Predict(context.Background(), "NEW", driftSeries(10), 7)
	require.NoError(t, err, "internal failures must not surface as errors")
	require.True(t, res.IsFallback())

	// the degraded path shows up on the error counter, not just in the logs
	assert.Equal(t, 1, metrics.errors["model_unavailable"])

	assert.Equal(t, models.FallbackNote, res.Note)
	assert.Equal(t, 100.0, res.CurrentPrice)
	assert.Equal(t, models.TrendNeutral, res.OverallTrend)
	assert.Equal(t, 0.4, res.AvgConfidence)
	assert.Equal(t, 60.0, res.RiskScore)
	require.Len(t, res.Predictions, 7, "fallback spans the requested horizon")
	for i, day := range res.Predictions {
		assert.Equal(t, i+1, day.Day)
		assert.Equal(t, 0.4, day.Confidence)
	}
}

func TestFallbackIsDeterministicPerTicker(t *testing.T) {
	uc := newPredictor(t, nil)
	a := uc.fallback("TSLA", 5)
	b := uc.fallback("TSLA", 5)
	c := uc.fallback("AAPL", 5)

	assert.Equal(t, a.Predictions, b.Predictions)
	assert.NotEqual(t, a.Predictions, c.Predictions)
}

func TestPredictCachesPerHourBucket(t *testing.T) {
	metrics := newStubMetrics()
	uc := newPredictor(t, metrics)

	at := time.Date(2024, 6, 1, 14, 5, 0, 0, time.UTC)
	uc.WithClock(func() time.Time { return at })
	series := driftSeries(300)

	first, err := uc.Predict(context.Background(), "UP", series, 5)
	require.NoError(t, err)
	second, err := uc.Predict(context.Background(), "UP", series, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 1, metrics.misses)

	// same hour, different horizon: separate key
	_, err = uc.Predict(context.Background(), "UP", series, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 2, metrics.misses)

	// next hour: the bucket rolls over
	at = at.Add(time.Hour)
	_, err = uc.Predict(context.Background(), "UP", series, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 3, metrics.misses)
}

func TestFallbackResultsAreNotCached(t *testing.T) {
	metrics := newStubMetrics()
	uc := newPredictor(t, metrics)
	uc.WithClock(func() time.Time { return time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC) })

	short := driftSeries(10)
	_, err := uc.Predict(context.Background(), "NEW", short, 5)
	require.NoError(t, err)
	_, err = uc.Predict(context.Background(), "NEW", short, 5)
	require.NoError(t, err)

	assert.Equal(t, 0, metrics.hits)
	assert.Equal(t, 2, metrics.misses)
	assert.Equal(t, 2, metrics.outcomes["fallback"])
}

func TestConfidenceScoreBounds(t *testing.T) {
	imp := []float64{0.5, 0.3, 0.2}

	// tiny weighted sum clamps up to 0.3
	low := confidenceScore([]float64{0.001, 0, 0}, []float64{0.01, 0.5, 0.49})
	assert.Equal(t, 0.3, low)

	// all features at max magnitude: weighted sum = sum(importances) = 1,
	// clamps down to 0.95
	high := confidenceScore([]float64{2, -2, 2}, imp)
	assert.Equal(t, 0.95, high)

	// mismatched shapes degrade to 0.5
	assert.Equal(t, 0.5, confidenceScore([]float64{1}, imp))
	assert.Equal(t, 0.5, confidenceScore(nil, nil))
}

func TestRiskScore(t *testing.T) {
	// zero volatility, full confidence: risk bottoms out near zero
	calm := riskScore([]float64{0.01, 0.01, 0.01}, []float64{0.95, 0.95, 0.95})
	assert.InDelta(t, (1-0.95)*50, calm, 1e-9)

	// wild swings peg the score at 100
	wild := riskScore([]float64{0.5, -0.5, 0.5, -0.5}, []float64{0.3, 0.3, 0.3, 0.3})
	assert.Equal(t, 100.0, wild)

	assert.GreaterOrEqual(t, riskScore(nil, nil), 0.0)
}

func TestSyntheticSeriesDeterministic(t *testing.T) {
	a := SyntheticSeries("AAPL", 366)
	b := SyntheticSeries("AAPL", 366)
	c := SyntheticSeries("MSFT", 366)

	require.Len(t, a, 366)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[365].Close, c[365].Close)
	for _, candle := range a[:10] {
		assert.Greater(t, candle.Close, 0.0)
		assert.Greater(t, candle.Volume, 0.0)
	}
}

func TestGetPredictionUsesSyntheticHistory(t *testing.T) {
	// no PriceHistory wired at all: the synthetic walk is long enough to
	// train a real model
	uc := newPredictor(t, nil)
	res, err := uc.GetPrediction(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	assert.False(t, res.IsFallback())
	require.Len(t, res.Predictions, 5)
}
