package usecase

import (
	"context"
	"math"
	"math/rand"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/domain/service"
	svccache "StockCast/internal/service/cache"
	"StockCast/internal/services/features"
	"StockCast/internal/services/modelstore"
	"StockCast/pkg/logger"
)

// Confidence clamp bounds: a forecast is never presented as near-certain nor
// as pure noise.
const (
	minConfidence = 0.3
	maxConfidence = 0.95
)

// PredictUseCase produces multi-day price forecasts. Invalid input (horizon
// <= 0) is the only error it returns; every internal failure degrades to a
// fallback result so batch callers never lose a ticker.
type PredictUseCase struct {
	series  *SeriesProvider
	store   *modelstore.Store
	eng     *features.Engineer
	cache   *svccache.PredictionCache
	pub     domrepo.Publisher
	rec     domrepo.Recorder
	metrics domrepo.Metrics
	log     *logger.Logger

	// now and seed are injection points: now fixes the cache hour bucket in
	// tests, seed makes fallback perturbations reproducible.
	now  func() time.Time
	seed int64
}

var _ service.PricePredictor = (*PredictUseCase)(nil)

func NewPredictUseCase(
	series *SeriesProvider,
	store *modelstore.Store,
	eng *features.Engineer,
	cache *svccache.PredictionCache,
	pub domrepo.Publisher,
	rec domrepo.Recorder,
	metrics domrepo.Metrics,
	seed int64,
	log *logger.Logger,
) *PredictUseCase {
	return &PredictUseCase{
		series:  series,
		store:   store,
		eng:     eng,
		cache:   cache,
		pub:     pub,
		rec:     rec,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		seed:    seed,
	}
}

// WithClock overrides the time source; the hour-bucket cache key derives
// from it.
func (uc *PredictUseCase) WithClock(now func() time.Time) *PredictUseCase {
	uc.now = now
	return uc
}

// GetPrediction fetches the ticker's history and forecasts over the horizon.
func (uc *PredictUseCase) GetPrediction(ctx context.Context, ticker string, horizon int) (*models.PredictionResult, error) {
	if horizon <= 0 {
		return nil, service.ErrInvalidHorizon
	}
	return uc.Predict(ctx, ticker, uc.series.Series(ctx, ticker), horizon)
}

// Predict forecasts the next horizon days from the given series.
func (uc *PredictUseCase) Predict(ctx context.Context, ticker string, series []models.Candle, horizon int) (*models.PredictionResult, error) {
	if horizon <= 0 {
		return nil, service.ErrInvalidHorizon
	}
	start := uc.now()

	if uc.cache != nil {
		if res, ok := uc.cache.Get(ctx, ticker, horizon, start); ok {
			uc.recordCache("hit")
			return res, nil
		}
		uc.recordCache("miss")
	}

	res := uc.predict(ctx, ticker, series, horizon)

	if uc.cache != nil && !res.IsFallback() {
		uc.cache.Set(ctx, horizon, start, res)
	}
	uc.publish(ctx, res)
	uc.record(ctx, res)
	if uc.metrics != nil {
		outcome := "ok"
		if res.IsFallback() {
			outcome = "fallback"
		}
		uc.metrics.RecordPrediction(ticker, outcome)
		uc.metrics.RecordLatency("predict", time.Since(start).Seconds())
	}
	return res, nil
}

// predict runs the model path; any failure along it yields the fallback.
func (uc *PredictUseCase) predict(ctx context.Context, ticker string, series []models.Candle, horizon int) *models.PredictionResult {
	entry, err := uc.store.Ensure(ctx, ticker, series)
	if err != nil {
		uc.log.Warn("no model available, serving fallback",
			logger.String("ticker", ticker), logger.Error(err))
		uc.recordError("model_unavailable")
		return uc.fallback(ticker, horizon)
	}

	latest := uc.eng.Compute(series).Latest()
	if latest == nil {
		uc.log.Warn("no usable features, serving fallback", logger.String("ticker", ticker))
		uc.recordError("no_features")
		return uc.fallback(ticker, horizon)
	}

	// The scaled snapshot is deliberately frozen across the horizon: each
	// day predicts from the same latest-known state rather than a simulated
	// future one.
	scaled := entry.Scaler.Transform(latest)

	returns := make([]float64, 0, horizon)
	confs := make([]float64, 0, horizon)
	for day := 0; day < horizon; day++ {
		ret, err := entry.Forest.Predict(scaled)
		if err != nil {
			uc.log.Error("model prediction failed, serving fallback",
				logger.String("ticker", ticker), logger.Error(err))
			uc.recordError("predict_failed")
			return uc.fallback(ticker, horizon)
		}
		returns = append(returns, ret)
		confs = append(confs, confidenceScore(scaled, entry.Forest.Importances))
	}

	currentPrice := series[len(series)-1].Close
	forecasts := make([]models.DayForecast, horizon)
	compounded := 1.0
	for i, ret := range returns {
		compounded *= 1 + ret
		forecasts[i] = models.DayForecast{
			Day:            i + 1,
			PredictedPrice: currentPrice * compounded,
			PriceChangePct: ret * 100,
			Confidence:     confs[i],
		}
	}

	trend := models.TrendBearish
	if sum(returns) > 0 {
		trend = models.TrendBullish
	}

	return &models.PredictionResult{
		Ticker:        ticker,
		CurrentPrice:  currentPrice,
		Predictions:   forecasts,
		OverallTrend:  trend,
		AvgConfidence: mean(confs),
		RiskScore:     riskScore(returns, confs),
		Timestamp:     uc.now().UTC(),
	}
}

// fallback produces the placeholder result served whenever the model path
// fails: a flat 100.0 price with small seeded perturbations.
func (uc *PredictUseCase) fallback(ticker string, horizon int) *models.PredictionResult {
	rng := rand.New(rand.NewSource(uc.seed + tickerSeed(ticker)))
	forecasts := make([]models.DayForecast, horizon)
	for i := range forecasts {
		forecasts[i] = models.DayForecast{
			Day:            i + 1,
			PredictedPrice: 100.0 + rng.NormFloat64()*2,
			PriceChangePct: rng.NormFloat64() * 1.5,
			Confidence:     0.4,
		}
	}
	return &models.PredictionResult{
		Ticker:        ticker,
		CurrentPrice:  100.0,
		Predictions:   forecasts,
		OverallTrend:  models.TrendNeutral,
		AvgConfidence: 0.4,
		RiskScore:     60.0,
		Timestamp:     uc.now().UTC(),
		Note:          models.FallbackNote,
	}
}

func (uc *PredictUseCase) publish(ctx context.Context, res *models.PredictionResult) {
	if uc.pub == nil {
		return
	}
	if err := uc.pub.PublishPrediction(ctx, res); err != nil {
		uc.log.Warn("failed to publish prediction event",
			logger.String("ticker", res.Ticker), logger.Error(err))
		uc.recordError("publish")
	}
}

func (uc *PredictUseCase) record(ctx context.Context, res *models.PredictionResult) {
	if uc.rec == nil {
		return
	}
	if err := uc.rec.RecordPrediction(ctx, res); err != nil {
		uc.log.Warn("failed to record prediction",
			logger.String("ticker", res.Ticker), logger.Error(err))
		uc.recordError("record")
	}
}

func (uc *PredictUseCase) recordCache(result string) {
	if uc.metrics != nil {
		uc.metrics.RecordCache(result)
	}
}

func (uc *PredictUseCase) recordError(kind string) {
	if uc.metrics != nil {
		uc.metrics.RecordError(kind)
	}
}

// confidenceScore weights the magnitude of each (scaled) feature by how much
// the model relies on it, normalized by the largest magnitude, clamped to
// [0.3, 0.95].
func confidenceScore(scaled, importances []float64) float64 {
	if len(scaled) != len(importances) || len(scaled) == 0 {
		return 0.5
	}
	maxAbs := 0.0
	for _, v := range scaled {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	weighted := 0.0
	for i, v := range scaled {
		weighted += math.Abs(v) / (maxAbs + 1e-8) * importances[i]
	}
	return clamp(weighted, minConfidence, maxConfidence)
}

// riskScore grows with return volatility and shrinks with confidence, scaled
// onto [0, 100].
func riskScore(returns, confs []float64) float64 {
	raw := stdPop(returns)*10 + (1 - mean(confs))
	return clamp(raw*50, 0, 100)
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, v := range xs {
		s += v
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

// stdPop is the population standard deviation.
func stdPop(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, v := range xs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
