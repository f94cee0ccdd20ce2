package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/service"
	"StockCast/pkg/logger"
)

const (
	defaultBatchWorkers  = 4
	defaultTickerTimeout = 10 * time.Second
)

// BatchUseCase fans a forecast out across tickers with bounded parallelism.
// One ticker's failure, timeout or panic is isolated to that ticker: it gets
// a fallback result and the rest of the batch proceeds.
type BatchUseCase struct {
	predictor *PredictUseCase
	workers   int
	timeout   time.Duration
	log       *logger.Logger
	now       func() time.Time
}

var _ service.BatchPredictor = (*BatchUseCase)(nil)

func NewBatchUseCase(predictor *PredictUseCase, workers int, timeout time.Duration, log *logger.Logger) *BatchUseCase {
	if workers <= 0 {
		workers = defaultBatchWorkers
	}
	if timeout <= 0 {
		timeout = defaultTickerTimeout
	}
	return &BatchUseCase{
		predictor: predictor,
		workers:   workers,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the time source used for batch IDs.
func (uc *BatchUseCase) WithClock(now func() time.Time) *BatchUseCase {
	uc.now = now
	return uc
}

// BatchPredict forecasts every ticker over the horizon. The result map
// always has one entry per distinct ticker.
func (uc *BatchUseCase) BatchPredict(ctx context.Context, tickers []string, horizon int) (*models.BatchResult, error) {
	if horizon <= 0 {
		return nil, service.ErrInvalidHorizon
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("batch: no tickers given")
	}

	results := make(map[string]*models.PredictionResult, len(tickers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, uc.workers)

	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := uc.predictOne(ctx, ticker, horizon)
			mu.Lock()
			results[ticker] = res
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()

	return &models.BatchResult{
		BatchID:      uc.now().UTC().Format("20060102_150405"),
		Predictions:  results,
		TotalTickers: len(results),
		Timestamp:    uc.now().UTC(),
	}, nil
}

// predictOne runs a single ticker under its own deadline and panic guard.
func (uc *BatchUseCase) predictOne(ctx context.Context, ticker string, horizon int) (res *models.PredictionResult) {
	defer func() {
		if r := recover(); r != nil {
			uc.log.Error("batch prediction panicked",
				logger.String("ticker", ticker), logger.Any("panic", r))
			res = uc.predictor.fallback(ticker, horizon)
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	out, err := uc.predictor.GetPrediction(tctx, ticker, horizon)
	if err != nil {
		uc.log.Warn("batch prediction failed",
			logger.String("ticker", ticker), logger.Error(err))
		return uc.predictor.fallback(ticker, horizon)
	}
	return out
}
