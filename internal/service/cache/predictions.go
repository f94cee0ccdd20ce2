// Package cache provides the typed prediction-result cache. Results are
// keyed by (ticker, horizon, hour bucket) so every caller inside the same
// wall-clock hour shares one forecast, and stored as JSON through the
// generic backend (in-process LRU, optionally layered over Redis).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	pkgcache "StockCast/pkg/cache"
	"StockCast/pkg/logger"
)

// hourBucket truncates a timestamp to the cache granularity.
const hourBucket = "2006010215"

// Key builds the cache key for a forecast request at a point in time.
func Key(ticker string, horizon int, at time.Time) string {
	return fmt.Sprintf("pred:%s:%d:%s", ticker, horizon, at.UTC().Format(hourBucket))
}

// PredictionCache wraps the generic cache backend with prediction typing.
type PredictionCache struct {
	backend pkgcache.Service
	ttl     time.Duration
	log     *logger.Logger
}

func NewPredictionCache(backend pkgcache.Service, ttl time.Duration, log *logger.Logger) *PredictionCache {
	return &PredictionCache{backend: backend, ttl: ttl, log: log}
}

// Get returns the cached forecast for the request's hour bucket, if any.
// Backend failures and decode failures degrade to a miss.
func (c *PredictionCache) Get(ctx context.Context, ticker string, horizon int, at time.Time) (*models.PredictionResult, bool) {
	var raw string
	err := c.backend.Get(ctx, Key(ticker, horizon, at), &raw)
	if err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			c.log.Warn("prediction cache read failed", logger.String("ticker", ticker), logger.Error(err))
		}
		return nil, false
	}

	var res models.PredictionResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		c.log.Warn("corrupt prediction cache entry", logger.String("ticker", ticker), logger.Error(err))
		return nil, false
	}
	return &res, true
}

// Set stores a forecast under its hour bucket. A write failure is logged and
// swallowed; caching never fails a prediction.
func (c *PredictionCache) Set(ctx context.Context, horizon int, at time.Time, res *models.PredictionResult) {
	b, err := json.Marshal(res)
	if err != nil {
		c.log.Error("failed to encode prediction for cache", logger.String("ticker", res.Ticker), logger.Error(err))
		return
	}
	if err := c.backend.Set(ctx, Key(res.Ticker, horizon, at), string(b), c.ttl); err != nil {
		c.log.Warn("prediction cache write failed", logger.String("ticker", res.Ticker), logger.Error(err))
	}
}
