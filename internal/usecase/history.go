package usecase

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/pkg/logger"
)

// syntheticDays is the length of a stand-in series: a year of daily candles,
// comfortably above the training minimums.
const syntheticDays = 366

// SeriesProvider fetches a ticker's price history, standing in a synthetic
// ticker-seeded random walk when the store has nothing. It never fails: every
// ticker always gets some series to predict on.
type SeriesProvider struct {
	history  domrepo.PriceHistory
	lookback int
	log      *logger.Logger
}

func NewSeriesProvider(history domrepo.PriceHistory, lookback int, log *logger.Logger) *SeriesProvider {
	if lookback <= 0 {
		lookback = syntheticDays
	}
	return &SeriesProvider{history: history, lookback: lookback, log: log}
}

// Series returns the most recent candles for the ticker in ascending time
// order. Store errors and empty histories degrade to a synthetic series.
func (p *SeriesProvider) Series(ctx context.Context, ticker string) []models.Candle {
	if p.history != nil {
		series, err := p.history.GetLatestNCandles(ctx, ticker, p.lookback)
		if err != nil {
			p.log.Warn("price history unavailable, using synthetic series",
				logger.String("ticker", ticker), logger.Error(err))
		} else if len(series) > 0 {
			return series
		}
	}
	return SyntheticSeries(ticker, syntheticDays)
}

// SyntheticSeries generates a deterministic random-walk price history for a
// ticker: N(0.001, 0.02) daily log-returns compounded from 100, lognormal
// volumes. The seed derives from the ticker alone, so the same ticker always
// walks the same path.
func SyntheticSeries(ticker string, days int) []models.Candle {
	rng := rand.New(rand.NewSource(tickerSeed(ticker)))
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	out := make([]models.Candle, days)
	sum := 0.0
	for i := 0; i < days; i++ {
		sum += rng.NormFloat64()*0.02 + 0.001
		out[i] = models.Candle{
			Bucket: start.AddDate(0, 0, i),
			Ticker: ticker,
			Close:  100 * math.Exp(sum),
			Volume: math.Exp(rng.NormFloat64()*0.5 + 15),
		}
	}
	return out
}

// tickerSeed hashes a ticker into a small deterministic seed space.
func tickerSeed(ticker string) int64 {
	h := fnv.New32a()
	h.Write([]byte(ticker))
	return int64(h.Sum32() % 1000)
}
