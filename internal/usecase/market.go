package usecase

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/domain/service"
	"StockCast/pkg/logger"
)

// DefaultWatchlist is the basket aggregated when no watchlist is configured.
var DefaultWatchlist = []string{"AAPL", "GOOGL", "MSFT", "TSLA", "EQNR.OL", "DNB.OL"}

// Recommendation thresholds: sentiment and confidence pick one posture line,
// then risk and confidence each may add one more.
const (
	strongSignalConfidence = 0.7
	highRiskThreshold      = 70.0
	lowRiskThreshold       = 30.0
	lowConfidenceThreshold = 0.5
)

// MarketUseCase rolls the watchlist batch up into a market-wide sentiment
// summary with recommendations.
type MarketUseCase struct {
	batch     *BatchUseCase
	watchlist []string
	rec       domrepo.Recorder
	pub       domrepo.Publisher
	log       *logger.Logger
	now       func() time.Time
}

var _ service.MarketAnalyzer = (*MarketUseCase)(nil)

func NewMarketUseCase(batch *BatchUseCase, watchlist []string, rec domrepo.Recorder, pub domrepo.Publisher, log *logger.Logger) *MarketUseCase {
	if len(watchlist) == 0 {
		watchlist = DefaultWatchlist
	}
	return &MarketUseCase{
		batch:     batch,
		watchlist: watchlist,
		rec:       rec,
		pub:       pub,
		log:       log,
		now:       time.Now,
	}
}

// MarketPredictions batches the watchlist and aggregates sentiment. The
// three sentiment counts always sum to the number of watchlist tickers.
func (uc *MarketUseCase) MarketPredictions(ctx context.Context, horizon int) (*models.MarketSummary, error) {
	batch, err := uc.batch.BatchPredict(ctx, uc.watchlist, horizon)
	if err != nil {
		return nil, err
	}

	var bullish, bearish int
	var confSum, riskSum float64
	for _, p := range batch.Predictions {
		switch p.OverallTrend {
		case models.TrendBullish:
			bullish++
		case models.TrendBearish:
			bearish++
		}
		confSum += p.AvgConfidence
		riskSum += p.RiskScore
	}

	total := len(batch.Predictions)
	avgConf, avgRisk := 0.5, 50.0
	if total > 0 {
		avgConf = confSum / float64(total)
		avgRisk = riskSum / float64(total)
	}

	sentiment := models.TrendNeutral
	switch {
	case bullish > bearish:
		sentiment = models.TrendBullish
	case bearish > bullish:
		sentiment = models.TrendBearish
	}

	summary := &models.MarketSummary{
		MarketSentiment: sentiment,
		BullishStocks:   bullish,
		BearishStocks:   bearish,
		NeutralStocks:   total - bullish - bearish,
		AvgConfidence:   avgConf,
		AvgRiskScore:    avgRisk,
		TopPredictions:  batch.Predictions,
		Recommendations: recommendations(sentiment, avgConf, avgRisk),
		Timestamp:       uc.now().UTC(),
	}

	if uc.rec != nil {
		if err := uc.rec.RecordMarketSummary(ctx, summary); err != nil {
			uc.log.Warn("failed to record market summary", logger.Error(err))
		}
	}
	if uc.pub != nil {
		if err := uc.pub.PublishMarketSummary(ctx, summary); err != nil {
			uc.log.Warn("failed to publish market summary", logger.Error(err))
		}
	}
	return summary, nil
}

// recommendations generates one to three advisory lines from independent
// sentiment, risk and confidence thresholds.
func recommendations(sentiment string, confidence, risk float64) []string {
	var out []string

	switch {
	case sentiment == models.TrendBullish && confidence > strongSignalConfidence:
		out = append(out, "Strong bullish signals detected - consider increasing equity exposure")
	case sentiment == models.TrendBearish && confidence > strongSignalConfidence:
		out = append(out, "Strong bearish signals - consider defensive positioning")
	default:
		out = append(out, "Mixed signals - maintain balanced portfolio")
	}

	if risk > highRiskThreshold {
		out = append(out, "High risk environment - consider reducing position sizes")
	} else if risk < lowRiskThreshold {
		out = append(out, "Low risk environment - may consider leveraging opportunities")
	}

	if confidence < lowConfidenceThreshold {
		out = append(out, "Low model confidence - rely more on fundamental analysis")
	}

	return out
}
