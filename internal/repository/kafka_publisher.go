package repository

import (
	"context"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/repository"
	pkgkafka "StockCast/pkg/kafka"
)

// KafkaPublisher emits finished forecasts and market summaries as events.
// Predictions are keyed by ticker so per-ticker ordering is preserved.
type KafkaPublisher struct {
	producer         *pkgkafka.Producer
	predictionsTopic string
	marketTopic      string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, predictionsTopic, marketTopic string) repository.Publisher {
	return &KafkaPublisher{
		producer:         producer,
		predictionsTopic: predictionsTopic,
		marketTopic:      marketTopic,
	}
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, r *models.PredictionResult) error {
	return p.producer.Publish(ctx, p.predictionsTopic, []byte(r.Ticker), r)
}

func (p *KafkaPublisher) PublishMarketSummary(ctx context.Context, s *models.MarketSummary) error {
	return p.producer.Publish(ctx, p.marketTopic, []byte("market"), s)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
