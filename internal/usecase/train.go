package usecase

import (
	"context"

	"StockCast/internal/domain/models"
	"StockCast/internal/services/modelstore"
)

// TrainUseCase retrains a ticker's model on demand from its latest history.
type TrainUseCase struct {
	series *SeriesProvider
	store  *modelstore.Store
}

func NewTrainUseCase(series *SeriesProvider, store *modelstore.Store) *TrainUseCase {
	return &TrainUseCase{series: series, store: store}
}

func (uc *TrainUseCase) Train(ctx context.Context, ticker string) (*models.TrainingReport, error) {
	return uc.store.Train(ctx, ticker, uc.series.Series(ctx, ticker))
}

// Performance returns the held-out evaluation of the ticker's last training
// run in this process.
func (uc *TrainUseCase) Performance(ticker string) (*models.TrainingReport, error) {
	return uc.store.LastReport(ticker)
}
