package usecase

import (
	"context"
	"sort"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/service"
	"StockCast/internal/services/forest"
	"StockCast/internal/services/modelstore"
)

// ImportanceUseCase explains trained models through their feature
// importances. It never triggers training: an untrained ticker yields
// ErrModelUnavailable.
type ImportanceUseCase struct {
	store *modelstore.Store
	now   func() time.Time
}

var _ service.ModelExplainer = (*ImportanceUseCase)(nil)

func NewImportanceUseCase(store *modelstore.Store) *ImportanceUseCase {
	return &ImportanceUseCase{store: store, now: time.Now}
}

func (uc *ImportanceUseCase) FeatureImportance(ctx context.Context, ticker string) (*models.ImportanceReport, error) {
	entry, err := uc.store.Get(ticker)
	if err != nil {
		return nil, err
	}

	ranks := make([]models.FeatureRank, len(models.FeatureNames))
	for i, name := range models.FeatureNames {
		ranks[i] = models.FeatureRank{Feature: name, Importance: entry.Forest.Importances[i]}
	}
	sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].Importance > ranks[j].Importance })
	for i := range ranks {
		ranks[i].Rank = i + 1
	}

	return &models.ImportanceReport{
		Ticker:    ticker,
		Features:  ranks,
		ModelType: forest.ModelType,
		Timestamp: uc.now().UTC(),
	}, nil
}
