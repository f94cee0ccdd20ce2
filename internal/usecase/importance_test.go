package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/service"
	"StockCast/internal/services/features"
	"StockCast/internal/services/forest"
	"StockCast/internal/services/modelstore"
)

func newStoreWithProvider(t *testing.T) (*modelstore.Store, *SeriesProvider) {
	t.Helper()
	log := testLogger(t)
	cfg := forest.Config{Trees: 10, MaxDepth: 5, MinLeaf: 1, Seed: 42}
	store := modelstore.NewStore(features.NewEngineer(), newMemBlobs(), nil, cfg, log)
	return store, NewSeriesProvider(trendHistory{}, 366, log)
}

func TestFeatureImportanceRequiresModel(t *testing.T) {
	store, _ := newStoreWithProvider(t)
	uc := NewImportanceUseCase(store)

	_, err := uc.FeatureImportance(context.Background(), "UNTRAINED")
	assert.ErrorIs(t, err, service.ErrModelUnavailable)
}

func TestFeatureImportanceReport(t *testing.T) {
	store, provider := newStoreWithProvider(t)
	train := NewTrainUseCase(provider, store)
	_, err := train.Train(context.Background(), "UP1")
	require.NoError(t, err)

	uc := NewImportanceUseCase(store)
	report, err := uc.FeatureImportance(context.Background(), "UP1")
	require.NoError(t, err)

	assert.Equal(t, "UP1", report.Ticker)
	assert.Equal(t, "Random Forest", report.ModelType)
	require.Len(t, report.Features, models.NumFeatures)

	seen := make(map[string]bool)
	total := 0.0
	for i, f := range report.Features {
		assert.Equal(t, i+1, f.Rank)
		if i > 0 {
			assert.LessOrEqual(t, f.Importance, report.Features[i-1].Importance,
				"features must be sorted by importance")
		}
		seen[f.Feature] = true
		total += f.Importance
	}
	for _, name := range models.FeatureNames {
		assert.True(t, seen[name], "missing feature %s", name)
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestTrainUseCaseRefusesShortHistory(t *testing.T) {
	store, provider := newStoreWithProvider(t)
	uc := NewTrainUseCase(provider, store)

	_, err := uc.Train(context.Background(), "SHORT1")
	assert.ErrorIs(t, err, service.ErrInsufficientData)
}

func TestTrainUseCaseProducesReport(t *testing.T) {
	store, provider := newStoreWithProvider(t)
	uc := NewTrainUseCase(provider, store)

	report, err := uc.Train(context.Background(), "UP1")
	require.NoError(t, err)
	assert.Equal(t, "UP1", report.Ticker)
	assert.Greater(t, report.TrainRows, report.TestRows)
	assert.Equal(t, report.Rows, report.TrainRows+report.TestRows)
}
