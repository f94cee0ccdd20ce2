package modelstore

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/service"
	"StockCast/internal/services/features"
	"StockCast/internal/services/forest"
	"StockCast/pkg/logger"
)

// memBlobs is an in-memory ModelBlobStore that counts writes.
type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

func newMemBlobs() *memBlobs { return &memBlobs{data: make(map[string][]byte)} }

func (m *memBlobs) Put(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	m.puts++
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

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func testStore(t *testing.T, blobs *memBlobs) *Store {
	t.Helper()
	cfg := forest.Config{Trees: 10, MaxDepth: 5, MinLeaf: 1, Seed: 42}
	return NewStore(features.NewEngineer(), blobs, nil, cfg, testLogger(t))
}

// walkSeries synthesizes a deterministic random-walk price history.
func walkSeries(n int, seed int64) []models.Candle {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.Candle, n)
	price := 100.0
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price *= 1 + rng.NormFloat64()*0.02 + 0.001
		out[i] = models.Candle{
			Bucket: day.AddDate(0, 0, i),
			Ticker: "TEST",
			Close:  price,
			Volume: 1e6 * math.Exp(rng.NormFloat64()*0.3),
		}
	}
	return out
}

func TestTrainRefusesShortSeries(t *testing.T) {
	blobs := newMemBlobs()
	s := testStore(t, blobs)

	_, err := s.Train(context.Background(), "TEST", walkSeries(10, 1))
	require.ErrorIs(t, err, service.ErrInsufficientData)
	assert.Zero(t, blobs.puts, "refused training must not write blobs")
}

func TestTrainWritesReportAndBlobs(t *testing.T) {
	blobs := newMemBlobs()
	s := testStore(t, blobs)

	report, err := s.Train(context.Background(), "TEST", walkSeries(120, 1))
	require.NoError(t, err)

	// 120 candles give 119 aligned rows, split 80/20 chronologically
	assert.Equal(t, 119, report.Rows)
	assert.Equal(t, 95, report.TrainRows)
	assert.Equal(t, 24, report.TestRows)
	assert.False(t, report.TrainedAt.IsZero())

	assert.True(t, blobs.Exists("TEST_model.json"))
	assert.True(t, blobs.Exists("TEST_scaler.json"))
}

func TestEnsureTrainsOnceAcrossGoroutines(t *testing.T) {
	blobs := newMemBlobs()
	s := testStore(t, blobs)
	series := walkSeries(120, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := s.Ensure(context.Background(), "TEST", series)
			assert.NoError(t, err)
			assert.NotNil(t, e)
		}()
	}
	wg.Wait()

	// one training run = one model blob + one scaler blob
	assert.Equal(t, 2, blobs.puts)
}

func TestEnsureLoadsPersistedModel(t *testing.T) {
	blobs := newMemBlobs()
	first := testStore(t, blobs)
	_, err := first.Train(context.Background(), "TEST", walkSeries(120, 3))
	require.NoError(t, err)

	// A fresh store sharing the blob store must load, not retrain: the
	// series handed to Ensure here is far too short to train from.
	second := testStore(t, blobs)
	e, err := second.Ensure(context.Background(), "TEST", walkSeries(5, 3))
	require.NoError(t, err)
	require.NotNil(t, e.Forest)
	require.NotNil(t, e.Scaler)
	assert.Equal(t, models.NumFeatures, e.Forest.NumFeatures)
}

func TestLastReportFollowsTraining(t *testing.T) {
	blobs := newMemBlobs()
	s := testStore(t, blobs)

	_, err := s.LastReport("TEST")
	assert.ErrorIs(t, err, service.ErrModelUnavailable)

	want, err := s.Train(context.Background(), "TEST", walkSeries(120, 9))
	require.NoError(t, err)

	got, err := s.LastReport("TEST")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Loading a persisted model carries no evaluation.
	fresh := testStore(t, blobs)
	_, err = fresh.Get("TEST")
	require.NoError(t, err)
	_, err = fresh.LastReport("TEST")
	assert.ErrorIs(t, err, service.ErrModelUnavailable)
}

func TestGetWithoutModel(t *testing.T) {
	s := testStore(t, newMemBlobs())
	_, err := s.Get("MISSING")
	assert.ErrorIs(t, err, service.ErrModelUnavailable)
}

func TestCorruptBlobsAreIgnored(t *testing.T) {
	blobs := newMemBlobs()
	require.NoError(t, blobs.Put("BAD_model.json", []byte("not json")))
	require.NoError(t, blobs.Put("BAD_scaler.json", []byte("{}")))

	s := testStore(t, blobs)
	_, err := s.Get("BAD")
	assert.ErrorIs(t, err, service.ErrModelUnavailable)
}

func TestSchemaVersionMismatchForcesRetrain(t *testing.T) {
	blobs := newMemBlobs()
	s := testStore(t, blobs)
	_, err := s.Train(context.Background(), "TEST", walkSeries(120, 4))
	require.NoError(t, err)

	// Rewrite the model blob with a wrong schema version.
	raw, err := blobs.Get("TEST_model.json")
	require.NoError(t, err)
	tampered := []byte(`{"schema_version":99,` + string(raw[len(`{"schema_version":1,`):]))
	require.NoError(t, blobs.Put("TEST_model.json", tampered))

	fresh := testStore(t, blobs)
	_, err = fresh.Get("TEST")
	assert.ErrorIs(t, err, service.ErrModelUnavailable)
}

func TestTrainedModelRoundTripsPredictions(t *testing.T) {
	blobs := newMemBlobs()
	s := testStore(t, blobs)
	series := walkSeries(120, 5)
	_, err := s.Train(context.Background(), "TEST", series)
	require.NoError(t, err)
	trained, err := s.Get("TEST")
	require.NoError(t, err)

	loaded := testStore(t, blobs)
	restored, err := loaded.Get("TEST")
	require.NoError(t, err)

	row := features.NewEngineer().Compute(series).Latest()
	a, err := trained.Forest.Predict(trained.Scaler.Transform(row))
	require.NoError(t, err)
	b, err := restored.Forest.Predict(restored.Scaler.Transform(row))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
