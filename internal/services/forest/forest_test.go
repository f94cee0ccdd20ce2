package forest

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearData builds rows where y depends only on column 0.
func linearData(n int, rng *rand.Rand) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := rng.Float64()*2 - 1
		noise := rng.Float64() * 1e-3
		X[i] = []float64{x0, rng.Float64(), rng.Float64()}
		y[i] = 0.5*x0 + noise
	}
	return X, y
}

func smallConfig() Config {
	return Config{Trees: 20, MaxDepth: 6, MinLeaf: 1, Seed: 42}
}

func TestTrainDeterministic(t *testing.T) {
	X, y := linearData(120, rand.New(rand.NewSource(1)))
	a, err := Train(X, y, smallConfig())
	require.NoError(t, err)
	b, err := Train(X, y, smallConfig())
	require.NoError(t, err)

	row := []float64{0.3, 0.5, 0.5}
	pa, err := a.Predict(row)
	require.NoError(t, err)
	pb, err := b.Predict(row)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.Equal(t, a.Importances, b.Importances)
}

func TestTrainLearnsSignal(t *testing.T) {
	X, y := linearData(300, rand.New(rand.NewSource(2)))
	f, err := Train(X, y, smallConfig())
	require.NoError(t, err)

	// fit error well below the spread of y
	var mse float64
	for i, row := range X {
		p, perr := f.Predict(row)
		require.NoError(t, perr)
		d := p - y[i]
		mse += d * d
	}
	mse /= float64(len(X))
	assert.Less(t, mse, 0.01)
}

func TestImportancesFavorInformativeFeature(t *testing.T) {
	X, y := linearData(300, rand.New(rand.NewSource(3)))
	f, err := Train(X, y, smallConfig())
	require.NoError(t, err)

	sum := 0.0
	for _, v := range f.Importances {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, f.Importances[0], f.Importances[1])
	assert.Greater(t, f.Importances[0], f.Importances[2])
}

func TestForestRoundTrip(t *testing.T) {
	X, y := linearData(100, rand.New(rand.NewSource(4)))
	f, err := Train(X, y, smallConfig())
	require.NoError(t, err)

	blob, err := f.Marshal()
	require.NoError(t, err)
	g, err := UnmarshalForest(blob)
	require.NoError(t, err)

	for _, row := range X[:10] {
		pf, _ := f.Predict(row)
		pg, _ := g.Predict(row)
		assert.Equal(t, pf, pg)
	}

	_, err = UnmarshalForest([]byte(`{"trees":[]}`))
	assert.Error(t, err)
	_, err = UnmarshalForest([]byte(`not json`))
	assert.Error(t, err)
}

func TestPredictShapeMismatch(t *testing.T) {
	X, y := linearData(60, rand.New(rand.NewSource(5)))
	f, err := Train(X, y, smallConfig())
	require.NoError(t, err)
	_, err = f.Predict([]float64{1, 2})
	assert.Error(t, err)
}

func TestTrainRejectsBadInput(t *testing.T) {
	_, err := Train(nil, nil, smallConfig())
	assert.Error(t, err)
	_, err = Train([][]float64{{1}}, []float64{1, 2}, smallConfig())
	assert.Error(t, err)
	_, err = Train([][]float64{{1}}, []float64{1}, Config{})
	assert.Error(t, err)
}

func TestScalerStandardizes(t *testing.T) {
	X := [][]float64{{1, 10}, {3, 10}, {5, 10}}
	s := FitScaler(X)
	require.Equal(t, 2, s.NumFeatures())

	// column 0: mean 3, population std sqrt(8/3)
	got := s.Transform([]float64{3, 10})
	assert.InDelta(t, 0, got[0], 1e-12)
	// constant column keeps scale 1 and centers to zero
	assert.InDelta(t, 0, got[1], 1e-12)

	std := math.Sqrt(8.0 / 3.0)
	got = s.Transform([]float64{5, 10})
	assert.InDelta(t, 2.0/std, got[0], 1e-12)
}

func TestScalerRoundTrip(t *testing.T) {
	s := FitScaler([][]float64{{1, 2}, {3, 4}})
	blob, err := json.Marshal(s)
	require.NoError(t, err)
	var r Scaler
	require.NoError(t, json.Unmarshal(blob, &r))
	assert.Equal(t, s.Mean, r.Mean)
	assert.Equal(t, s.Std, r.Std)
}
