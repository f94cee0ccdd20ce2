package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockCast/internal/domain/models"
)

func candlesFromCloses(closes []float64, volume float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = models.Candle{
			Bucket: base.AddDate(0, 0, i),
			Ticker: "TST",
			Close:  c,
			Volume: volume,
		}
	}
	return out
}

func TestRollingMean(t *testing.T) {
	got := RollingMean([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-12)
	assert.InDelta(t, 3.0, got[3], 1e-12)
	assert.InDelta(t, 4.0, got[4], 1e-12)
}

func TestRollingStdSampleDivisor(t *testing.T) {
	// sample std of {1,2,3} is 1 exactly (divisor n-1)
	got := RollingStd([]float64{1, 2, 3}, 3)
	require.Len(t, got, 3)
	assert.InDelta(t, 1.0, got[2], 1e-12)
}

func TestEMAAdjustedWeights(t *testing.T) {
	// span=2 => alpha=2/3. Adjusted EMA over [1,2,3]:
	// ema[1] = (2 + 1/3*1)/(1 + 1/3) = 1.75
	// ema[2] = (3 + 1/3*2 + 1/9*1)/(1 + 1/3 + 1/9) = 2.615384...
	got := EMA([]float64{1, 2, 3}, 2)
	assert.InDelta(t, 1.0, got[0], 1e-12)
	assert.InDelta(t, 1.75, got[1], 1e-12)
	assert.InDelta(t, 34.0/13.0, got[2], 1e-12)
}

func TestRSIBounds(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	rsi := RSI(up, 14)
	// strictly rising closes: no losses, RSI pegged at 100 once warm
	assert.InDelta(t, 100.0, rsi[len(rsi)-1], 1e-9)

	down := make([]float64, 30)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	rsi = RSI(down, 14)
	assert.InDelta(t, 0.0, rsi[len(rsi)-1], 1e-9)
}

func TestRSIWarmupEndsAtPeriodMinusOne(t *testing.T) {
	// The first diff counts as a zero gain/loss, so a 14-period RSI becomes
	// defined at index 13, not 14.
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	rsi := RSI(up, 14)
	assert.True(t, math.IsNaN(rsi[12]))
	assert.False(t, math.IsNaN(rsi[13]))
	assert.InDelta(t, 100.0, rsi[13], 1e-9)
}

func TestRSIFlatSeriesIsUndefined(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 50
	}
	rsi := RSI(flat, 14)
	// zero gains and zero losses: 0/0, stays NaN until the fill pass
	assert.True(t, math.IsNaN(rsi[len(rsi)-1]))
}

func TestPctChangeAndMomentum(t *testing.T) {
	pc := PctChange([]float64{100, 110, 99})
	assert.True(t, math.IsNaN(pc[0]))
	assert.InDelta(t, 0.10, pc[1], 1e-12)
	assert.InDelta(t, -0.10, pc[2], 1e-12)

	xs := make([]float64, 15)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	m := Momentum(xs, 10)
	assert.True(t, math.IsNaN(m[9]))
	assert.InDelta(t, 11.0/1.0-1, m[10], 1e-12)
}

func TestComputeShapeAndOrder(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	m := NewEngineer().Compute(candlesFromCloses(closes, 5000))
	require.Equal(t, 80, m.Len())
	for _, row := range m.Rows {
		require.Len(t, row, models.NumFeatures)
	}
	// column 0 is close, column 1 is volume
	assert.InDelta(t, closes[79], m.Rows[79][0], 1e-12)
	assert.InDelta(t, 5000.0, m.Rows[79][1], 1e-12)
}

func TestComputeWarmupBias(t *testing.T) {
	// The warm-up rows of rolling indicators are forward/zero filled; the
	// deliberate consequence is zero volatility and zero momentum at the
	// head of the matrix. Locked in here so nobody "fixes" it silently.
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i))
	}
	m := NewEngineer().Compute(candlesFromCloses(closes, 1000))
	volatilityCol, momentumCol := 8, 11
	for i := 0; i < 19; i++ {
		assert.Zero(t, m.Rows[i][volatilityCol], "row %d volatility", i)
	}
	for i := 0; i < 10; i++ {
		assert.Zero(t, m.Rows[i][momentumCol], "row %d momentum", i)
	}
	// past warm-up the real values flow through
	assert.NotZero(t, m.Rows[30][volatilityCol])
}

func TestComputeSynthesizedVolume(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104}
	m := NewEngineer().Compute(candlesFromCloses(closes, 0))
	require.Equal(t, 5, m.Len())
	volumeCol, ratioCol := 1, 10
	for _, row := range m.Rows {
		assert.InDelta(t, float64(DefaultVolume), row[volumeCol], 1e-9)
		assert.InDelta(t, 1.0, row[ratioCol], 1e-12)
	}
}

func TestComputeEmptySeries(t *testing.T) {
	m := NewEngineer().Compute(nil)
	assert.True(t, m.Empty())
	assert.Nil(t, m.Latest())
}

func TestTargetsAlignment(t *testing.T) {
	series := candlesFromCloses([]float64{100, 110, 99}, 0)
	y := Targets(series)
	require.Len(t, y, 2)
	assert.InDelta(t, 0.10, y[0], 1e-12)
	assert.InDelta(t, -0.10, y[1], 1e-12)
}
