package features

import (
	"math"

	"StockCast/internal/domain/models"
)

// Indicator windows. These are part of the feature schema contract: the
// trained weights only mean anything against these exact parameters.
const (
	rsiPeriod       = 14
	macdFastSpan    = 12
	macdSlowSpan    = 26
	bollingerPeriod = 20
	bollingerK      = 2.0
	smaShortPeriod  = 20
	smaLongPeriod   = 50
	volWindow       = 20
	volumeWindow    = 20
	momentumLag     = 10

	// DefaultVolume is substituted when the series carries no volume data.
	DefaultVolume = 1_000_000
)

// Engineer derives the fixed twelve-column feature matrix from a price
// series. It is stateless and safe for concurrent use.
type Engineer struct{}

func NewEngineer() *Engineer { return &Engineer{} }

// Compute returns one feature row per input candle, columns ordered per
// models.FeatureNames. Warm-up gaps of the rolling indicators are forward
// filled and any residual zero filled, which biases the earliest rows toward
// zero momentum and zero volatility; callers needing unbiased rows must skip
// the warm-up prefix themselves. An empty or close-less series yields an
// empty matrix rather than an error.
func (e *Engineer) Compute(series []models.Candle) *models.FeatureMatrix {
	closes, volumes, hasVolume := splitSeries(series)
	if len(closes) == 0 {
		return &models.FeatureMatrix{}
	}

	n := len(closes)
	rsi := RSI(closes, rsiPeriod)
	macd := MACD(closes, macdFastSpan, macdSlowSpan)
	bbUpper, bbLower := BollingerBands(closes, bollingerPeriod, bollingerK)
	sma20 := RollingMean(closes, smaShortPeriod)
	sma50 := RollingMean(closes, smaLongPeriod)
	volatility := RollingStd(closes, volWindow)
	priceChange := PctChange(closes)
	momentum := Momentum(closes, momentumLag)

	var volumeRatio []float64
	if hasVolume {
		volumeRatio = ratio(volumes, RollingMean(volumes, volumeWindow))
	} else {
		volumes = constant(n, DefaultVolume)
		volumeRatio = constant(n, 1.0)
	}

	cols := [][]float64{
		closes, volumes, rsi, macd, bbUpper, bbLower,
		sma20, sma50, volatility, priceChange, volumeRatio, momentum,
	}
	for _, col := range cols {
		fillForwardThenZero(col)
	}

	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, models.NumFeatures)
		for j, col := range cols {
			row[j] = col[i]
		}
		rows[i] = row
	}
	return &models.FeatureMatrix{Rows: rows}
}

// Targets returns the next-period percentage return for each candle: the
// training label aligned so that row i predicts the move from close[i] to
// close[i+1]. The first return is NaN (no prior close to change from after
// the shift) and the last row has no label.
func Targets(series []models.Candle) []float64 {
	closes, _, _ := splitSeries(series)
	if len(closes) < 2 {
		return nil
	}
	// pct_change shifted one step back: out[i] = (close[i+1]-close[i])/close[i]
	out := make([]float64, len(closes)-1)
	for i := 0; i < len(closes)-1; i++ {
		if closes[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (closes[i+1] - closes[i]) / closes[i]
	}
	return out
}

// RSI computes the relative strength index using simple rolling means of
// gains and losses over the period, matching rolling-mean (not Wilder
// recursive) smoothing. Output is NaN through the warm-up window.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n < 2 || period <= 0 {
		return out
	}
	gains := nanSlice(n)
	losses := nanSlice(n)
	// The first diff has no prior close; it counts as a zero gain and zero
	// loss, so the first defined RSI lands at index period-1.
	gains[0], losses[0] = 0, 0
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i], losses[i] = d, 0
		} else {
			gains[i], losses[i] = 0, -d
		}
	}
	avgGain := RollingMean(gains, period)
	avgLoss := RollingMean(losses, period)
	for i := 0; i < n; i++ {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		switch {
		case l == 0 && g == 0:
			// 0/0: undefined strength, leave NaN for the fill pass
		case l == 0:
			out[i] = 100
		default:
			rs := g / l
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// MACD is the difference of fast and slow exponential moving averages. The
// EMAs use adjusted weighting (each point is a normalized weighted mean of
// the full history), so no warm-up NaNs are produced.
func MACD(closes []float64, fastSpan, slowSpan int) []float64 {
	fast := EMA(closes, fastSpan)
	slow := EMA(closes, slowSpan)
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = fast[i] - slow[i]
	}
	return out
}

// EMA computes a span-parameterized exponential moving average with adjusted
// weights: ema[i] = sum_k (1-a)^k x[i-k] / sum_k (1-a)^k, a = 2/(span+1).
func EMA(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	decay := 1.0 - alpha
	num, den := 0.0, 0.0
	for i, x := range xs {
		num = x + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

// BollingerBands returns the upper and lower bands: rolling mean +/- k
// rolling standard deviations.
func BollingerBands(closes []float64, period int, k float64) (upper, lower []float64) {
	mean := RollingMean(closes, period)
	std := RollingStd(closes, period)
	n := len(closes)
	upper = nanSlice(n)
	lower = nanSlice(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(mean[i]) || math.IsNaN(std[i]) {
			continue
		}
		upper[i] = mean[i] + k*std[i]
		lower[i] = mean[i] - k*std[i]
	}
	return upper, lower
}

// RollingMean computes a simple moving average; any NaN inside the window
// (or an incomplete window) yields NaN for that position.
func RollingMean(xs []float64, window int) []float64 {
	n := len(xs)
	out := nanSlice(n)
	if window <= 0 || n < window {
		return out
	}
	for i := window - 1; i < n; i++ {
		sum := 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(xs[j]) {
				ok = false
				break
			}
			sum += xs[j]
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// RollingStd computes the rolling sample standard deviation (n-1 divisor).
func RollingStd(xs []float64, window int) []float64 {
	n := len(xs)
	out := nanSlice(n)
	if window <= 1 || n < window {
		return out
	}
	for i := window - 1; i < n; i++ {
		sum := 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(xs[j]) {
				ok = false
				break
			}
			sum += xs[j]
		}
		if !ok {
			continue
		}
		mean := sum / float64(window)
		ss := 0.0
		for j := i - window + 1; j <= i; j++ {
			d := xs[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// PctChange computes the one-period percentage change; the first element is
// NaN.
func PctChange(xs []float64) []float64 {
	out := nanSlice(len(xs))
	for i := 1; i < len(xs); i++ {
		if xs[i-1] == 0 {
			continue
		}
		out[i] = (xs[i] - xs[i-1]) / xs[i-1]
	}
	return out
}

// Momentum computes close/close[i-lag] - 1; NaN until lag observations exist.
func Momentum(xs []float64, lag int) []float64 {
	out := nanSlice(len(xs))
	for i := lag; i < len(xs); i++ {
		if xs[i-lag] == 0 {
			continue
		}
		out[i] = xs[i]/xs[i-lag] - 1
	}
	return out
}

func splitSeries(series []models.Candle) (closes, volumes []float64, hasVolume bool) {
	if len(series) == 0 {
		return nil, nil, false
	}
	closes = make([]float64, len(series))
	volumes = make([]float64, len(series))
	for i, c := range series {
		closes[i] = c.Close
		volumes[i] = c.Volume
		if c.Volume > 0 {
			hasVolume = true
		}
	}
	return closes, volumes, hasVolume
}

func ratio(num, den []float64) []float64 {
	out := nanSlice(len(num))
	for i := range num {
		if math.IsNaN(den[i]) || den[i] == 0 {
			continue
		}
		out[i] = num[i] / den[i]
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// fillForwardThenZero replaces each NaN with the last seen value, then zeros
// whatever remains (the leading warm-up run).
func fillForwardThenZero(xs []float64) {
	last := math.NaN()
	for i, x := range xs {
		if math.IsNaN(x) {
			if math.IsNaN(last) {
				xs[i] = 0
			} else {
				xs[i] = last
			}
			continue
		}
		last = x
	}
}
