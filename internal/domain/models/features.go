package models

// FeatureSchemaVersion identifies the feature contract below. Model and
// scaler blobs record it; a blob written under a different version cannot be
// loaded, because column order is what the trained weights mean.
const FeatureSchemaVersion = 1

// FeatureNames is the fixed column order of every feature matrix. Changing
// the order or the set is a breaking change and must bump
// FeatureSchemaVersion.
var FeatureNames = []string{
	"close", "volume", "rsi", "macd", "bb_upper", "bb_lower",
	"sma_20", "sma_50", "volatility", "price_change",
	"volume_ratio", "momentum",
}

// NumFeatures is the width of a feature row.
const NumFeatures = 12

// FeatureMatrix holds one feature row per time step of the input series,
// columns ordered per FeatureNames.
type FeatureMatrix struct {
	Rows [][]float64
}

// Empty reports whether the matrix carries no rows (the soft-failure signal
// when the input series had no usable close prices).
func (m *FeatureMatrix) Empty() bool { return m == nil || len(m.Rows) == 0 }

// Len returns the number of rows.
func (m *FeatureMatrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}

// Latest returns the most recent feature row, or nil for an empty matrix.
func (m *FeatureMatrix) Latest() []float64 {
	if m.Empty() {
		return nil
	}
	return m.Rows[len(m.Rows)-1]
}
