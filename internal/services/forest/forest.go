// Package forest implements a bagged regression-tree ensemble used as the
// per-ticker price-movement model. Training is deterministic for a fixed
// seed, and a trained forest round-trips exactly through its JSON encoding.
package forest

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Config controls ensemble training.
type Config struct {
	Trees    int   `yaml:"trees"`
	MaxDepth int   `yaml:"max_depth"`
	MinLeaf  int   `yaml:"min_leaf"`
	Seed     int64 `yaml:"seed"`
}

// DefaultConfig mirrors the production model parameters: 100 trees of depth
// 10 with a fixed seed for reproducibility.
func DefaultConfig() Config {
	return Config{Trees: 100, MaxDepth: 10, MinLeaf: 1, Seed: 42}
}

// ModelType names the algorithm in external reports.
const ModelType = "Random Forest"

// Forest is the trained ensemble.
type Forest struct {
	Trees       []*Tree   `json:"trees"`
	Importances []float64 `json:"feature_importances"`
	NumFeatures int       `json:"num_features"`
	Seed        int64     `json:"seed"`
}

// Train grows cfg.Trees trees, each on a bootstrap resample of (X, y).
// Feature importances are the per-tree normalized impurity decreases
// averaged across the ensemble, re-normalized to sum to one.
func Train(X [][]float64, y []float64, cfg Config) (*Forest, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("forest: bad training shape: %d rows, %d targets", len(X), len(y))
	}
	if cfg.Trees <= 0 || cfg.MaxDepth <= 0 {
		return nil, fmt.Errorf("forest: invalid config: trees=%d depth=%d", cfg.Trees, cfg.MaxDepth)
	}
	minLeaf := cfg.MinLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	nf := len(X[0])
	n := len(X)
	f := &Forest{
		Trees:       make([]*Tree, 0, cfg.Trees),
		Importances: make([]float64, nf),
		NumFeatures: nf,
		Seed:        cfg.Seed,
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	idx := make([]int, n)
	for t := 0; t < cfg.Trees; t++ {
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		tree, imp := growTree(X, y, idx, cfg.MaxDepth, minLeaf, nf)
		f.Trees = append(f.Trees, tree)

		normalize(imp)
		for j, v := range imp {
			f.Importances[j] += v
		}
	}
	for j := range f.Importances {
		f.Importances[j] /= float64(cfg.Trees)
	}
	normalize(f.Importances)
	return f, nil
}

// Predict averages the tree predictions for one feature row.
func (f *Forest) Predict(row []float64) (float64, error) {
	if len(row) != f.NumFeatures {
		return 0, fmt.Errorf("forest: row has %d features, model expects %d", len(row), f.NumFeatures)
	}
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.Predict(row)
	}
	return sum / float64(len(f.Trees)), nil
}

// Marshal encodes the forest for blob storage.
func (f *Forest) Marshal() ([]byte, error) { return json.Marshal(f) }

// UnmarshalForest decodes a forest blob and sanity-checks its shape.
func UnmarshalForest(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("forest: decode: %w", err)
	}
	if len(f.Trees) == 0 || f.NumFeatures == 0 {
		return nil, fmt.Errorf("forest: decoded blob is empty")
	}
	return &f, nil
}

func normalize(xs []float64) {
	sum := 0.0
	for _, v := range xs {
		sum += v
	}
	if sum == 0 {
		return
	}
	for i := range xs {
		xs[i] /= sum
	}
}
