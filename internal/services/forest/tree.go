package forest

import "sort"

// node is one split (or leaf) of a regression tree, stored flat so the whole
// tree serializes as a plain slice.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a CART regression tree grown by variance reduction.
type Tree struct {
	Nodes []node `json:"nodes"`
}

// Predict walks the tree to the leaf value for one feature row.
func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	X        [][]float64
	y        []float64
	maxDepth int
	minLeaf  int
	nodes    []node
	// impurity decrease accumulated per feature, weighted by node size over
	// the bootstrap sample size
	importance []float64
	total      float64
}

func growTree(X [][]float64, y []float64, idx []int, maxDepth, minLeaf, numFeatures int) (*Tree, []float64) {
	b := &treeBuilder{
		X:          X,
		y:          y,
		maxDepth:   maxDepth,
		minLeaf:    minLeaf,
		importance: make([]float64, numFeatures),
		total:      float64(len(idx)),
	}
	b.build(idx, 0)
	return &Tree{Nodes: b.nodes}, b.importance
}

// build grows the subtree for idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	mean, sse := meanSSE(b.y, idx)
	self := len(b.nodes)
	b.nodes = append(b.nodes, node{Leaf: true, Value: mean})

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf || sse == 0 {
		return self
	}

	feature, threshold, gain, ok := b.bestSplit(idx, sse)
	if !ok {
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minLeaf || len(right) < b.minLeaf {
		return self
	}

	b.importance[feature] += gain / b.total

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self] = node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

// bestSplit scans every feature for the threshold that minimizes the summed
// squared error of the two children. gain is the SSE decrease.
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (feature int, threshold, gain float64, ok bool) {
	nf := len(b.X[idx[0]])
	order := make([]int, len(idx))

	bestGain := 0.0
	for f := 0; f < nf; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

		var sumL, sqL float64
		sumR, sqR := 0.0, 0.0
		for _, i := range order {
			sumR += b.y[i]
			sqR += b.y[i] * b.y[i]
		}
		n := float64(len(order))
		nL := 0.0
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			sumL += b.y[i]
			sqL += b.y[i] * b.y[i]
			sumR -= b.y[i]
			sqR -= b.y[i] * b.y[i]
			nL++
			nR := n - nL

			// identical feature values cannot be separated
			if b.X[i][f] == b.X[order[k+1]][f] {
				continue
			}
			if int(nL) < b.minLeaf || int(nR) < b.minLeaf {
				continue
			}
			sseL := sqL - sumL*sumL/nL
			sseR := sqR - sumR*sumR/nR
			g := parentSSE - sseL - sseR
			if g > bestGain {
				bestGain = g
				feature = f
				threshold = (b.X[i][f] + b.X[order[k+1]][f]) / 2
				ok = true
			}
		}
	}
	return feature, threshold, bestGain, ok
}

func meanSSE(y []float64, idx []int) (mean, sse float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	var sum, sq float64
	for _, i := range idx {
		sum += y[i]
		sq += y[i] * y[i]
	}
	n := float64(len(idx))
	mean = sum / n
	sse = sq - sum*sum/n
	if sse < 0 {
		sse = 0
	}
	return mean, sse
}
