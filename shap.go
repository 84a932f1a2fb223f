package tabular

// shap.go implements spec.md §4.10: exact per-example feature-contribution
// explanations. Grounded on the tree traversal idiom of tree.go (contiguous
// node array, forward indices) and the linear model of linear.go -- no
// teacher analogue exists for SHAP itself (seafan has no explanation
// module), so the algorithm follows the spec's own exact-tree-SHAP recipe:
// the recursive hot/cold path-tracking scheme from Lundberg, Erion & Lee's
// "Consistent Individualized Feature Attribution for Tree Ensembles", which
// recurses into both the branch an example actually takes (hot) and the one
// it doesn't (cold) with weights derived from each node's example coverage,
// then distributes every leaf's value back across every feature on its path
// via a combinatorial weighting term (unwoundPathSum below). This is what
// makes the result the true Shapley decomposition rather than a single
// root-to-leaf walk: a feature split more than once on a path, or a tree
// deeper than one split, only comes out right if the cold branch is
// accounted for too.

// FeatureContributions is one example's additive decomposition: Bias plus
// Contributions sums (within floating-point error) to the model's raw
// output for that example, per spec.md §4.10's testable property.
type FeatureContributions struct {
	Bias          float64
	Contributions []float64 // one per feature, same order as the training feature columns
}

// pathElement is one frame of the root-to-current-node path SHAP walks:
// which feature branched here, what fraction of the parent's examples went
// each way (zeroFraction for "doesn't have this feature value", oneFraction
// for "does"), and the combinatorial path weight pweight.
type pathElement struct {
	feature      int
	zeroFraction float64
	oneFraction  float64
	pweight      float64
}

// extendPath appends one more branch to the path and rebalances every
// earlier frame's weight to account for the new feature, per the
// algorithm's EXTEND step.
func extendPath(path []pathElement, zeroFraction, oneFraction float64, feature int) []pathElement {
	l := len(path)

	w := 0.0
	if l == 0 {
		w = 1
	}

	path = append(path, pathElement{feature: feature, zeroFraction: zeroFraction, oneFraction: oneFraction, pweight: w})

	for i := l - 1; i >= 0; i-- {
		path[i+1].pweight += oneFraction * path[i].pweight * float64(i+1) / float64(l+1)
		path[i].pweight = zeroFraction * path[i].pweight * float64(l-i) / float64(l+1)
	}

	return path
}

// unwindPath removes pathIndex's feature from the path, undoing the weight
// rebalancing extendPath applied when it was added. Used when a split's
// feature has already appeared higher up the same path.
func unwindPath(path []pathElement, pathIndex int) []pathElement {
	l := len(path) - 1
	oneFraction := path[pathIndex].oneFraction
	zeroFraction := path[pathIndex].zeroFraction
	nextOnePortion := path[l].pweight

	for i := l - 1; i >= 0; i-- {
		if oneFraction != 0 {
			tmp := path[i].pweight
			path[i].pweight = nextOnePortion * float64(l+1) / (float64(i+1) * oneFraction)
			nextOnePortion = tmp - path[i].pweight*zeroFraction*float64(l-i)/float64(l+1)
		} else if zeroFraction != 0 {
			path[i].pweight = (path[i].pweight * float64(l+1)) / (zeroFraction * float64(l-i))
		}
	}

	for i := pathIndex; i < l; i++ {
		path[i].feature = path[i+1].feature
		path[i].zeroFraction = path[i+1].zeroFraction
		path[i].oneFraction = path[i+1].oneFraction
	}

	return path[:l]
}

// unwoundPathSum computes the combinatorial weight a leaf contributes to
// pathIndex's feature without mutating the path, per the algorithm's
// UNWOUND_SUM step.
func unwoundPathSum(path []pathElement, pathIndex int) float64 {
	l := len(path) - 1
	oneFraction := path[pathIndex].oneFraction
	zeroFraction := path[pathIndex].zeroFraction
	nextOnePortion := path[l].pweight
	total := 0.0

	for i := l - 1; i >= 0; i-- {
		if oneFraction != 0 {
			tmp := nextOnePortion / (float64(i+1) * oneFraction / float64(l+1))
			total += tmp
			nextOnePortion = path[i].pweight - tmp*zeroFraction*float64(l-i)/float64(l+1)
		} else if zeroFraction != 0 {
			total += (path[i].pweight / zeroFraction) / (float64(l-i) / float64(l+1))
		}
	}

	return total
}

func pathIndexForFeature(path []pathElement, feature int) int {
	for i, p := range path {
		if p.feature == feature {
			return i
		}
	}

	return -1
}

// TreeShap computes exact SHAP contributions for one example against one
// tree, per spec.md §4.10, recursing into both the hot (observed) and cold
// (other) branch at every split.
func TreeShap(t *Tree, bins []uint16, invalid []bool, nFeatures int) []float64 {
	contrib := make([]float64, nFeatures)
	treeShapRecurse(t, 0, bins, invalid, nil, 1, 1, -1, contrib)

	return contrib
}

func treeShapRecurse(t *Tree, nodeIdx int, bins []uint16, invalid []bool, path []pathElement, zeroFraction, oneFraction float64, feature int, contrib []float64) {
	path = extendPath(path, zeroFraction, oneFraction, feature)

	n := &t.Nodes[nodeIdx]

	if n.IsLeaf {
		for i := 1; i < len(path); i++ {
			w := unwoundPathSum(path, i)
			contrib[path[i].feature] += w * (path[i].oneFraction - path[i].zeroFraction) * n.Value
		}

		return
	}

	f := n.Split.FeatureIdx
	goLeft := n.Split.Evaluate(bins[f], invalid[f])

	hotIdx, coldIdx := n.RightIdx, n.LeftIdx
	if goLeft {
		hotIdx, coldIdx = n.LeftIdx, n.RightIdx
	}

	hotFraction := coverRatio(&t.Nodes[hotIdx], n)
	coldFraction := coverRatio(&t.Nodes[coldIdx], n)

	incomingZero, incomingOne := 1.0, 1.0

	if k := pathIndexForFeature(path, f); k >= 0 {
		incomingZero = path[k].zeroFraction
		incomingOne = path[k].oneFraction
		path = unwindPath(path, k)
	}

	hotPath := append([]pathElement(nil), path...)
	treeShapRecurse(t, hotIdx, bins, invalid, hotPath, incomingZero*hotFraction, incomingOne, f, contrib)
	treeShapRecurse(t, coldIdx, bins, invalid, path, incomingZero*coldFraction, 0, f, contrib)
}

// coverRatio is child's share of parent's training examples, the fraction
// extendPath/unwindPath need to weight the hot and cold branches.
func coverRatio(child, parent *Node) float64 {
	if parent.ExamplesFraction <= 0 {
		return 0.5
	}

	return child.ExamplesFraction / parent.ExamplesFraction
}

// meanValue returns the tree's root expected value: the example-count
// weighted average of all leaf values, used as the ensemble's baseline
// (spec.md §4.10's "bias" term every contribution is measured against).
func (t *Tree) meanValue() float64 {
	var sum, weight float64

	for _, n := range t.Nodes {
		if n.IsLeaf {
			sum += n.Value * n.ExamplesFraction
			weight += n.ExamplesFraction
		}
	}

	if weight == 0 {
		return 0
	}

	return sum / weight
}

// EnsembleTreeShap computes FeatureContributions across a whole ensemble's
// trees (all of the ensemble's trees for regression/binary, or the trees for
// a single target class in a multiclass one-vs-rest decomposition).
func EnsembleTreeShap(trees []*Tree, bias float64, bins []uint16, invalid []bool, nFeatures int) *FeatureContributions {
	total := make([]float64, nFeatures)
	baselineSum := bias

	for _, t := range trees {
		c := TreeShap(t, bins, invalid, nFeatures)

		for i := range total {
			total[i] += c[i]
		}

		baselineSum += t.meanValue()
	}

	return &FeatureContributions{Bias: baselineSum, Contributions: total}
}

// LinearShap returns each feature's contribution as coefficient times
// (mean-centered) value, the exact decomposition for an affine model, per
// spec.md §4.10.
func LinearShap(m *LinearModel, centeredRow []float64, outputIdx int) *FeatureContributions {
	contrib := make([]float64, len(centeredRow))

	for j, x := range centeredRow {
		contrib[j] = x * m.Weights[j][outputIdx]
	}

	return &FeatureContributions{Bias: m.Bias[outputIdx], Contributions: contrib}
}

// Sum returns Bias + the sum of Contributions, which must equal the
// model's raw output for the same example within 1e-4 relative error, per
// spec.md §8.
func (f *FeatureContributions) Sum() float64 {
	sum := f.Bias

	for _, c := range f.Contributions {
		sum += c
	}

	return sum
}
