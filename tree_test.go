package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildStumpTree() *Tree {
	// root splits continuous feature 0 at bin 2 (<=2 goes left); leaves -1/+1.
	return &Tree{
		Nodes: []Node{
			{
				IsLeaf: false,
				Split: Split{
					Kind: SplitContinuous, FeatureIdx: 0, BinIndex: 2,
					InvalidDirectionCont: DirectionLeft,
				},
				LeftIdx: 1, RightIdx: 2,
			},
			{IsLeaf: true, Value: -1, ExamplesFraction: 0.5},
			{IsLeaf: true, Value: 1, ExamplesFraction: 0.5},
		},
	}
}

func TestTreePredictFollowsSplitDirection(t *testing.T) {
	tr := buildStumpTree()

	assert.Equal(t, -1.0, tr.Predict([]uint16{1}, []bool{false}))
	assert.Equal(t, -1.0, tr.Predict([]uint16{2}, []bool{false}))
	assert.Equal(t, 1.0, tr.Predict([]uint16{3}, []bool{false}))
}

func TestTreePredictRoutesInvalidPerDirection(t *testing.T) {
	tr := buildStumpTree()
	assert.Equal(t, -1.0, tr.Predict([]uint16{0}, []bool{true}))
}

func TestDiscreteSplitEvaluatesLeftVariants(t *testing.T) {
	s := &Split{
		Kind: SplitDiscrete, FeatureIdx: 0,
		LeftVariants:             map[uint32]bool{1: true, 3: true},
		InvalidDirectionDiscrete: DirectionRight,
	}

	assert.True(t, s.Evaluate(1, false))
	assert.False(t, s.Evaluate(2, false))
	assert.False(t, s.Evaluate(0, true)) // invalid routed right
}

func TestFeatureImportanceNormalizesToOne(t *testing.T) {
	tr := buildStumpTree()
	imp := FeatureImportance([]*Tree{tr}, 2, nil, false)

	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
	assert.InDelta(t, 1.0, imp[0], 1e-9)
	assert.InDelta(t, 0.0, imp[1], 1e-9)
}

func TestEnsemblePredictRegressorSumsBiasAndTrees(t *testing.T) {
	e := &Ensemble{Kind: EnsembleRegressor, Bias: 0.5, Trees: []*Tree{buildStumpTree()}}
	got := e.PredictRegressor([]uint16{1}, []bool{false})
	assert.InDelta(t, -0.5, got, 1e-9)
}

func TestEnsembleBinaryProbabilityIsSigmoidOfLogit(t *testing.T) {
	e := &Ensemble{Kind: EnsembleBinaryClassifier, Bias: 0}
	p := e.PredictBinaryProbability([]uint16{0}, []bool{true})
	assert.InDelta(t, 0.5, p, 1e-9)
}

func TestSoftmaxSumsToOne(t *testing.T) {
	out := softmax([]float64{1, 2, 3})
	sum := out[0] + out[1] + out[2]
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, out[2], out[0])
}
