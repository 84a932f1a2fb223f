package tabular

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeROCPerfectClassifierHasAUCOne(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.2, 0.1}
	labels := []float64{1, 1, 0, 0}

	roc := ComputeROC(scores, labels)
	assert.InDelta(t, 1.0, roc.AUC, 1e-9)
}

func TestComputeROCConstantScoreHasAUCHalf(t *testing.T) {
	scores := []float64{0.5, 0.5, 0.5, 0.5}
	labels := []float64{1, 0, 1, 0}

	roc := ComputeROC(scores, labels)
	assert.InDelta(t, 0.5, roc.AUC, 1e-9)
}

func TestComputeROCReversedScoresInvertAUC(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.2, 0.1}
	labels := []float64{1, 1, 0, 0}

	forward := ComputeROC(scores, labels)

	reversedScores := make([]float64, len(scores))
	for i, s := range scores {
		reversedScores[i] = 1 - s
	}

	reversed := ComputeROC(reversedScores, labels)
	assert.InDelta(t, 1.0-forward.AUC, reversed.AUC, 1e-9)
}

func TestStatAUCAgreesWithComputeROC(t *testing.T) {
	scores := []float64{0.9, 0.4, 0.6, 0.1, 0.8}
	labels := []float64{1, 0, 1, 0, 1}

	roc := ComputeROC(scores, labels)
	assert.InDelta(t, roc.AUC, StatAUC(roc), 1e-9)
}

func TestConfusionMatrixAndDerivedRates(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.3, 0.1}
	labels := []float64{1, 0, 1, 0}

	cm := ComputeConfusionMatrix(scores, labels, 0.5)
	assert.Equal(t, 1, cm.TruePositive)
	assert.Equal(t, 1, cm.FalsePositive)
	assert.Equal(t, 1, cm.TrueNegative)
	assert.Equal(t, 1, cm.FalseNegative)

	acc, ok := cm.Accuracy()
	assert.True(t, ok)
	assert.InDelta(t, 0.5, acc, 1e-9)
}

func TestSafeDivReturnsNotOkOnZeroDenominator(t *testing.T) {
	cm := &ConfusionMatrix{}
	_, ok := cm.Precision()
	assert.False(t, ok)
}

func TestComputeMulticlassMetricsMacroF1(t *testing.T) {
	probs := [][]float64{
		{0.9, 0.05, 0.05},
		{0.1, 0.8, 0.1},
		{0.2, 0.2, 0.6},
	}
	labels := []float64{0, 1, 2}

	mm := ComputeMulticlassMetrics(probs, labels, 3, 0.5)
	assert.InDelta(t, 1.0, mm.MacroF1, 1e-9)
	assert.InDelta(t, 1.0, mm.MicroF1, 1e-9)
}

func TestComputeRegressionMetrics(t *testing.T) {
	predicted := []float64{1, 2, 3}
	actual := []float64{1, 2, 4}

	rm := ComputeRegressionMetrics(predicted, actual)
	assert.InDelta(t, 1.0/3.0, rm.MSE, 1e-9)
	assert.InDelta(t, math.Sqrt(1.0/3.0), rm.RMSE, 1e-9)
	assert.InDelta(t, 1.0/3.0, rm.MAE, 1e-9)
}
