package tabular

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureMatrixCentersNumberColumns(t *testing.T) {
	col := &NumberColumn{Values: []float32{1, 2, 3}}
	mat, means := featureMatrix([]Column{col})

	assert.InDelta(t, 2.0, means[0], 1e-9)
	assert.InDelta(t, -1.0, mat[0][0], 1e-9)
	assert.InDelta(t, 0.0, mat[1][0], 1e-9)
	assert.InDelta(t, 1.0, mat[2][0], 1e-9)
}

func TestTrainLinearBinaryClassifierSeparatesLinearlySeparableData(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	n := 300
	x := make([]float32, n)
	labels := make([]float64, n)

	for i := 0; i < n; i++ {
		v := rng.Float32()*10 - 5
		x[i] = v

		if v > 0 {
			labels[i] = 1
		}
	}

	features := []Column{&NumberColumn{Values: x}}
	opts := DefaultLinearOptions()
	opts.MaxEpochs = 20
	opts.BatchSize = 32
	opts.LearningRateStart = 0.05
	opts.LearningRateEnd = 0.01
	opts.L2Penalty = 1e-4

	res, err := TrainLinear(TaskBinaryClassification, features, labels, 0, opts, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Model)

	correct := 0

	for i := 0; i < n; i++ {
		row := res.Model.CenterRow([]float64{float64(x[i])})
		p := res.Model.PredictLinearBinaryProbability(row)

		pred := 0.0
		if p >= 0.5 {
			pred = 1.0
		}

		if pred == labels[i] {
			correct++
		}
	}

	accuracy := float64(correct) / float64(n)
	assert.GreaterOrEqual(t, accuracy, 0.9)
}

func TestLinearRegressorPredictIsAffine(t *testing.T) {
	m := &LinearModel{
		NFeatures: 2, NOutputs: 1,
		Bias:    []float64{1.0},
		Weights: [][]float64{{2.0}, {-1.0}},
	}

	got := m.PredictLinearRegressor([]float64{3, 4})
	assert.InDelta(t, 1.0+2.0*3-1.0*4, got, 1e-9)
}

func TestCenterRowSubtractsFittedMeans(t *testing.T) {
	m := &LinearModel{FeatureMeans: []float64{1, 2, 3}}
	got := m.CenterRow([]float64{1, 1, 1})
	assert.Equal(t, []float64{0, -1, -2}, got)
}

func TestBuildLabelMatrixMulticlassIsOneHotOverAllClasses(t *testing.T) {
	rows := buildLabelMatrix(TaskMulticlassClassification, []float64{0, 1, 2}, 3)

	assert.Equal(t, []float64{1, 0, 0}, rows[0])
	assert.Equal(t, []float64{0, 1, 0}, rows[1])
	assert.Equal(t, []float64{0, 0, 1}, rows[2]) // last class gets its own column too
}
