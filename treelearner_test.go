package tabular

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitGainZeroWhenNoSeparation(t *testing.T) {
	// splitting a leaf exactly in half with identical gradient stats on
	// both sides must not look better than not splitting.
	gain := splitGain(5, 10, 5, 10, 10, 20, 0)
	assert.InDelta(t, 0.0, gain, 1e-9)
}

func TestSplitIsBetterTieBreaksOnFeatureThenBin(t *testing.T) {
	a := &splitCandidate{gain: 1.0, split: Split{FeatureIdx: 1, BinIndex: 5}}
	b := &splitCandidate{gain: 1.0, split: Split{FeatureIdx: 0, BinIndex: 9}}
	assert.True(t, splitIsBetter(b, a)) // lower feature index wins on a gain tie

	c := &splitCandidate{gain: 1.0, split: Split{FeatureIdx: 0, BinIndex: 1}}
	d := &splitCandidate{gain: 1.0, split: Split{FeatureIdx: 0, BinIndex: 2}}
	assert.True(t, splitIsBetter(c, d))

	e := &splitCandidate{gain: 2.0, split: Split{FeatureIdx: 5, BinIndex: 5}}
	f := &splitCandidate{gain: 1.0, split: Split{FeatureIdx: 0, BinIndex: 0}}
	assert.True(t, splitIsBetter(e, f)) // higher gain always wins first
}

func TestTrainTreeRegressionRecoversLinearTrend(t *testing.T) {
	n := 10
	x := make([]float32, n)
	y := make([]float64, n)

	for i := 0; i < n; i++ {
		x[i] = float32(i)
		y[i] = 2*float64(i) + 1
	}

	features := []Column{&NumberColumn{Values: x}}
	opts := DefaultTrainOptions()
	opts.MaxRounds = 50
	opts.LearningRate = 0.1
	opts.MaxLeafNodes = 8
	opts.MinExamplesPerNode = 1

	res, err := TrainTree(TaskRegression, features, y, 0, opts, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Ensemble)

	instr := res.Instructions
	bm, err := BuildBinnedMatrix(features, instr, RowMajor)
	require.NoError(t, err)

	// predict at x=9 (the last training point, which the model has seen
	// and should fit tightly): y = 2*9+1 = 19.
	bins := rowBins(bm, 9)
	invalid := rowInvalid(bm, 9)
	pred := res.Ensemble.PredictRegressor(bins, invalid)

	assert.InDelta(t, 19.0, pred, 2.0)
}

func TestTrainTreeBinaryClassificationSeparatesXOR(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	n := 400
	f0 := make([]float32, n)
	f1 := make([]float32, n)
	labels := make([]float64, n)

	for i := 0; i < n; i++ {
		a := rng.Float32() > 0.5
		b := rng.Float32() > 0.5

		if a {
			f0[i] = 1
		}

		if b {
			f1[i] = 1
		}

		if a != b {
			labels[i] = 1
		}
	}

	features := []Column{&NumberColumn{Values: f0}, &NumberColumn{Values: f1}}
	opts := DefaultTrainOptions()
	opts.MaxRounds = 40
	opts.MaxLeafNodes = 8
	opts.MinExamplesPerNode = 5

	res, err := TrainTree(TaskBinaryClassification, features, labels, 0, opts, nil, nil, nil, nil)
	require.NoError(t, err)

	bm, err := BuildBinnedMatrix(features, res.Instructions, RowMajor)
	require.NoError(t, err)

	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = res.Ensemble.PredictBinaryProbability(rowBins(bm, i), rowInvalid(bm, i))
	}

	roc := ComputeROC(scores, labels)
	assert.Greater(t, roc.AUC, 0.95)
}

func TestTrainTreeMulticlassClassificationSeparatesThreeBlobs(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	n := 300
	x0 := make([]float32, n)
	x1 := make([]float32, n)
	labels := make([]float64, n)

	centers := [][2]float32{{0, 0}, {10, 0}, {5, 10}}

	for i := 0; i < n; i++ {
		cls := i % 3
		c := centers[cls]

		x0[i] = c[0] + float32(rng.NormFloat64())
		x1[i] = c[1] + float32(rng.NormFloat64())
		labels[i] = float64(cls)
	}

	features := []Column{&NumberColumn{Values: x0}, &NumberColumn{Values: x1}}
	opts := DefaultTrainOptions()
	opts.MaxRounds = 100
	opts.MaxLeafNodes = 8
	opts.MinExamplesPerNode = 5

	res, err := TrainTree(TaskMulticlassClassification, features, labels, 3, opts, nil, nil, nil, nil)
	require.NoError(t, err)

	bm, err := BuildBinnedMatrix(features, res.Instructions, RowMajor)
	require.NoError(t, err)

	correct := 0

	for i := 0; i < n; i++ {
		probs := res.Ensemble.PredictMulticlassProbabilities(rowBins(bm, i), rowInvalid(bm, i))

		best := 0
		for c := 1; c < len(probs); c++ {
			if probs[c] > probs[best] {
				best = c
			}
		}

		if float64(best) == labels[i] {
			correct++
		}
	}

	accuracy := float64(correct) / float64(n)
	assert.GreaterOrEqual(t, accuracy, 0.9)
}

func TestTrainTreeDeterministicAcrossRuns(t *testing.T) {
	n := 50
	x := make([]float32, n)
	y := make([]float64, n)

	for i := 0; i < n; i++ {
		x[i] = float32(i % 7)
		y[i] = math.Sin(float64(i))
	}

	run := func() *TrainTreeResult {
		features := []Column{&NumberColumn{Values: append([]float32(nil), x...)}}
		opts := DefaultTrainOptions()
		opts.MaxRounds = 10
		opts.MaxLeafNodes = 4

		res, err := TrainTree(TaskRegression, features, append([]float64(nil), y...), 0, opts, nil, nil, nil, nil)
		require.NoError(t, err)

		return res
	}

	a := run()
	b := run()

	require.Equal(t, len(a.Ensemble.Trees), len(b.Ensemble.Trees))

	for i := range a.Ensemble.Trees {
		require.Equal(t, len(a.Ensemble.Trees[i].Nodes), len(b.Ensemble.Trees[i].Nodes))

		for j := range a.Ensemble.Trees[i].Nodes {
			assert.Equal(t, a.Ensemble.Trees[i].Nodes[j].Value, b.Ensemble.Trees[i].Nodes[j].Value)
		}
	}
}

func TestTrainTreeCancellationReturnsPartialModel(t *testing.T) {
	n := 100
	x := make([]float32, n)
	y := make([]float64, n)

	for i := 0; i < n; i++ {
		x[i] = float32(i)
		y[i] = float64(i)
	}

	kill := NewKillChip()

	rounds := 0
	progress := func(ev ProgressEvent) {
		if ev.Kind == EventRoundComplete {
			rounds++

			if rounds == 3 {
				kill.Trip()
			}
		}
	}

	opts := DefaultTrainOptions()
	opts.MaxRounds = 100

	res, err := TrainTree(TaskRegression, []Column{&NumberColumn{Values: x}}, y, 0, opts, nil, nil, kill, progress)
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.Less(t, len(res.Ensemble.Trees), 100)
	assert.NotEmpty(t, res.Ensemble.Trees)
}

func TestTrainTreeRejectsTooFewLeafNodes(t *testing.T) {
	_, err := TrainTree(TaskRegression, []Column{&NumberColumn{Values: []float32{1, 2}}}, []float64{1, 2}, 0, TrainOptions{MaxLeafNodes: 1, MaxRounds: 1}, nil, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, Is(err, ErrTree))
}

func TestEarlyStopStateStopsAfterConfiguredRounds(t *testing.T) {
	es := &earlyStopState{}
	opts := EarlyStoppingOptions{NRoundsWithoutImprovementToStop: 2, MinDecreaseInLossForSignificantChange: 0.01}

	assert.False(t, es.update(1.0, opts))
	assert.False(t, es.update(1.005, opts)) // not a significant decrease -> 1 round without improvement
	assert.True(t, es.update(1.005, opts))  // 2 rounds without improvement -> stop
}
