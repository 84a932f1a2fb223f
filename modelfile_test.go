package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestModel() *Model {
	tr := buildStumpTree()

	return &Model{
		ID: "test-model", Semver: "0.1.0", Date: "2026-07-31",
		Inner: &ModelInner{
			Task: TaskRegression, Learner: LearnerTree,
			Ensemble: &Ensemble{Kind: EnsembleRegressor, Bias: 0.25, Trees: []*Tree{tr}},
		},
	}
}

func TestModelFileRoundTrip(t *testing.T) {
	m := buildTestModel()

	data, err := SerializeModel(m)
	require.NoError(t, err)

	got, err := DeserializeModel(data)
	require.NoError(t, err)

	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Semver, got.Semver)
	assert.Equal(t, m.Date, got.Date)
	require.NotNil(t, got.Inner)
	require.NotNil(t, got.Inner.Ensemble)
	assert.Equal(t, m.Inner.Ensemble.Bias, got.Inner.Ensemble.Bias)
	require.Len(t, got.Inner.Ensemble.Trees, 1)
	assert.Equal(t, len(m.Inner.Ensemble.Trees[0].Nodes), len(got.Inner.Ensemble.Trees[0].Nodes))

	for i, n := range m.Inner.Ensemble.Trees[0].Nodes {
		gotNode := got.Inner.Ensemble.Trees[0].Nodes[i]
		assert.Equal(t, n.IsLeaf, gotNode.IsLeaf)
		assert.Equal(t, n.Value, gotNode.Value)
	}
}

// TestTrainedTreeModelRoundTripsBitwise trains a real tree ensemble (not a
// hand-built fixture whose values already happen to be float32-exact) and
// checks that every leaf value and bias survives serialize/deserialize
// exactly. This only holds because fitOneTree/TrainTree snap fitted values
// to float32 precision as soon as they're computed (snapF32 in
// modelfile.go) -- the wire format is f32, so without that canonicalization
// step a freshly trained float64 value almost never round-trips bitwise.
func TestTrainedTreeModelRoundTripsBitwise(t *testing.T) {
	n := 40
	x := make([]float32, n)
	y := make([]float64, n)

	for i := 0; i < n; i++ {
		x[i] = float32(i)
		y[i] = 0.3*float64(i) - 7
	}

	opts := DefaultTrainOptions()
	opts.MaxRounds = 5
	opts.MaxLeafNodes = 4

	res, err := TrainTree(TaskRegression, []Column{&NumberColumn{Values: x}}, y, 0, opts, nil, nil, nil, nil)
	require.NoError(t, err)

	m := &Model{
		ID: "trained", Inner: &ModelInner{
			Task: TaskRegression, Learner: LearnerTree, Ensemble: res.Ensemble,
		},
	}

	data, err := SerializeModel(m)
	require.NoError(t, err)

	got, err := DeserializeModel(data)
	require.NoError(t, err)

	assert.Equal(t, m.Inner.Ensemble.Bias, got.Inner.Ensemble.Bias)
	require.Equal(t, len(m.Inner.Ensemble.Trees), len(got.Inner.Ensemble.Trees))

	for i, tr := range m.Inner.Ensemble.Trees {
		gotTree := got.Inner.Ensemble.Trees[i]
		require.Equal(t, len(tr.Nodes), len(gotTree.Nodes))

		for j, n := range tr.Nodes {
			assert.Equal(t, n.Value, gotTree.Nodes[j].Value)
			assert.Equal(t, n.ExamplesFraction, gotTree.Nodes[j].ExamplesFraction)
		}
	}
}

func TestDeserializeModelRejectsBadMagic(t *testing.T) {
	m := buildTestModel()
	data, err := SerializeModel(m)
	require.NoError(t, err)

	corrupted := append([]byte(nil), data...)
	corrupted[0] = 'X'

	_, err = DeserializeModel(corrupted)
	require.Error(t, err)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, KindFormat, engErr.Kind)
}

func TestDeserializeModelRejectsFutureRevision(t *testing.T) {
	m := buildTestModel()
	data, err := SerializeModel(m)
	require.NoError(t, err)

	corrupted := append([]byte(nil), data...)
	// revision is the little-endian u32 at bytes [8:12).
	corrupted[8] = byte(CurrentRevision + 1)
	corrupted[9] = 0
	corrupted[10] = 0
	corrupted[11] = 0

	_, err = DeserializeModel(corrupted)
	require.Error(t, err)
}

func TestDeserializeModelSkipsUnknownFieldIDs(t *testing.T) {
	m := buildTestModel()
	data, err := SerializeModel(m)
	require.NoError(t, err)

	// Append an unknown top-level field (id 99, length-prefixed
	// "future-field" payload) after the last known field; a
	// forward-compatible reader must skip it and still decode the file.
	w := &modelWriter{}
	w.writeBytes(99, []byte("future-field"))

	extended := append(append([]byte(nil), data...), w.buf.Bytes()...)

	got, err := DeserializeModel(extended)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
}

func TestLinearModelSerializationRoundTrips(t *testing.T) {
	// values already float32-exact, so exact equality holds even without
	// the snapF32 canonicalization TrainLinear applies to fitted models.
	lm := &LinearModel{
		Kind: EnsembleRegressor, NFeatures: 2, NOutputs: 1,
		FeatureMeans: []float64{1.5, -2.5},
		Bias:         []float64{0.25},
		Weights:      [][]float64{{0.5}, {-0.25}},
	}

	m := &Model{ID: "linear", Inner: &ModelInner{Task: TaskRegression, Learner: LearnerLinear, Linear: lm}}

	data, err := SerializeModel(m)
	require.NoError(t, err)

	got, err := DeserializeModel(data)
	require.NoError(t, err)
	require.NotNil(t, got.Inner.Linear)

	assert.Equal(t, lm.NFeatures, got.Inner.Linear.NFeatures)
	assert.Equal(t, lm.NOutputs, got.Inner.Linear.NOutputs)
	assert.Equal(t, lm.FeatureMeans, got.Inner.Linear.FeatureMeans)
	assert.Equal(t, lm.Bias, got.Inner.Linear.Bias)

	for i := range lm.Weights {
		assert.Equal(t, lm.Weights[i], got.Inner.Linear.Weights[i])
	}
}

// TestTrainedLinearModelRoundTripsBitwise mirrors
// TestTrainedTreeModelRoundTripsBitwise for the linear learner: a model
// produced by TrainLinear (whose weights/bias/means land on arbitrary
// float64 values from Adam SGD) must still round-trip exactly, because
// extractLinearModel snaps every field to float32 precision right after
// extracting it from the training graph.
func TestTrainedLinearModelRoundTripsBitwise(t *testing.T) {
	n := 60
	x := make([]float32, n)
	labels := make([]float64, n)

	for i := 0; i < n; i++ {
		x[i] = float32(i%13) - 6
		if x[i] > 0 {
			labels[i] = 1
		}
	}

	opts := DefaultLinearOptions()
	opts.MaxEpochs = 5
	opts.BatchSize = 16

	res, err := TrainLinear(TaskBinaryClassification, []Column{&NumberColumn{Values: x}}, labels, 0, opts, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Model)

	m := &Model{ID: "trained-linear", Inner: &ModelInner{Task: TaskBinaryClassification, Learner: LearnerLinear, Linear: res.Model}}

	data, err := SerializeModel(m)
	require.NoError(t, err)

	got, err := DeserializeModel(data)
	require.NoError(t, err)
	require.NotNil(t, got.Inner.Linear)

	assert.Equal(t, res.Model.FeatureMeans, got.Inner.Linear.FeatureMeans)
	assert.Equal(t, res.Model.Bias, got.Inner.Linear.Bias)

	for i := range res.Model.Weights {
		assert.Equal(t, res.Model.Weights[i], got.Inner.Linear.Weights[i])
	}
}
