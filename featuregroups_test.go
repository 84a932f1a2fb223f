package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureGroupWidthPerVariant(t *testing.T) {
	assert.Equal(t, 1, (&FeatureGroup{Kind: GroupIdentity}).Width())
	assert.Equal(t, 1, (&FeatureGroup{Kind: GroupNormalized}).Width())
	assert.Equal(t, 4, (&FeatureGroup{Kind: GroupOneHotEncoded, NVariants: 3}).Width())
	assert.Equal(t, 2, (&FeatureGroup{Kind: GroupBagOfWords, Vocabulary: []string{"a", "b"}}).Width())
	assert.Equal(t, 1, (&FeatureGroup{Kind: GroupBagOfWordsCosineSimilarity, VocabSubsetsA: [][]string{{"a"}}}).Width())
	assert.Equal(t, 0, (&FeatureGroup{Kind: GroupWordEmbedding}).Width())
	assert.Equal(t, 4, (&FeatureGroup{Kind: GroupWordEmbedding, Embeddings: NewEmbeddingTable(4, nil)}).Width())
}

func TestFitNormalizedComputesMeanAndVariance(t *testing.T) {
	col := &NumberColumn{Values: []float32{1, 2, 3, 4, 5}}
	g := FitNormalized("x", col)

	assert.Equal(t, GroupNormalized, g.Kind)
	assert.InDelta(t, 3.0, g.Mean, 1e-9)
	assert.InDelta(t, 2.5, g.Variance, 1e-9)
}

func TestFitOneHotStoresVariantCount(t *testing.T) {
	g := FitOneHot("color", 3)
	assert.Equal(t, 3, g.NVariants)
	assert.Equal(t, 4, g.Width())
}

func TestFitBagOfWordsBuildsVocabOrderedByFrequencyThenLex(t *testing.T) {
	col := &TextColumn{Values: []string{"a b", "a c", "a"}}
	g := FitBagOfWords("doc", col, DefaultTokenizer(), BoWCount, 0, false)

	assert.Equal(t, []string{"a", "b", "c"}, g.Vocabulary)
}

func TestComputeRowIdentityPassesThroughNumberColumn(t *testing.T) {
	g := &FeatureGroup{Kind: GroupIdentity}
	col := &NumberColumn{Values: []float32{7}}

	out := make([]float64, 1)
	require.NoError(t, g.computeRowF64(0, col, nil, out))
	assert.InDelta(t, 7.0, out[0], 1e-9)
}

func TestComputeRowNormalizedStandardizesValue(t *testing.T) {
	g := &FeatureGroup{Kind: GroupNormalized, Mean: 2, Variance: 4}
	col := &NumberColumn{Values: []float32{4}}

	out := make([]float64, 1)
	require.NoError(t, g.computeRowF64(0, col, nil, out))
	assert.InDelta(t, 1.0, out[0], 1e-9) // (4-2)/sqrt(4)
}

func TestComputeRowOneHotSetsSinglePosition(t *testing.T) {
	g := &FeatureGroup{Kind: GroupOneHotEncoded, NVariants: 3}
	col := &EnumColumn{Variants: []string{"a", "b", "c"}, Values: []uint32{2}}

	out := make([]float64, 4)
	require.NoError(t, g.computeRowF64(0, col, nil, out))
	assert.Equal(t, []float64{0, 0, 1, 0}, out)
}

func TestComputeArrayValueRejectsWrongBufferLength(t *testing.T) {
	g := &FeatureGroup{Kind: GroupIdentity}
	col := &NumberColumn{Values: []float32{1, 2}}

	err := g.ComputeArrayValue(make([]TableValue, 1), col, nil, 2)
	require.Error(t, err)
	assert.True(t, Is(err, ErrFeature))
}

func TestBagOfWordsCosineSimilarityIdenticalDocsIsOne(t *testing.T) {
	g := &FeatureGroup{
		Kind:          GroupBagOfWordsCosineSimilarity,
		Tokenizer:     DefaultTokenizer(),
		VocabSubsetsA: [][]string{{"a", "b"}},
		VocabSubsetsB: [][]string{{"a", "b"}},
	}

	colA := &TextColumn{Values: []string{"a b a"}}
	colB := &TextColumn{Values: []string{"a b a"}}

	out := make([]float64, 1)
	require.NoError(t, g.computeRowF64(0, colA, colB, out))
	assert.InDelta(t, 1.0, out[0], 1e-9)
}

func TestWordEmbeddingAveragesKnownTokenVectors(t *testing.T) {
	table := NewEmbeddingTable(2, map[string][]float32{"cat": {1, 1}, "dog": {3, 3}})
	g := &FeatureGroup{Kind: GroupWordEmbedding, Tokenizer: DefaultTokenizer(), Embeddings: table}

	col := &TextColumn{Values: []string{"cat dog unknownword"}}
	out := make([]float64, 2)
	require.NoError(t, g.computeRowF64(0, col, nil, out))

	assert.InDelta(t, 2.0, out[0], 1e-9)
	assert.InDelta(t, 2.0, out[1], 1e-9)
}

func TestComputeTableProducesOneColumnPerWidth(t *testing.T) {
	g := &FeatureGroup{Kind: GroupOneHotEncoded, NVariants: 2}
	col := &EnumColumn{Variants: []string{"a", "b"}, Values: []uint32{0, 1}}

	cols, err := g.ComputeTable(col, nil, 2)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, float32(1), cols[0].Values[0])
	assert.Equal(t, float32(1), cols[1].Values[1])
}
