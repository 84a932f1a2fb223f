package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeLowercasesAndSplitsOnWhitespace(t *testing.T) {
	tok := DefaultTokenizer()
	got := tok.Tokenize("Hello   World\tFoo")
	assert.Equal(t, []string{"hello", "world", "foo"}, got)
}

func TestTokenizePreservesCaseWhenDisabled(t *testing.T) {
	tok := TokenizerConfig{Lowercase: false, Ngrams: []NgramSize{Unigram}}
	got := tok.Tokenize("Hello World")
	assert.Equal(t, []string{"Hello", "World"}, got)
}

func TestNgramsUnigram(t *testing.T) {
	tok := TokenizerConfig{Ngrams: []NgramSize{Unigram}}
	got := tok.Ngrams([]string{"a", "b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestNgramsBigram(t *testing.T) {
	tok := TokenizerConfig{Ngrams: []NgramSize{Bigram}}
	got := tok.Ngrams([]string{"a", "b", "c"})
	assert.Equal(t, []string{"a b", "b c"}, got)
}

func TestNgramsCombinedUnigramAndBigram(t *testing.T) {
	tok := TokenizerConfig{Ngrams: []NgramSize{Unigram, Bigram}}
	got := tok.Ngrams([]string{"a", "b"})
	assert.Equal(t, []string{"a", "b", "a b"}, got)
}

func TestNgramsSkipsSizesLargerThanTokenCount(t *testing.T) {
	tok := TokenizerConfig{Ngrams: []NgramSize{Bigram}}
	got := tok.Ngrams([]string{"only"})
	assert.Empty(t, got)
}

func TestEmbeddingTableLookupHitAndMiss(t *testing.T) {
	table := NewEmbeddingTable(2, map[string][]float32{"cat": {1, 2}})

	v, ok := table.Lookup("cat")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2}, v)

	_, ok = table.Lookup("dog")
	assert.False(t, ok)
}
