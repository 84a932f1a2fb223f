package tabular

// tokenizer.go implements the tokenizer configuration referenced by
// ColumnStats.Text and the BagOfWords/WordEmbedding feature groups
// (spec.md §3, §4.3). Grounded in the teacher's simple string-handling
// style (no external NLP dependency appears anywhere in the example pack,
// so this stays on the standard library per DESIGN.md).

import "strings"

// NgramSize selects unigrams, bigrams, or both.
type NgramSize int

const (
	Unigram NgramSize = 1
	Bigram  NgramSize = 2
)

// TokenizerConfig is the frozen tokenizer configuration stored with a
// text column's stats and carried into the model file (spec.md §3:
// "a tokenizer configuration that remains valid for the model's lifetime").
type TokenizerConfig struct {
	Lowercase bool
	Ngrams    []NgramSize
}

// DefaultTokenizer lowercases and emits unigrams only.
func DefaultTokenizer() TokenizerConfig {
	return TokenizerConfig{Lowercase: true, Ngrams: []NgramSize{Unigram}}
}

// Tokenize splits text into whitespace-delimited tokens, lowercasing if
// configured.
func (t TokenizerConfig) Tokenize(text string) []string {
	if t.Lowercase {
		text = strings.ToLower(text)
	}

	return strings.Fields(text)
}

// Ngrams produces the configured n-grams from a token list, joined by a
// single space so they can key a map.
func (t TokenizerConfig) Ngrams(tokens []string) []string {
	sizes := t.Ngrams
	if len(sizes) == 0 {
		sizes = []NgramSize{Unigram}
	}

	out := make([]string, 0, len(tokens))

	for _, n := range sizes {
		if int(n) > len(tokens) {
			continue
		}

		for i := 0; i+int(n) <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+int(n)], " "))
		}
	}

	return out
}

// EmbeddingTable is a loaded word-embedding vocabulary for the WordEmbedding
// feature group (spec.md §3 ColumnStats.Text).
type EmbeddingTable struct {
	Dim     int
	vectors map[string][]float32
}

// NewEmbeddingTable builds a table from a token->vector map. All vectors
// must share dim.
func NewEmbeddingTable(dim int, vectors map[string][]float32) *EmbeddingTable {
	return &EmbeddingTable{Dim: dim, vectors: vectors}
}

// Lookup returns the embedding for token and whether it was found.
func (e *EmbeddingTable) Lookup(token string) ([]float32, bool) {
	v, ok := e.vectors[token]
	return v, ok
}
