package tabular

// featuregroups.go implements spec.md §4.3: the six FeatureGroup variants
// and their three compute contracts. Modeled as a tagged variant rather
// than dynamic dispatch (spec.md §9 design notes: "six variants are enough
// and keep the serialized format fixed"), grounded on the teacher's FType
// role enum (fields.go: FRCts/FRCat/FROneHot/FREmbed) generalized to the
// spec's closed six-variant set and its three explicit output contracts.

import (
	"math"
	"sort"
)

// FeatureGroupKind tags a FeatureGroup.
type FeatureGroupKind int

const (
	GroupIdentity FeatureGroupKind = iota
	GroupNormalized
	GroupOneHotEncoded
	GroupBagOfWords
	GroupBagOfWordsCosineSimilarity
	GroupWordEmbedding
)

// BagOfWordsMode selects how a BagOfWords group emits per-token weights.
type BagOfWordsMode int

const (
	BoWCount BagOfWordsMode = iota
	BoWBinary
	BoWIDF
	BoWTfIDF
)

// FeatureGroup is a declarative mapper from one (or two, for
// BagOfWordsCosineSimilarity) source column(s) to a fixed-width slice of
// numeric features. The ordered list of FeatureGroups and their widths
// fixes the feature-vector layout for both training and prediction
// (spec.md §3 invariant).
type FeatureGroup struct {
	Kind FeatureGroupKind

	// SourceColumn names the column this group reads. For
	// BagOfWordsCosineSimilarity, SourceColumn and SourceColumnB name the
	// two text columns being compared.
	SourceColumn  string
	SourceColumnB string

	// Normalized parameters.
	Mean     float64
	Variance float64

	// OneHotEncoded parameters.
	NVariants int

	// BagOfWords / BagOfWordsCosineSimilarity parameters.
	Vocabulary    []string
	Mode          BagOfWordsMode
	IDF           []float64 // parallel to Vocabulary
	L2Normalize   bool
	Tokenizer     TokenizerConfig
	VocabSubsetsA [][]string // BagOfWordsCosineSimilarity: k vocab subsets
	VocabSubsetsB [][]string

	// WordEmbedding parameters.
	Embeddings *EmbeddingTable
}

// Width returns the fixed output width of the group.
func (g *FeatureGroup) Width() int {
	switch g.Kind {
	case GroupIdentity, GroupNormalized:
		return 1
	case GroupOneHotEncoded:
		return g.NVariants + 1
	case GroupBagOfWords:
		return len(g.Vocabulary)
	case GroupBagOfWordsCosineSimilarity:
		return len(g.VocabSubsetsA)
	case GroupWordEmbedding:
		if g.Embeddings != nil {
			return g.Embeddings.Dim
		}

		return 0
	default:
		return 0
	}
}

// FitNormalized computes the Normalized group's mean/variance from a
// training-split Number (or Enum, cast to variant index) column.
func FitNormalized(source string, col Column) *FeatureGroup {
	var values []float64

	switch c := col.(type) {
	case *NumberColumn:
		for _, v := range c.Values {
			if !math.IsNaN(float64(v)) {
				values = append(values, float64(v))
			}
		}
	case *EnumColumn:
		for _, v := range c.Values {
			values = append(values, float64(v))
		}
	}

	mean, variance := meanVariance(values)

	return &FeatureGroup{Kind: GroupNormalized, SourceColumn: source, Mean: mean, Variance: variance}
}

func meanVariance(values []float64) (mean, variance float64) {
	n := 0
	m2 := 0.0

	for _, v := range values {
		n++
		delta := v - mean
		mean += delta / float64(n)
		m2 += delta * (v - mean)
	}

	if n > 1 {
		variance = m2 / float64(n-1)
	}

	return mean, variance
}

// FitOneHot builds a OneHotEncoded group from an Enum column's variant
// count.
func FitOneHot(source string, nVariants int) *FeatureGroup {
	return &FeatureGroup{Kind: GroupOneHotEncoded, SourceColumn: source, NVariants: nVariants}
}

// FitBagOfWords fits vocabulary and, for IDF/TF-IDF modes, inverse document
// frequency, from a training-split Text column.
func FitBagOfWords(source string, col *TextColumn, tok TokenizerConfig, mode BagOfWordsMode, maxVocab int, l2Normalize bool) *FeatureGroup {
	docFreq := make(map[string]int)
	nDocs := len(col.Values)

	for _, doc := range col.Values {
		tokens := tok.Tokenize(doc)
		seen := make(map[string]struct{})

		for _, g := range tok.Ngrams(tokens) {
			if _, ok := seen[g]; !ok {
				docFreq[g]++
				seen[g] = struct{}{}
			}
		}
	}

	vocab := make([]string, 0, len(docFreq))
	for g := range docFreq {
		vocab = append(vocab, g)
	}

	sort.Slice(vocab, func(i, j int) bool {
		if docFreq[vocab[i]] != docFreq[vocab[j]] {
			return docFreq[vocab[i]] > docFreq[vocab[j]]
		}

		return vocab[i] < vocab[j]
	})

	if maxVocab > 0 && len(vocab) > maxVocab {
		vocab = vocab[:maxVocab]
	}

	idf := make([]float64, len(vocab))
	for i, g := range vocab {
		idf[i] = math.Log(float64(nDocs+1) / float64(docFreq[g]+1))
	}

	return &FeatureGroup{
		Kind: GroupBagOfWords, SourceColumn: source, Vocabulary: vocab, Mode: mode,
		IDF: idf, L2Normalize: l2Normalize, Tokenizer: tok,
	}
}

func (g *FeatureGroup) vocabIndex() map[string]int {
	idx := make(map[string]int, len(g.Vocabulary))
	for i, w := range g.Vocabulary {
		idx[w] = i
	}

	return idx
}

// computeBagOfWordsRow fills the width-len row for one document.
func (g *FeatureGroup) computeBagOfWordsRow(doc string, out []float64) {
	idx := g.vocabIndex()
	tokens := g.Tokenizer.Tokenize(doc)
	ngrams := g.Tokenizer.Ngrams(tokens)

	for _, tok := range ngrams {
		i, ok := idx[tok]
		if !ok {
			continue // unknown token: skipped, does not change denominator
		}

		switch g.Mode {
		case BoWBinary:
			out[i] = 1
		case BoWIDF:
			out[i] += g.IDF[i]
		case BoWTfIDF:
			out[i] += g.IDF[i]
		default: // BoWCount
			out[i]++
		}
	}

	if g.Mode == BoWTfIDF {
		total := 0.0
		for _, c := range ngrams {
			if _, ok := idx[c]; ok {
				total++
			}
		}

		if total > 0 {
			for i := range out {
				out[i] /= total
			}
		}
	}

	if g.L2Normalize {
		norm := 0.0
		for _, v := range out {
			norm += v * v
		}

		norm = math.Sqrt(norm)

		if norm > 0 {
			for i := range out {
				out[i] /= norm
			}
		}
	}
}

// cosineSimilarity of two sparse weighted bags keyed by n-gram.
func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, na, nb float64

	for k, v := range a {
		dot += v * b[k]
		na += v * v
	}

	for _, v := range b {
		nb += v * v
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func bagFromVocabSubset(doc string, tok TokenizerConfig, vocab []string) map[string]float64 {
	allowed := make(map[string]struct{}, len(vocab))
	for _, w := range vocab {
		allowed[w] = struct{}{}
	}

	bag := make(map[string]float64)
	ngrams := tok.Ngrams(tok.Tokenize(doc))

	for _, g := range ngrams {
		if _, ok := allowed[g]; ok {
			bag[g]++
		}
	}

	return bag
}

// ComputeArrayF32 fills out (length nrows*width) for the linear learner's
// dense feature matrix, per spec.md §4.3 contract 2.
func (g *FeatureGroup) ComputeArrayF32(out []float32, docsA Column, docsB Column, nrows int) error {
	width := g.Width()
	if len(out) != nrows*width {
		return Wrapper(ErrFeature, "ComputeArrayF32: output buffer has wrong length")
	}

	for row := 0; row < nrows; row++ {
		slot := out[row*width : row*width+width]
		if err := g.computeRow(row, docsA, docsB, slot, true); err != nil {
			return err
		}
	}

	return nil
}

// ComputeArrayValue fills out (length nrows*width) with TableValues for
// tree training/inference, per spec.md §4.3 contract 3. For trees, enum
// features preserve the variant index rather than casting to f32 so the
// binning step can treat them discretely.
func (g *FeatureGroup) ComputeArrayValue(out []TableValue, docsA Column, docsB Column, nrows int) error {
	width := g.Width()
	if len(out) != nrows*width {
		return Wrapper(ErrFeature, "ComputeArrayValue: output buffer has wrong length")
	}

	f32 := make([]float64, width)

	for row := 0; row < nrows; row++ {
		if g.Kind == GroupIdentity {
			if ec, ok := docsA.(*EnumColumn); ok {
				out[row*width] = EnumValue(ec.Values[row])
				continue
			}
		}

		if err := g.computeRowF64(row, docsA, docsB, f32); err != nil {
			return err
		}

		for w := 0; w < width; w++ {
			out[row*width+w] = NumberValue(float32(f32[w]))
		}
	}

	return nil
}

func (g *FeatureGroup) computeRow(row int, docsA, docsB Column, out []float32, forLinear bool) error {
	width := g.Width()
	buf := make([]float64, width)

	if err := g.computeRowF64(row, docsA, docsB, buf); err != nil {
		return err
	}

	for i, v := range buf {
		out[i] = float32(v)
	}

	return nil
}

func (g *FeatureGroup) computeRowF64(row int, docsA, docsB Column, out []float64) error {
	for i := range out {
		out[i] = 0
	}

	switch g.Kind {
	case GroupIdentity:
		switch c := docsA.(type) {
		case *NumberColumn:
			v := c.Values[row]
			if math.IsNaN(float64(v)) {
				out[0] = 0
			} else {
				out[0] = float64(v)
			}
		case *EnumColumn:
			out[0] = float64(c.Values[row])
		default:
			return Wrapper(ErrFeature, "Identity: text column is not a valid source")
		}
	case GroupNormalized:
		var v float64

		switch c := docsA.(type) {
		case *NumberColumn:
			raw := c.Values[row]
			if math.IsNaN(float64(raw)) {
				out[0] = 0
				return nil
			}

			v = float64(raw)
		case *EnumColumn:
			v = float64(c.Values[row])
		default:
			return Wrapper(ErrFeature, "Normalized: text column is not a valid source")
		}

		if g.Variance > 0 {
			out[0] = (v - g.Mean) / math.Sqrt(g.Variance)
		} else {
			out[0] = 0
		}
	case GroupOneHotEncoded:
		ec, ok := docsA.(*EnumColumn)
		if !ok {
			return Wrapper(ErrFeature, "OneHotEncoded: source must be an enum column")
		}

		pos := int(ec.Values[row])
		if pos >= 0 && pos < len(out) {
			out[pos] = 1
		}
	case GroupBagOfWords:
		tc, ok := docsA.(*TextColumn)
		if !ok {
			return Wrapper(ErrFeature, "BagOfWords: source must be a text column")
		}

		g.computeBagOfWordsRow(tc.Values[row], out)
	case GroupBagOfWordsCosineSimilarity:
		tcA, okA := docsA.(*TextColumn)
		tcB, okB := docsB.(*TextColumn)

		if !okA || !okB {
			return Wrapper(ErrFeature, "BagOfWordsCosineSimilarity: both sources must be text columns")
		}

		for k := range g.VocabSubsetsA {
			bagA := bagFromVocabSubset(tcA.Values[row], g.Tokenizer, g.VocabSubsetsA[k])
			bagB := bagFromVocabSubset(tcB.Values[row], g.Tokenizer, g.VocabSubsetsB[k])
			out[k] = cosineSimilarity(bagA, bagB)
		}
	case GroupWordEmbedding:
		tc, ok := docsA.(*TextColumn)
		if !ok {
			return Wrapper(ErrFeature, "WordEmbedding: source must be a text column")
		}

		if g.Embeddings == nil {
			return Wrapper(ErrFeature, "WordEmbedding: no embedding table loaded")
		}

		tokens := g.Tokenizer.Tokenize(tc.Values[row])
		sum := make([]float64, g.Embeddings.Dim)
		n := 0

		for _, t := range tokens {
			vec, ok := g.Embeddings.Lookup(t)
			if !ok {
				continue // unknown token excluded from the denominator
			}

			n++

			for i, v := range vec {
				sum[i] += float64(v)
			}
		}

		if n > 0 {
			for i := range sum {
				out[i] = sum[i] / float64(n)
			}
		}
	}

	return nil
}

// ComputeTable produces the group's output as []*NumberColumn (width of
// them), the downstream-processing contract of spec.md §4.3 contract 1.
func (g *FeatureGroup) ComputeTable(docsA, docsB Column, nrows int) ([]*NumberColumn, error) {
	width := g.Width()
	cols := make([]*NumberColumn, width)

	for w := 0; w < width; w++ {
		cols[w] = &NumberColumn{Values: make([]float32, nrows)}
	}

	buf := make([]float64, width)

	for row := 0; row < nrows; row++ {
		if err := g.computeRowF64(row, docsA, docsB, buf); err != nil {
			return nil, err
		}

		for w := 0; w < width; w++ {
			cols[w].Values[row] = float32(buf[w])
		}
	}

	return cols, nil
}
