package tabular

// columnstats.go implements spec.md §4.2: per-column streaming summaries.
// Grounded on the teacher's data.go Desc type (mean/std/quantiles) and its
// single-pass Populate method, generalized from an adhoc []float64 slice to
// the three Column kinds and widened with Welford's online algorithm for
// mean/variance instead of the teacher's two-pass sort-then-scan.

import (
	"math"
	"sort"
)

// exactQuantileThreshold is the unique-count cut-off passed to quantiles3
// as its exact flag. quantiles3 currently ignores the flag, so every column
// gets the same sorted-array quantiles on either side of it.
const exactQuantileThreshold = 10000

// NumberStats summarizes a Number column.
type NumberStats struct {
	Count        int
	InvalidCount int
	UniqueCount  int
	Min          float32
	Max          float32
	Mean         float64
	Variance     float64
	Std          float64
	P25          float32
	P50          float32
	P75          float32
}

// EnumStats summarizes an Enum column.
type EnumStats struct {
	Count        int
	InvalidCount int
	UniqueCount  int
	Histogram    map[uint32]int // variant index -> count
}

// NgramStat is one entry of a text column's retained top-K n-grams.
type NgramStat struct {
	Ngram           string
	RowCount        int // documents containing the n-gram
	OccurrenceCount int // total occurrences across all documents
}

// TextStats summarizes a Text column.
type TextStats struct {
	Tokenizer  TokenizerConfig
	TopNgrams  []NgramStat
	Embeddings *EmbeddingTable // set only when a WordEmbedding feature group references this column
}

// ColumnStats is the tagged summary described in spec.md §3, one per
// column kind.
type ColumnStats struct {
	Kind   ColumnKind
	Number *NumberStats
	Enum   *EnumStats
	Text   *TextStats
}

// ComputeColumnStats computes the summary for a single column in one
// streaming pass, per spec.md §4.2.
func ComputeColumnStats(col Column, tokenizer TokenizerConfig, topK int) *ColumnStats {
	switch c := col.(type) {
	case *NumberColumn:
		return &ColumnStats{Kind: ColumnNumberKind, Number: computeNumberStats(c.Values)}
	case *EnumColumn:
		return &ColumnStats{Kind: ColumnEnumKind, Enum: computeEnumStats(c)}
	case *TextColumn:
		return &ColumnStats{Kind: ColumnTextKind, Text: computeTextStats(c, tokenizer, topK)}
	default:
		return &ColumnStats{Kind: ColumnUnknownKind}
	}
}

// ComputeTableStats computes ColumnStats for every column in view,
// parallelized over columns per spec.md §5.
func ComputeTableStats(view *TableView, tokenizer TokenizerConfig, topK int) []*ColumnStats {
	out := make([]*ColumnStats, len(view.columns))
	done := make(chan int, len(view.columns))

	for i, col := range view.columns {
		go func(i int, col Column) {
			out[i] = ComputeColumnStats(col, tokenizer, topK)
			done <- i
		}(i, col)
	}

	for range view.columns {
		<-done
	}

	return out
}

func computeNumberStats(values []float32) *NumberStats {
	s := &NumberStats{Min: float32(math.Inf(1)), Max: float32(math.Inf(-1))}

	// Welford's online algorithm for mean/variance in one pass.
	mean, m2 := 0.0, 0.0
	n := 0
	finite := make([]float32, 0, len(values))
	seen := make(map[float32]struct{})

	for _, v := range values {
		if math.IsNaN(float64(v)) {
			s.InvalidCount++
			continue
		}

		n++
		delta := float64(v) - mean
		mean += delta / float64(n)
		m2 += delta * (float64(v) - mean)

		if v < s.Min {
			s.Min = v
		}

		if v > s.Max {
			s.Max = v
		}

		finite = append(finite, v)
		seen[v] = struct{}{}
	}

	s.Count = n
	s.Mean = mean

	if n > 1 {
		s.Variance = m2 / float64(n-1)
		s.Std = math.Sqrt(s.Variance)
	}

	s.UniqueCount = len(seen)

	if n == 0 {
		s.Min, s.Max = 0, 0
	}

	p25, p50, p75 := quantiles3(finite, len(seen) < exactQuantileThreshold)
	s.P25, s.P50, s.P75 = p25, p50, p75

	return s
}

// quantiles3 returns the 25th/50th/75th percentiles by sorting a copy of
// values and interpolating linearly between neighbouring ranks. exact is
// not used: there is no separate distinct-value histogram path.
func quantiles3(values []float32, exact bool) (p25, p50, p75 float32) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	sorted := append([]float32(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	q := func(p float64) float32 {
		idx := p * float64(len(sorted)-1)
		lo := int(math.Floor(idx))
		hi := int(math.Ceil(idx))

		if lo == hi {
			return sorted[lo]
		}

		frac := idx - float64(lo)

		return sorted[lo] + float32(frac)*(sorted[hi]-sorted[lo])
	}

	return q(0.25), q(0.5), q(0.75)
}

func computeEnumStats(c *EnumColumn) *EnumStats {
	s := &EnumStats{Histogram: make(map[uint32]int)}

	for _, v := range c.Values {
		if v == 0 {
			s.InvalidCount++
			continue
		}

		s.Count++
		s.Histogram[v]++
	}

	s.UniqueCount = len(s.Histogram)

	return s
}

func computeTextStats(c *TextColumn, tok TokenizerConfig, topK int) *TextStats {
	type acc struct {
		rows        int
		occurrences int
	}

	counts := make(map[string]*acc)

	for _, doc := range c.Values {
		tokens := tok.Tokenize(doc)
		ngrams := tok.Ngrams(tokens)
		seenInDoc := make(map[string]struct{})

		for _, g := range ngrams {
			a, ok := counts[g]
			if !ok {
				a = &acc{}
				counts[g] = a
			}

			a.occurrences++

			if _, ok := seenInDoc[g]; !ok {
				a.rows++
				seenInDoc[g] = struct{}{}
			}
		}
	}

	entries := make([]NgramStat, 0, len(counts))
	for g, a := range counts {
		entries = append(entries, NgramStat{Ngram: g, RowCount: a.rows, OccurrenceCount: a.occurrences})
	}

	// Retain the top-K by occurrence_count, ties broken by lexicographic
	// order of the n-gram (spec.md §9 Open Questions).
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OccurrenceCount != entries[j].OccurrenceCount {
			return entries[i].OccurrenceCount > entries[j].OccurrenceCount
		}

		return entries[i].Ngram < entries[j].Ngram
	})

	if topK > 0 && len(entries) > topK {
		entries = entries[:topK]
	}

	return &TextStats{Tokenizer: tok, TopNgrams: entries}
}
