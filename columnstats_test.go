package tabular

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNumberStatsMeanAndQuantiles(t *testing.T) {
	col := &NumberColumn{Values: []float32{1, 2, 3, 4, 5, float32(math.NaN())}}
	stats := ComputeColumnStats(col, DefaultTokenizer(), 10)

	require.NotNil(t, stats.Number)
	assert.Equal(t, 5, stats.Number.Count)
	assert.Equal(t, 1, stats.Number.InvalidCount)
	assert.InDelta(t, 3.0, stats.Number.Mean, 1e-9)
	assert.InDelta(t, 3.0, stats.Number.P50, 1e-6)
}

func TestComputeEnumStatsCountsInvalid(t *testing.T) {
	col := &EnumColumn{Variants: []string{"a", "b"}, Values: []uint32{1, 1, 2, 0}}
	stats := ComputeColumnStats(col, DefaultTokenizer(), 10)

	require.NotNil(t, stats.Enum)
	assert.Equal(t, 3, stats.Enum.Count)
	assert.Equal(t, 1, stats.Enum.InvalidCount)
	assert.Equal(t, 2, stats.Enum.UniqueCount)
	assert.Equal(t, 2, stats.Enum.Histogram[1])
}

func TestComputeTextStatsTopKTieBreak(t *testing.T) {
	col := &TextColumn{Values: []string{"b a", "a b", "c"}}
	stats := ComputeColumnStats(col, DefaultTokenizer(), 2)

	require.NotNil(t, stats.Text)
	require.Len(t, stats.Text.TopNgrams, 2)

	// "a" and "b" both occur twice; tie broken lexicographically.
	assert.Equal(t, "a", stats.Text.TopNgrams[0].Ngram)
	assert.Equal(t, 2, stats.Text.TopNgrams[0].OccurrenceCount)
	assert.Equal(t, "b", stats.Text.TopNgrams[1].Ngram)
}

func TestComputeTableStatsParallelizesOverColumns(t *testing.T) {
	view := &TableView{
		columns: []Column{
			&NumberColumn{Values: []float32{1, 2, 3}},
			&EnumColumn{Variants: []string{"x"}, Values: []uint32{1, 1, 0}},
		},
		nrows: 3,
	}

	stats := ComputeTableStats(view, DefaultTokenizer(), 10)
	require.Len(t, stats, 2)
	assert.Equal(t, ColumnNumberKind, stats[0].Kind)
	assert.Equal(t, ColumnEnumKind, stats[1].Kind)
}
