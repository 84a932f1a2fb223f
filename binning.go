package tabular

// binning.go implements spec.md §4.4. The quantile-threshold algorithm is
// ported directly from the original Rust implementation's
// compute_binning_instructions.rs (histogram over up to
// max_examples_for_computing_bin_thresholds sampled rows, midpoint
// thresholds when the column has few distinct values, otherwise evenly
// spaced quantile thresholds over the non-zero values with linear
// interpolation between adjacent histogram buckets). Adapted into Go's
// array-of-structs / explicit-loop idiom per spec.md §9 design notes
// instead of the original's iterator-chain style.

import (
	"math"
	"sort"
)

// BinningKind tags a BinningInstruction.
type BinningKind int

const (
	BinningNumber BinningKind = iota
	BinningEnum
)

// BinningInstruction describes how one numeric feature column is mapped to
// small integer bins (spec.md §3).
type BinningInstruction struct {
	Kind       BinningKind
	Thresholds []float32 // Number: ascending split points, n thresholds -> n+2 bins (bin 0 = invalid)
	NVariants  int       // Enum: n_variants -> n_variants+1 bins (bin 0 = invalid)
}

// NBins returns the total bin count including the reserved invalid bin 0.
func (b *BinningInstruction) NBins() int {
	return 1 + b.NValidBins()
}

// NValidBins returns the bin count excluding the invalid bin.
func (b *BinningInstruction) NValidBins() int {
	if b.Kind == BinningEnum {
		return b.NVariants
	}

	return len(b.Thresholds) + 1
}

// BinningOptions parameterizes threshold computation (subset of
// TrainOptions relevant to binning, per spec.md §4.4).
type BinningOptions struct {
	MaxValidBinsForNumberFeatures       int
	MaxExamplesForComputingBinThresholds int
}

// DefaultBinningOptions mirrors the teacher-style functional defaults
// pattern (spec.md §4.5 TrainOptions defaults).
func DefaultBinningOptions() BinningOptions {
	return BinningOptions{MaxValidBinsForNumberFeatures: 255, MaxExamplesForComputingBinThresholds: 200000}
}

// ComputeBinningInstructions returns one BinningInstruction per feature
// column in features, per spec.md §4.4.
func ComputeBinningInstructions(features *TableView, options BinningOptions) []*BinningInstruction {
	out := make([]*BinningInstruction, len(features.columns))

	for i, col := range features.columns {
		switch c := col.(type) {
		case *NumberColumn:
			out[i] = computeNumberBinningInstruction(c.Values, options)
		case *EnumColumn:
			out[i] = &BinningInstruction{Kind: BinningEnum, NVariants: len(c.Variants)}
		default:
			out[i] = &BinningInstruction{Kind: BinningEnum, NVariants: 0}
		}
	}

	return out
}

func computeNumberBinningInstruction(values []float32, options BinningOptions) *BinningInstruction {
	maxExamples := options.MaxExamplesForComputingBinThresholds
	if maxExamples <= 0 || maxExamples > len(values) {
		maxExamples = len(values)
	}

	histogram := make(map[float32]int)
	nFinite := 0

	for i := 0; i < maxExamples; i++ {
		v := values[i]
		if math.IsNaN(float64(v)) {
			continue
		}

		histogram[v]++
		nFinite++
	}

	maxBins := options.MaxValidBinsForNumberFeatures
	if maxBins <= 0 {
		maxBins = 255
	}

	keys := make([]float32, 0, len(histogram))
	for k := range histogram {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var thresholds []float32

	if len(keys) < maxBins {
		for i := 0; i+1 < len(keys); i++ {
			thresholds = append(thresholds, (keys[i]+keys[i+1])/2.0)
		}
	} else {
		thresholds = quantileThresholds(keys, histogram, nFinite, maxBins)
	}

	return &BinningInstruction{Kind: BinningNumber, Thresholds: thresholds}
}

// quantileThresholds computes maxBins-1 thresholds at evenly spaced
// quantiles over the non-zero values, ported from the original's
// compute_binning_instruction_thresholds_for_number_feature_as_quantiles_from_histogram.
func quantileThresholds(keys []float32, histogram map[float32]int, nFinite int, maxBins int) []float32 {
	numZeros := 0
	startIdx := 0

	if len(keys) > 0 && keys[0] == 0 {
		numZeros = histogram[keys[0]]
		startIdx = 1
	}

	totalNonZero := float64(nFinite - numZeros)

	nQuantiles := maxBins - 1
	quantileTargets := make([]float64, nQuantiles)
	quantileIndexes := make([]int, nQuantiles)
	quantileFracts := make([]float64, nQuantiles)

	for i := 0; i < nQuantiles; i++ {
		q := float64(i+1) / float64(maxBins)
		quantileTargets[i] = q
		pos := (totalNonZero - 1) * q
		quantileIndexes[i] = int(math.Trunc(pos))
		quantileFracts[i] = pos - math.Trunc(pos)
	}

	result := make([]float32, nQuantiles)
	found := make([]bool, nQuantiles)

	currentCount := 0

	for i := startIdx; i < len(keys); i++ {
		value := keys[i]
		count := histogram[value]
		currentCount += count

		for q := 0; q < nQuantiles; q++ {
			if found[q] {
				continue
			}

			switch {
			case currentCount-1 == quantileIndexes[q]:
				if quantileFracts[q] > 0 && i+1 < len(keys) {
					next := keys[i+1]
					result[q] = value*float32(1-quantileFracts[q]) + next*float32(quantileFracts[q])
				} else {
					result[q] = value
				}

				found[q] = true
			case currentCount-1 > quantileIndexes[q]:
				result[q] = value
				found[q] = true
			}
		}
	}

	// Any quantile index not reached (can happen if totalNonZero is tiny)
	// falls back to the last observed value.
	last := float32(0)
	if len(keys) > 0 {
		last = keys[len(keys)-1]
	}

	for q := 0; q < nQuantiles; q++ {
		if !found[q] {
			result[q] = last
		}
	}

	return result
}

// BinIndexForValue maps a single finite number value to its bin index per
// the instruction's thresholds. Invalid (NaN) always maps to bin 0.
func (b *BinningInstruction) BinIndexForValue(v float32) int {
	if b.Kind == BinningEnum {
		return 0 // enum bins are computed from the variant, not a float value
	}

	if math.IsNaN(float64(v)) {
		return 0
	}

	// bin 1..=n+1 split by ascending thresholds: bin i+1 covers
	// (thresholds[i-1], thresholds[i]].
	idx := sort.Search(len(b.Thresholds), func(i int) bool { return v <= b.Thresholds[i] })

	return idx + 1
}

// BinIndexForEnum maps an enum variant (0 = invalid) directly to its bin.
func (b *BinningInstruction) BinIndexForEnum(variant uint32) int {
	return int(variant)
}

// BinnedMatrixLayout selects how the dense bin-indexed matrix is stored.
type BinnedMatrixLayout int

const (
	RowMajor BinnedMatrixLayout = iota
	ColumnMajor
)

// BinnedMatrix is the dense, once-built [n_examples x n_features] matrix of
// small integer bin indices that all tree training reads from (spec.md
// §4.4). Every entry is stored as a uint16, whatever the feature's bin
// count.
type BinnedMatrix struct {
	Layout   BinnedMatrixLayout
	NRows    int
	NFeat    int
	NBins    []int // per-feature bin count, for histogram sizing
	data     []uint16
}

func (m *BinnedMatrix) index(row, feat int) int {
	if m.Layout == RowMajor {
		return row*m.NFeat + feat
	}

	return feat*m.NRows + row
}

// At returns the bin index for (row, feat).
func (m *BinnedMatrix) At(row, feat int) uint16 {
	return m.data[m.index(row, feat)]
}

func (m *BinnedMatrix) set(row, feat int, v uint16) {
	m.data[m.index(row, feat)] = v
}

// BuildBinnedMatrix builds the dense bin-indexed matrix once, per spec.md
// §4.4, from the feature columns and their binning instructions. featureCols
// must be the same TableValue-typed numeric/enum feature columns produced
// by the feature groups' compute_array_value contract (identity-width
// numeric columns; one column per scalar feature).
func BuildBinnedMatrix(featureCols []Column, instructions []*BinningInstruction, layout BinnedMatrixLayout) (*BinnedMatrix, error) {
	if len(featureCols) != len(instructions) {
		return nil, Wrapper(ErrBinning, "BuildBinnedMatrix: column count does not match instruction count")
	}

	if len(featureCols) == 0 {
		return &BinnedMatrix{Layout: layout}, nil
	}

	nrows := featureCols[0].Len()
	m := &BinnedMatrix{Layout: layout, NRows: nrows, NFeat: len(featureCols), data: make([]uint16, nrows*len(featureCols))}
	m.NBins = make([]int, len(featureCols))

	for f, col := range featureCols {
		instr := instructions[f]
		m.NBins[f] = instr.NBins()

		switch c := col.(type) {
		case *NumberColumn:
			for r := 0; r < nrows; r++ {
				m.set(r, f, uint16(instr.BinIndexForValue(c.Values[r])))
			}
		case *EnumColumn:
			for r := 0; r < nrows; r++ {
				m.set(r, f, uint16(instr.BinIndexForEnum(c.Values[r])))
			}
		default:
			return nil, Wrapper(ErrBinning, "BuildBinnedMatrix: unsupported feature column kind")
		}
	}

	return m, nil
}
