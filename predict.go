package tabular

// predict.go implements spec.md §6's predict input/output contracts and
// §4.10's per-task SHAP wiring. Grounded on the teacher's PredictNN (load,
// batch, run) simplified to the single already-in-memory Model this
// package produces -- no disk round trip is required to predict.

// PredictInput is one row as a mapping from column name to value, per
// spec.md §6. A nil entry means the column was missing/null for this row.
type PredictInput map[string]*TableValue

// PredictOptions configures prediction, per spec.md §6.
type PredictOptions struct {
	Threshold                   float64
	ComputeFeatureContributions bool
}

// DefaultPredictOptions is threshold 0.5, no contributions.
func DefaultPredictOptions() PredictOptions {
	return PredictOptions{Threshold: 0.5}
}

// FeatureContributionEntry names one feature's value and contribution, for
// the predict output's optional attribution list.
type FeatureContributionEntry struct {
	Feature      string
	Value        float64
	Contribution float64
}

// RegressionPrediction is the Regression predict output, per spec.md §6.
type RegressionPrediction struct {
	Value                float64
	FeatureContributions []FeatureContributionEntry
}

// BinaryPrediction is the Binary predict output, per spec.md §6.
type BinaryPrediction struct {
	ClassName            string
	Probability          float64
	FeatureContributions []FeatureContributionEntry
}

// MulticlassPrediction is the Multiclass predict output, per spec.md §6.
type MulticlassPrediction struct {
	ClassName            string
	Probability           float64
	Probabilities        map[string]float64
	FeatureContributions map[string][]FeatureContributionEntry
}

// buildRow converts a PredictInput into bin/invalid arrays against a fixed
// feature-name ordering, per spec.md §6: "unknown columns are ignored,
// missing columns are treated as invalid for that type".
func buildRow(featureNames []string, input PredictInput, instructions []*BinningInstruction) (bins []uint16, invalid []bool) {
	bins = make([]uint16, len(featureNames))
	invalid = make([]bool, len(featureNames))

	for i, name := range featureNames {
		v, ok := input[name]

		if !ok || v == nil || !v.IsValid() {
			bins[i] = 0
			invalid[i] = true

			continue
		}

		switch v.Kind {
		case KindNumber:
			bins[i] = uint16(instructions[i].BinIndexForValue(v.Number))
		case KindEnum:
			bins[i] = uint16(instructions[i].BinIndexForEnum(v.Enum))
		default:
			invalid[i] = true
		}
	}

	return bins, invalid
}

// buildCenteredRow converts a PredictInput into a mean-centered dense row
// for the linear learner, per spec.md §4.6.
func buildCenteredRow(featureNames []string, input PredictInput, m *LinearModel) []float64 {
	raw := make([]float64, len(featureNames))

	for i, name := range featureNames {
		v, ok := input[name]
		if !ok || v == nil || !v.IsValid() {
			continue
		}

		switch v.Kind {
		case KindNumber:
			raw[i] = float64(v.Number)
		case KindEnum:
			raw[i] = float64(v.Enum)
		}
	}

	return m.CenterRow(raw)
}

func contributionEntries(names []string, values []float64, contrib []float64) []FeatureContributionEntry {
	out := make([]FeatureContributionEntry, len(names))

	for i, n := range names {
		out[i] = FeatureContributionEntry{Feature: n, Value: values[i], Contribution: contrib[i]}
	}

	return out
}

// PredictTreeRegression runs one row through a Regressor ensemble, per
// spec.md §6.
func PredictTreeRegression(e *Ensemble, featureNames []string, instructions []*BinningInstruction, input PredictInput, opts PredictOptions) *RegressionPrediction {
	bins, invalid := buildRow(featureNames, input, instructions)
	value := e.PredictRegressor(bins, invalid)

	out := &RegressionPrediction{Value: value}

	if opts.ComputeFeatureContributions {
		fc := EnsembleTreeShap(e.Trees, e.Bias, bins, invalid, len(featureNames))
		binsF := make([]float64, len(bins))

		for i, b := range bins {
			binsF[i] = float64(b)
		}

		out.FeatureContributions = contributionEntries(featureNames, binsF, fc.Contributions)
	}

	return out
}

// PredictTreeBinary runs one row through a BinaryClassifier ensemble, per
// spec.md §6. classNames[0] is the negative class, classNames[1] positive.
func PredictTreeBinary(e *Ensemble, featureNames []string, instructions []*BinningInstruction, classNames [2]string, input PredictInput, opts PredictOptions) *BinaryPrediction {
	bins, invalid := buildRow(featureNames, input, instructions)
	p := e.PredictBinaryProbability(bins, invalid)

	className := classNames[0]
	if p >= opts.Threshold {
		className = classNames[1]
	}

	out := &BinaryPrediction{ClassName: className, Probability: p}

	if opts.ComputeFeatureContributions {
		fc := EnsembleTreeShap(e.Trees, e.Bias, bins, invalid, len(featureNames))
		binsF := make([]float64, len(bins))

		for i, b := range bins {
			binsF[i] = float64(b)
		}

		out.FeatureContributions = contributionEntries(featureNames, binsF, fc.Contributions)
	}

	return out
}

// PredictTreeMulticlass runs one row through a MulticlassClassifier
// ensemble, per spec.md §6.
func PredictTreeMulticlass(e *Ensemble, featureNames []string, instructions []*BinningInstruction, classNames []string, input PredictInput, opts PredictOptions) *MulticlassPrediction {
	bins, invalid := buildRow(featureNames, input, instructions)
	probs := e.PredictMulticlassProbabilities(bins, invalid)

	bestIdx := 0
	for i, p := range probs {
		if p > probs[bestIdx] {
			bestIdx = i
		}
	}

	probMap := make(map[string]float64, len(probs))
	for i, p := range probs {
		probMap[classNames[i]] = p
	}

	out := &MulticlassPrediction{
		ClassName: classNames[bestIdx], Probability: probs[bestIdx], Probabilities: probMap,
	}

	if opts.ComputeFeatureContributions {
		binsF := make([]float64, len(bins))
		for i, b := range bins {
			binsF[i] = float64(b)
		}

		out.FeatureContributions = make(map[string][]FeatureContributionEntry, len(classNames))

		for c, roundTrees := range classTreesByClass(e) {
			fc := EnsembleTreeShap(roundTrees, e.Biases[c], bins, invalid, len(featureNames))
			out.FeatureContributions[classNames[c]] = contributionEntries(featureNames, binsF, fc.Contributions)
		}
	}

	return out
}

// classTreesByClass regroups R rounds x C classes into C lists of R trees.
func classTreesByClass(e *Ensemble) [][]*Tree {
	if len(e.ClassTrees) == 0 {
		return nil
	}

	nClasses := len(e.ClassTrees[0])
	out := make([][]*Tree, nClasses)

	for _, round := range e.ClassTrees {
		for c, t := range round {
			out[c] = append(out[c], t)
		}
	}

	return out
}

// PredictLinearRegression runs one row through a linear Regressor, per
// spec.md §6.
func PredictLinearRegression(m *LinearModel, featureNames []string, input PredictInput, opts PredictOptions) *RegressionPrediction {
	row := buildCenteredRow(featureNames, input, m)
	value := m.PredictLinearRegressor(row)

	out := &RegressionPrediction{Value: value}

	if opts.ComputeFeatureContributions {
		fc := LinearShap(m, row, 0)
		out.FeatureContributions = contributionEntries(featureNames, row, fc.Contributions)
	}

	return out
}

// PredictLinearBinary runs one row through a linear BinaryClassifier, per
// spec.md §6.
func PredictLinearBinary(m *LinearModel, featureNames []string, classNames [2]string, input PredictInput, opts PredictOptions) *BinaryPrediction {
	row := buildCenteredRow(featureNames, input, m)
	p := m.PredictLinearBinaryProbability(row)

	className := classNames[0]
	if p >= opts.Threshold {
		className = classNames[1]
	}

	out := &BinaryPrediction{ClassName: className, Probability: p}

	if opts.ComputeFeatureContributions {
		fc := LinearShap(m, row, 0)
		out.FeatureContributions = contributionEntries(featureNames, row, fc.Contributions)
	}

	return out
}

// PredictLinearMulticlass runs one row through a linear MulticlassClassifier,
// per spec.md §6.
func PredictLinearMulticlass(m *LinearModel, featureNames []string, classNames []string, input PredictInput, opts PredictOptions) *MulticlassPrediction {
	row := buildCenteredRow(featureNames, input, m)
	probs := m.PredictLinearMulticlassProbabilities(row)

	bestIdx := 0
	for i, p := range probs {
		if p > probs[bestIdx] {
			bestIdx = i
		}
	}

	probMap := make(map[string]float64, len(probs))
	for i, p := range probs {
		probMap[classNames[i]] = p
	}

	out := &MulticlassPrediction{
		ClassName: classNames[bestIdx], Probability: probs[bestIdx], Probabilities: probMap,
	}

	if opts.ComputeFeatureContributions {
		out.FeatureContributions = make(map[string][]FeatureContributionEntry, len(classNames))

		// m.NOutputs == len(classNames): every class has its own bias/weight
		// column, so this covers the last class too (no derived -sum(others)
		// needed, unlike a dropped-category layout would require).
		for c := 0; c < m.NOutputs; c++ {
			fc := LinearShap(m, row, c)
			out.FeatureContributions[classNames[c]] = contributionEntries(featureNames, row, fc.Contributions)
		}
	}

	return out
}
