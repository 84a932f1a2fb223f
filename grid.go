package tabular

// grid.go implements spec.md §4.8: a training grid that fits each
// candidate option set once, scores it on a held-out split, and reports
// the best index without retraining. Grounded on the teacher's pipeline.go
// slicing helpers (random and stratified row partitioning already exist
// there in spirit for batch construction) adapted to a one-shot grid
// split instead of per-epoch batching.

import "math/rand"

// GridSplitKind selects how the grid carves out its comparison split.
type GridSplitKind int

const (
	GridSplitRandom GridSplitKind = iota
	GridSplitStratified
)

// GridOptions configures TrainGrid, per spec.md §4.8.
type GridOptions struct {
	ComparisonFraction float64
	Split              GridSplitKind
	Seed               int64
}

// DefaultGridOptions is the documented default (spec.md §4.8: a random
// 80/20 split unless stratification is requested).
func DefaultGridOptions() GridOptions {
	return GridOptions{ComparisonFraction: 0.2, Split: GridSplitRandom, Seed: 1}
}

// GridItem is one candidate configuration to train and score.
type GridItem struct {
	Label       string
	Learner     LearnerKind
	TreeOptions *TrainOptions
	LinearOpts  *LinearOptions
}

// GridResult is the outcome of training every GridItem once, per spec.md
// §4.8.
type GridResult struct {
	Outputs           []*TrainOutput
	ComparisonMetrics []float64 // lower is better (loss); one per item
	BestIndex         int
}

// splitIndices partitions [0, n) into train/comparison index sets.
func splitIndices(n int, labels []float64, opts GridOptions) (train, comparison []int32) {
	rng := rand.New(rand.NewSource(opts.Seed))

	switch opts.Split {
	case GridSplitStratified:
		byClass := make(map[int][]int32)

		for i := 0; i < n; i++ {
			cls := int(labels[i])
			byClass[cls] = append(byClass[cls], int32(i))
		}

		for _, idxs := range byClass {
			rng.Shuffle(len(idxs), func(i, j int) { idxs[i], idxs[j] = idxs[j], idxs[i] })

			cut := int(float64(len(idxs)) * (1 - opts.ComparisonFraction))
			train = append(train, idxs[:cut]...)
			comparison = append(comparison, idxs[cut:]...)
		}
	default:
		idxs := make([]int32, n)
		for i := range idxs {
			idxs[i] = int32(i)
		}

		rng.Shuffle(n, func(i, j int) { idxs[i], idxs[j] = idxs[j], idxs[i] })

		cut := int(float64(n) * (1 - opts.ComparisonFraction))
		train = idxs[:cut]
		comparison = idxs[cut:]
	}

	return train, comparison
}

func selectRows(cols []Column, idx []int32) []Column {
	out := make([]Column, len(cols))

	for c, col := range cols {
		out[c] = selectColumnRows(col, idx)
	}

	return out
}

func selectColumnRows(col Column, idx []int32) Column {
	switch typed := col.(type) {
	case *NumberColumn:
		vals := make([]float32, len(idx))
		for i, r := range idx {
			vals[i] = typed.Values[r]
		}

		return &NumberColumn{Values: vals}
	case *EnumColumn:
		vals := make([]uint32, len(idx))
		for i, r := range idx {
			vals[i] = typed.Values[r]
		}

		return &EnumColumn{Variants: typed.Variants, Values: vals}
	default:
		return col
	}
}

func selectLabels(labels []float64, idx []int32) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = labels[r]
	}

	return out
}

// TrainGrid fits every item against the same train/comparison split, per
// spec.md §4.8: each candidate is trained exactly once against the train
// partition and scored once against the comparison partition; the best
// index is selected by lowest comparison loss, with no retraining step.
func TrainGrid(task Task, features []Column, labels []float64, nClasses int, items []GridItem, opts GridOptions, kill *KillChip, progress ProgressFunc) (*GridResult, error) {
	if len(items) == 0 {
		return nil, Wrapper(ErrGrid, "TrainGrid: no grid items")
	}

	n := features[0].Len()
	trainIdx, compIdx := splitIndices(n, labels, opts)

	trainFeatures := selectRows(features, trainIdx)
	trainLabels := selectLabels(labels, trainIdx)
	compFeatures := selectRows(features, compIdx)
	compLabels := selectLabels(labels, compIdx)

	result := &GridResult{ComparisonMetrics: make([]float64, len(items))}
	bestMetric := 0.0

	for i, item := range items {
		var treeOpts *TrainOptions
		var linearOpts *LinearOptions

		if item.Learner == LearnerTree {
			withLosses := DefaultTrainOptions()
			if item.TreeOptions != nil {
				withLosses = *item.TreeOptions
			}

			withLosses.ComputeLosses = true
			treeOpts = &withLosses
		} else {
			withLosses := DefaultLinearOptions()
			if item.LinearOpts != nil {
				withLosses = *item.LinearOpts
			}

			withLosses.ComputeLosses = true
			linearOpts = &withLosses
		}

		req := TrainRequest{
			Task: task, Learner: item.Learner, NClasses: nClasses,
			Features: trainFeatures, Labels: trainLabels,
			TreeOptions: treeOpts, LinearOpts: linearOpts,
			ValidFeatures: compFeatures, ValidLabels: compLabels,
			Kill: kill, Progress: progress,
		}

		out, err := Train(req)
		if err != nil {
			return nil, err
		}

		result.Outputs = append(result.Outputs, out)

		metric := gridComparisonMetric(out)
		result.ComparisonMetrics[i] = metric

		if i == 0 || metric < bestMetric {
			bestMetric = metric
			result.BestIndex = i
		}

		reportProgress(progress, ProgressEvent{Kind: EventGridItemComplete, Round: i, TrainLoss: metric, Message: item.Label})
	}

	return result, nil
}

func gridComparisonMetric(out *TrainOutput) float64 {
	switch out.Learner {
	case LearnerTree:
		if len(out.Tree.ValidLosses) > 0 {
			return out.Tree.ValidLosses[len(out.Tree.ValidLosses)-1]
		}

		if len(out.Tree.TrainLosses) > 0 {
			return out.Tree.TrainLosses[len(out.Tree.TrainLosses)-1]
		}
	case LearnerLinear:
		if len(out.Linear.ValidLosses) > 0 {
			return out.Linear.ValidLosses[len(out.Linear.ValidLosses)-1]
		}

		if len(out.Linear.TrainLosses) > 0 {
			return out.Linear.TrainLosses[len(out.Linear.TrainLosses)-1]
		}
	}

	return 0
}
