package tabular

// task.go implements spec.md §4.7: the single dispatcher entry point that
// picks the label encoding and delegates to the tree or linear learner.
// Grounded on the teacher's pipeline.go Train(...) top-level function,
// generalized from seafan's fixed DNN pipeline to a task-parameterized
// dispatch over two interchangeable learner backends.

// Task selects the label semantics and loss family, per spec.md §3.
type Task int

const (
	TaskRegression Task = iota
	TaskBinaryClassification
	TaskMulticlassClassification
)

// LearnerKind selects which learner backend trains the model, per spec.md
// §4.7.
type LearnerKind int

const (
	LearnerTree LearnerKind = iota
	LearnerLinear
)

// TrainRequest bundles everything Train needs, per spec.md §4.7.
type TrainRequest struct {
	Task        Task
	Learner     LearnerKind
	NClasses    int // only meaningful for TaskMulticlassClassification
	Features    []Column
	Labels      []float64
	TreeOptions *TrainOptions
	LinearOpts  *LinearOptions

	ValidFeatures []Column // optional comparison split for early stopping/loss tracking
	ValidLabels   []float64

	Kill     *KillChip
	Progress ProgressFunc
}

// TrainOutput is the result of Train, per spec.md §3.
type TrainOutput struct {
	Task     Task
	Learner  LearnerKind
	Tree     *TrainTreeResult
	Linear   *LinearTrainResult
	Cancelled bool
}

// Train dispatches to the tree or linear learner according to req.Learner,
// per spec.md §4.7. Both learners share the same Task/label contract so the
// caller can switch backends without reshaping its data.
func Train(req TrainRequest) (*TrainOutput, error) {
	if len(req.Features) == 0 {
		return nil, Wrapper(ErrTask, "Train: no feature columns")
	}

	if len(req.Labels) == 0 {
		return nil, Wrapper(ErrTask, "Train: no labels")
	}

	if req.Task == TaskMulticlassClassification && req.NClasses < 2 {
		return nil, Wrapper(ErrTask, "Train: multiclass task requires NClasses >= 2")
	}

	switch req.Learner {
	case LearnerTree:
		opts := DefaultTrainOptions()
		if req.TreeOptions != nil {
			opts = *req.TreeOptions
		}

		var validBM *BinnedMatrix

		if req.ValidFeatures != nil {
			instructions := ComputeBinningInstructions(&TableView{columns: req.Features, nrows: req.Features[0].Len()}, BinningOptions{
				MaxValidBinsForNumberFeatures:        opts.MaxValidBinsForNumberFeatures,
				MaxExamplesForComputingBinThresholds: opts.MaxExamplesForComputingBinThresholds,
			})

			bm, err := BuildBinnedMatrix(req.ValidFeatures, instructions, opts.BinnedFeaturesLayout)
			if err != nil {
				return nil, err
			}

			validBM = bm
		}

		res, err := TrainTree(req.Task, req.Features, req.Labels, req.NClasses, opts, validBM, req.ValidLabels, req.Kill, req.Progress)
		if err != nil {
			return nil, err
		}

		return &TrainOutput{Task: req.Task, Learner: req.Learner, Tree: res, Cancelled: res.Cancelled}, nil

	case LearnerLinear:
		opts := DefaultLinearOptions()
		if req.LinearOpts != nil {
			opts = *req.LinearOpts
		}

		res, err := TrainLinear(req.Task, req.Features, req.Labels, req.NClasses, opts, req.ValidFeatures, req.ValidLabels, req.Kill, req.Progress)
		if err != nil {
			return nil, err
		}

		return &TrainOutput{Task: req.Task, Learner: req.Learner, Linear: res, Cancelled: res.Cancelled}, nil

	default:
		return nil, Wrapper(ErrTask, "Train: unknown learner kind")
	}
}
