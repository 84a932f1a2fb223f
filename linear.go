package tabular

// linear.go implements spec.md §4.6: a single affine-layer model (bias +
// weights) fit by mini-batch SGD. Grounded directly on the teacher's nn.go
// (NewNNModel's tensor/graph construction, Fit.Do's epoch/batch loop,
// AdamSolver with a linearly-decaying learning rate, early stopping against
// a validation cost), generalized from seafan's hidden-layer DNN graph down
// to the zero-hidden-layer case: one weight matrix and one bias row. Unlike
// the teacher's own softmax head, which drops one category for
// identifiability, the multiclass output layer here is full C-wide
// (bias/weights per spec.md §3's MulticlassClassifier) since the model file
// format and the per-class SHAP surface both expect every class to carry
// its own parameters.

import (
	"math"
	"math/rand"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// LinearOptions parameterizes the linear learner, per spec.md §4.6.
type LinearOptions struct {
	MaxEpochs             int
	BatchSize             int
	LearningRateStart     float64
	LearningRateEnd       float64
	L2Penalty             float64
	Seed                  int64
	EarlyStoppingOptions  *EarlyStoppingOptions
	ComputeLosses         bool
}

// DefaultLinearOptions mirrors the teacher's NewFit/WithLearnRate defaults.
func DefaultLinearOptions() LinearOptions {
	return LinearOptions{
		MaxEpochs:         200,
		BatchSize:         256,
		LearningRateStart: 0.05,
		LearningRateEnd:   0.001,
		Seed:              1,
	}
}

// LinearOpt is a functional option over LinearOptions, mirroring the
// teacher's FitOpts (WithL2Reg, WithLearnRate, WithValidation).
type LinearOpt func(*LinearOptions)

func WithLinearEpochs(n int) LinearOpt       { return func(o *LinearOptions) { o.MaxEpochs = n } }
func WithLinearBatchSize(n int) LinearOpt    { return func(o *LinearOptions) { o.BatchSize = n } }
func WithLinearL2(penalty float64) LinearOpt { return func(o *LinearOptions) { o.L2Penalty = penalty } }
func WithLinearLearnRate(start, end float64) LinearOpt {
	return func(o *LinearOptions) { o.LearningRateStart = start; o.LearningRateEnd = end }
}
func WithLinearSeed(seed int64) LinearOpt { return func(o *LinearOptions) { o.Seed = seed } }
func WithLinearEarlyStopping(es EarlyStoppingOptions) LinearOpt {
	return func(o *LinearOptions) { o.EarlyStoppingOptions = &es }
}

// LinearModel is the trained affine model, per spec.md §3: a bias and one
// weight per (feature, output) pair, plus the per-feature means used to
// center inputs at fit time (so predict-time centering matches exactly).
type LinearModel struct {
	Kind       EnsembleKind
	NFeatures  int
	NOutputs   int // 1 for regression/binary, NClasses for multiclass: every class gets its own bias/weight column, none implied
	FeatureMeans []float64
	Bias       []float64   // length NOutputs
	Weights    [][]float64 // NFeatures x NOutputs
}

// featureMatrix densifies feature columns into an n x p row-major matrix,
// centering each Number column at its mean and leaving Enum columns as
// their raw variant code (1-based, 0 = invalid) (spec.md §4.6: feature columns are the
// fixed-width numeric arrays produced by the feature groups' compute_array
// contract, not raw categorical columns -- centering here only ever
// applies to already-numeric inputs).
func featureMatrix(cols []Column) (mat [][]float64, means []float64) {
	n := cols[0].Len()
	p := len(cols)
	means = make([]float64, p)

	for j, c := range cols {
		sum := 0.0
		cnt := 0

		for i := 0; i < n; i++ {
			v := c.At(i)
			if v.Kind == KindNumber && !math.IsNaN(float64(v.Number)) {
				sum += float64(v.Number)
				cnt++
			}
		}

		if cnt > 0 {
			means[j] = sum / float64(cnt)
		}
	}

	mat = make([][]float64, n)

	for i := 0; i < n; i++ {
		row := make([]float64, p)

		for j, c := range cols {
			v := c.At(i)

			switch v.Kind {
			case KindNumber:
				if math.IsNaN(float64(v.Number)) {
					row[j] = 0
				} else {
					row[j] = float64(v.Number) - means[j]
				}
			case KindEnum:
				row[j] = float64(v.Enum)
			default:
				row[j] = 0
			}
		}

		mat[i] = row
	}

	return mat, means
}

// LinearTrainResult bundles a trained LinearModel with its training-time
// extras, mirroring TrainTreeResult.
type LinearTrainResult struct {
	Model       *LinearModel
	TrainLosses []float64
	ValidLosses []float64
	Diagnostics Diagnostics
	Cancelled   bool
}

// TrainLinear fits a LinearModel by mini-batch Adam SGD, per spec.md §4.6.
func TrainLinear(
	task Task,
	featureCols []Column,
	labels []float64,
	nClasses int,
	opts LinearOptions,
	validFeatureCols []Column,
	validLabels []float64,
	kill *KillChip,
	progress ProgressFunc,
) (*LinearTrainResult, error) {
	if len(labels) == 0 {
		return nil, Wrapper(ErrLinear, "TrainLinear: zero rows")
	}

	nOutputs := 1
	kind := EnsembleRegressor

	switch task {
	case TaskBinaryClassification:
		kind = EnsembleBinaryClassifier
	case TaskMulticlassClassification:
		if nClasses < 2 {
			return nil, Wrapper(ErrLinear, "TrainLinear: multiclass task requires NClasses >= 2")
		}

		kind = EnsembleMulticlassClassifier
		nOutputs = nClasses // spec.md §3: full C-wide bias/weight layout, no dropped/implied class
	}

	X, means := featureMatrix(featureCols)
	n := len(X)
	p := len(featureCols)

	var validX [][]float64

	if validFeatureCols != nil {
		validX, _ = featureMatrix(validFeatureCols)
	}

	g := G.NewGraph()

	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > n {
		batchSize = n
	}

	xNode := G.NewTensor(g, tensor.Float64, 2, G.WithName("x"), G.WithShape(batchSize, p))
	yNode := G.NewTensor(g, tensor.Float64, 2, G.WithName("y"), G.WithShape(batchSize, nOutputs))
	w := G.NewTensor(g, tensor.Float64, 2, G.WithName("weights"), G.WithShape(p, nOutputs), G.WithInit(G.GlorotN(1.0)))
	b := G.NewTensor(g, tensor.Float64, 2, G.WithName("bias"), G.WithShape(1, nOutputs), G.WithInit(G.Zeroes()))

	affine := G.Must(G.Mul(xNode, w))
	affine = G.Must(G.BroadcastAdd(affine, b, nil, []byte{0}))

	var fitted, cost *G.Node

	switch task {
	case TaskRegression:
		fitted = affine
		cost = G.Must(golgiRMS(fitted, yNode))
	case TaskBinaryClassification:
		fitted = G.Must(G.Sigmoid(affine))
		cost = G.Must(binaryCrossEntropy(fitted, yNode))
	case TaskMulticlassClassification:
		fitted = G.Must(G.SoftMax(affine))
		cost = G.Must(G.Neg(G.Must(G.Mean(G.Must(G.HadamardProd(G.Must(G.Log(fitted)), yNode))))))
	}

	if _, err := G.Grad(cost, w, b); err != nil {
		return nil, Wrapper(ErrLinear, "TrainLinear: building gradient: "+err.Error())
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(w, b))
	defer func() { _ = vm.Close() }()

	solver := G.NewAdamSolver()
	if opts.L2Penalty > 0 {
		G.WithL2Reg(opts.L2Penalty)(solver)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	order := make([]int, n)

	for i := range order {
		order[i] = i
	}

	result := &LinearTrainResult{}
	es := &earlyStopState{}

	labelMatrix := buildLabelMatrix(task, labels, nOutputs)
	var validLabelMatrix [][]float64

	if validX != nil {
		validLabelMatrix = buildLabelMatrix(task, validLabels, nOutputs)
	}

	for epoch := 1; epoch <= opts.MaxEpochs; epoch++ {
		if kill.Tripped() {
			result.Cancelled = true
			reportProgress(progress, ProgressEvent{Kind: EventCancelled, Round: epoch})

			break
		}

		lr := opts.LearningRateEnd
		if opts.LearningRateStart > 0 {
			lr = opts.LearningRateEnd + (opts.LearningRateStart-opts.LearningRateEnd)*(1.0-float64(epoch)/float64(opts.MaxEpochs))
		}

		G.WithLearnRate(lr)(solver)

		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n // final partial batch skipped below to keep the fixed tensor shape
			}

			if end-start < batchSize {
				continue
			}

			xBatch := make([]float64, batchSize*p)
			yBatch := make([]float64, batchSize*nOutputs)

			for bi := 0; bi < batchSize; bi++ {
				idx := order[start+bi]
				copy(xBatch[bi*p:(bi+1)*p], X[idx])
				copy(yBatch[bi*nOutputs:(bi+1)*nOutputs], labelMatrix[idx])
			}

			if err := G.Let(xNode, tensor.New(tensor.WithBacking(xBatch), tensor.WithShape(batchSize, p))); err != nil {
				return nil, Wrapper(ErrLinear, "TrainLinear: "+err.Error())
			}

			if err := G.Let(yNode, tensor.New(tensor.WithBacking(yBatch), tensor.WithShape(batchSize, nOutputs))); err != nil {
				return nil, Wrapper(ErrLinear, "TrainLinear: "+err.Error())
			}

			if err := vm.RunAll(); err != nil {
				return nil, Wrapper(ErrLinear, "TrainLinear: "+err.Error())
			}

			if err := solver.Step(G.NodesToValueGrads(G.Nodes{w, b})); err != nil {
				return nil, Wrapper(ErrLinear, "TrainLinear: "+err.Error())
			}

			vm.Reset()
		}

		model := extractLinearModel(kind, p, nOutputs, means, w, b)

		var trainLoss, validLoss float64
		haveValid := validX != nil

		if opts.ComputeLosses || opts.EarlyStoppingOptions != nil {
			trainLoss = computeLinearLoss(task, model, X, labelMatrix)
			result.TrainLosses = append(result.TrainLosses, trainLoss)

			if haveValid {
				validLoss = computeLinearLoss(task, model, validX, validLabelMatrix)
				result.ValidLosses = append(result.ValidLosses, validLoss)
			}
		}

		reportProgress(progress, ProgressEvent{
			Kind: EventEpochComplete, Round: epoch, TrainLoss: trainLoss,
			ValidLoss: validLoss, HasValidLoss: haveValid,
		})

		if opts.EarlyStoppingOptions != nil && haveValid {
			if es.update(validLoss, *opts.EarlyStoppingOptions) {
				reportProgress(progress, ProgressEvent{Kind: EventEarlyStopped, Round: epoch})
				break
			}
		}

		result.Model = model
	}

	if result.Model == nil {
		result.Model = extractLinearModel(kind, p, nOutputs, means, w, b)
	}

	return result, nil
}

func extractLinearModel(kind EnsembleKind, p, nOutputs int, means []float64, w, b *G.Node) *LinearModel {
	wData := w.Value().Data().([]float64)
	bData := b.Value().Data().([]float64)

	weights := make([][]float64, p)

	for i := 0; i < p; i++ {
		row := make([]float64, nOutputs)

		for c := 0; c < nOutputs; c++ {
			row[c] = snapF32(wData[i*nOutputs+c])
		}

		weights[i] = row
	}

	bias := make([]float64, nOutputs)
	for c := range bias {
		bias[c] = snapF32(bData[c])
	}

	featureMeans := make([]float64, len(means))
	for i, v := range means {
		featureMeans[i] = snapF32(v)
	}

	return &LinearModel{
		Kind: kind, NFeatures: p, NOutputs: nOutputs,
		FeatureMeans: featureMeans,
		Bias:         bias, Weights: weights,
	}
}

func buildLabelMatrix(task Task, labels []float64, nOutputs int) [][]float64 {
	out := make([][]float64, len(labels))

	for i, y := range labels {
		row := make([]float64, nOutputs)

		switch task {
		case TaskRegression, TaskBinaryClassification:
			row[0] = y
		case TaskMulticlassClassification:
			// full C-wide one-hot row: every class, including the last, has
			// its own column (spec.md §3's literal MulticlassClassifier
			// layout has no dropped/implied class).
			cls := int(y)
			if cls < nOutputs {
				row[cls] = 1
			}
		}

		out[i] = row
	}

	return out
}

func computeLinearLoss(task Task, model *LinearModel, X [][]float64, labelMatrix [][]float64) float64 {
	n := len(X)
	if n == 0 {
		return 0
	}

	sum := 0.0

	for i := range X {
		logits := linearLogits(model, X[i])

		switch task {
		case TaskRegression:
			d := labelMatrix[i][0] - logits[0]
			sum += 0.5 * d * d
		case TaskBinaryClassification:
			p := clampProbability(sigmoid(logits[0]), nil)
			y := labelMatrix[i][0]
			sum -= y*math.Log(p) + (1-y)*math.Log(1-p)
		case TaskMulticlassClassification:
			probs := softmax(logits)

			for c, yc := range labelMatrix[i] {
				if yc > 0 {
					sum -= yc * math.Log(clampProbability(probs[c], nil))
				}
			}
		}
	}

	return sum / float64(n)
}

func linearLogits(m *LinearModel, row []float64) []float64 {
	out := make([]float64, m.NOutputs)
	copy(out, m.Bias)

	for j, x := range row {
		for c := 0; c < m.NOutputs; c++ {
			out[c] += x * m.Weights[j][c]
		}
	}

	return out
}

// PredictLinearRegressor returns the fitted value for one row of
// already-centered features (x[j] - FeatureMeans[j]).
func (m *LinearModel) PredictLinearRegressor(row []float64) float64 {
	return linearLogits(m, row)[0]
}

// PredictLinearBinaryProbability applies the logistic sigmoid to the
// single output logit.
func (m *LinearModel) PredictLinearBinaryProbability(row []float64) float64 {
	return sigmoid(linearLogits(m, row)[0])
}

// PredictLinearMulticlassProbabilities applies softmax to the model's full
// C-wide logit vector; every class carries its own bias/weight column, so
// no class needs an implied zero logit.
func (m *LinearModel) PredictLinearMulticlassProbabilities(row []float64) []float64 {
	return softmax(linearLogits(m, row))
}

// CenterRow subtracts the fitted feature means from a raw feature row, the
// same centering TrainLinear applied during fitting.
func (m *LinearModel) CenterRow(raw []float64) []float64 {
	out := make([]float64, len(raw))

	for j, x := range raw {
		mean := 0.0
		if j < len(m.FeatureMeans) {
			mean = m.FeatureMeans[j]
		}

		out[j] = x - mean
	}

	return out
}

// golgiRMS computes the mean squared error of the residual (fitted - obs):
// the mean of the squared differences, with no square root and no factor
// of one half.
func golgiRMS(fitted, obs *G.Node) (*G.Node, error) {
	diff, err := G.Sub(fitted, obs)
	if err != nil {
		return nil, err
	}

	sq, err := G.Square(diff)
	if err != nil {
		return nil, err
	}

	return G.Mean(sq)
}

// binaryCrossEntropy is the standard log-loss for a single sigmoid output.
func binaryCrossEntropy(fitted, obs *G.Node) (*G.Node, error) {
	one := G.NewConstant(1.0)

	logP, err := G.Log(fitted)
	if err != nil {
		return nil, err
	}

	oneMinusFitted, err := G.Sub(one, fitted)
	if err != nil {
		return nil, err
	}

	logOneMinusP, err := G.Log(oneMinusFitted)
	if err != nil {
		return nil, err
	}

	oneMinusObs, err := G.Sub(one, obs)
	if err != nil {
		return nil, err
	}

	termPos, err := G.HadamardProd(obs, logP)
	if err != nil {
		return nil, err
	}

	termNeg, err := G.HadamardProd(oneMinusObs, logOneMinusP)
	if err != nil {
		return nil, err
	}

	sum, err := G.Add(termPos, termNeg)
	if err != nil {
		return nil, err
	}

	mean, err := G.Mean(sum)
	if err != nil {
		return nil, err
	}

	return G.Neg(mean)
}
