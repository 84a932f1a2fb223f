package tabular

// metrics.go implements spec.md §4.9: classification and regression
// evaluation metrics. Grounded on the teacher's diags.go (which already
// leans on gonum for AUC and rates via gonum.org/v1/gonum/stat), extended
// with the confusion-matrix derived rates and multiclass one-vs-rest
// averaging that diags.go doesn't need for its single-model NN diagnostics.

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ROCPoint is one point on the ROC curve, per spec.md §4.9.
type ROCPoint struct {
	FalsePositiveRate float64
	TruePositiveRate  float64
	Threshold         float64
}

// ROCCurve is the AUC and curve points for one binary score/label pair.
type ROCCurve struct {
	AUC    float64
	Points []ROCPoint
}

// ComputeROC sorts by descending score, collapses duplicate scores into a
// single point, prepends (0,0), and integrates the trapezoidal area, per
// spec.md §4.9.
func ComputeROC(scores []float64, labels []float64) *ROCCurve {
	n := len(scores)
	if n == 0 {
		return &ROCCurve{}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	sort.Slice(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })

	var nPos, nNeg float64

	for _, y := range labels {
		if y > 0 {
			nPos++
		} else {
			nNeg++
		}
	}

	points := []ROCPoint{{0, 0, math.Inf(1)}}

	var tp, fp float64
	i := 0

	for i < n {
		j := i
		threshold := scores[order[i]]

		for j < n && scores[order[j]] == threshold {
			if labels[order[j]] > 0 {
				tp++
			} else {
				fp++
			}

			j++
		}

		tpr, fpr := 0.0, 0.0
		if nPos > 0 {
			tpr = tp / nPos
		}

		if nNeg > 0 {
			fpr = fp / nNeg
		}

		points = append(points, ROCPoint{FalsePositiveRate: fpr, TruePositiveRate: tpr, Threshold: threshold})
		i = j
	}

	auc := 0.0

	for k := 1; k < len(points); k++ {
		dx := points[k].FalsePositiveRate - points[k-1].FalsePositiveRate
		avgY := (points[k].TruePositiveRate + points[k-1].TruePositiveRate) / 2

		auc += dx * avgY
	}

	return &ROCCurve{AUC: auc, Points: points}
}

// StatAUC cross-checks ComputeROC's trapezoidal AUC against gonum's
// stat.AUC on the same curve, used only by tests per spec.md §8's
// testable properties.
func StatAUC(curve *ROCCurve) float64 {
	fpr := make([]float64, len(curve.Points))
	tpr := make([]float64, len(curve.Points))

	for i, p := range curve.Points {
		fpr[i] = p.FalsePositiveRate
		tpr[i] = p.TruePositiveRate
	}

	return stat.AUC(fpr, tpr)
}

// ConfusionMatrix is the 2x2 count matrix at a fixed threshold, per
// spec.md §4.9.
type ConfusionMatrix struct {
	TruePositive  int
	FalsePositive int
	TrueNegative  int
	FalseNegative int
}

// ComputeConfusionMatrix classifies scores against threshold (>= is
// positive) and labels.
func ComputeConfusionMatrix(scores []float64, labels []float64, threshold float64) *ConfusionMatrix {
	cm := &ConfusionMatrix{}

	for i, s := range scores {
		pred := s >= threshold
		actual := labels[i] > 0

		switch {
		case pred && actual:
			cm.TruePositive++
		case pred && !actual:
			cm.FalsePositive++
		case !pred && actual:
			cm.FalseNegative++
		default:
			cm.TrueNegative++
		}
	}

	return cm
}

// safeDiv returns (0, false) rather than NaN when the denominator is zero,
// so an undefined metric is reported as "no value" instead of NaN.
func safeDiv(num, den float64) (float64, bool) {
	if den == 0 {
		return 0, false
	}

	return num / den, true
}

// Accuracy returns (TP+TN)/total, or ok=false if total is zero.
func (cm *ConfusionMatrix) Accuracy() (float64, bool) {
	total := float64(cm.TruePositive + cm.FalsePositive + cm.TrueNegative + cm.FalseNegative)
	return safeDiv(float64(cm.TruePositive+cm.TrueNegative), total)
}

// Precision returns TP/(TP+FP), or ok=false if undefined.
func (cm *ConfusionMatrix) Precision() (float64, bool) {
	return safeDiv(float64(cm.TruePositive), float64(cm.TruePositive+cm.FalsePositive))
}

// Recall returns TP/(TP+FN), or ok=false if undefined.
func (cm *ConfusionMatrix) Recall() (float64, bool) {
	return safeDiv(float64(cm.TruePositive), float64(cm.TruePositive+cm.FalseNegative))
}

// F1 returns the harmonic mean of precision and recall, or ok=false if
// either is undefined or their sum is zero.
func (cm *ConfusionMatrix) F1() (float64, bool) {
	p, pOk := cm.Precision()
	r, rOk := cm.Recall()

	if !pOk || !rOk || p+r == 0 {
		return 0, false
	}

	return 2 * p * r / (p + r), true
}

// MulticlassMetrics is the one-vs-rest confusion matrices plus micro/macro
// averages, per spec.md §4.9.
type MulticlassMetrics struct {
	PerClass     []*ConfusionMatrix
	MacroF1      float64
	MicroF1      float64
}

// ComputeMulticlassMetrics runs one-vs-rest at threshold against each
// class's probability column, then averages.
func ComputeMulticlassMetrics(probs [][]float64, labels []float64, nClasses int, threshold float64) *MulticlassMetrics {
	out := &MulticlassMetrics{PerClass: make([]*ConfusionMatrix, nClasses)}

	var sumTP, sumFP, sumFN int
	var f1Sum float64
	var f1Count int

	for c := 0; c < nClasses; c++ {
		scores := make([]float64, len(labels))
		binLabels := make([]float64, len(labels))

		for i := range labels {
			scores[i] = probs[i][c]

			if int(labels[i]) == c {
				binLabels[i] = 1
			}
		}

		cm := ComputeConfusionMatrix(scores, binLabels, threshold)
		out.PerClass[c] = cm

		sumTP += cm.TruePositive
		sumFP += cm.FalsePositive
		sumFN += cm.FalseNegative

		if f1, ok := cm.F1(); ok {
			f1Sum += f1
			f1Count++
		}
	}

	if f1Count > 0 {
		out.MacroF1 = f1Sum / float64(f1Count)
	}

	microP, microPOk := safeDiv(float64(sumTP), float64(sumTP+sumFP))
	microR, microROk := safeDiv(float64(sumTP), float64(sumTP+sumFN))

	if microPOk && microROk && microP+microR > 0 {
		out.MicroF1 = 2 * microP * microR / (microP + microR)
	}

	return out
}

// RegressionMetrics bundles the standard regression scores, per spec.md
// §4.9.
type RegressionMetrics struct {
	MSE  float64
	RMSE float64
	MAE  float64
	R2   float64
}

// ComputeRegressionMetrics computes MSE/RMSE/MAE/R2 for predicted vs
// actual, using gonum/stat where it directly fits (R2 via stat.RSquaredFrom).
func ComputeRegressionMetrics(predicted, actual []float64) *RegressionMetrics {
	n := len(actual)
	if n == 0 {
		return &RegressionMetrics{}
	}

	var sumSq, sumAbs float64

	for i := range actual {
		d := actual[i] - predicted[i]
		sumSq += d * d
		sumAbs += math.Abs(d)
	}

	mse := sumSq / float64(n)
	weights := make([]float64, n)

	for i := range weights {
		weights[i] = 1
	}

	r2 := stat.RSquaredFrom(predicted, actual, weights)

	return &RegressionMetrics{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  sumAbs / float64(n),
		R2:   r2,
	}
}
