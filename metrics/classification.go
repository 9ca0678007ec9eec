// Package metrics provides classification evaluation metrics.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// validatePair checks that both vectors are non-empty and the same
// length, returning that length.
func validatePair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// firstColumn extracts the first column of a label matrix.
func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	vec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		vec.SetVec(i, m.At(i, 0))
	}
	return vec, nil
}

// Accuracy returns the fraction of exactly matching labels.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validatePair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix computes Accuracy over the first column of matrix
// inputs.
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	yTrueVec, err := firstColumn("AccuracyMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	yPredVec, err := firstColumn("AccuracyMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(yTrueVec, yPredVec)
}

// ClassificationError returns 1 - accuracy.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	accuracy, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - accuracy, nil
}

// AUC computes the area under the ROC curve from binary labels and
// predicted scores. Ties receive averaged ranks. When only one class
// is present the result is undefined; 0.5 is returned with an
// UndefinedMetricWarning.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validatePair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	nPos := 0
	for i := 0; i < n; i++ {
		label := yTrue.AtVec(i)
		if label != 0 && label != 1 {
			return 0, errors.NewValueError("AUC", "labels must be 0 or 1")
		}
		if label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present", 0.5))
		return 0.5, nil
	}

	// Rank-based AUC with ties averaged.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return yPred.AtVec(order[a]) < yPred.AtVec(order[b])
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && yPred.AtVec(order[j]) == yPred.AtVec(order[i]) {
			j++
		}
		// Ranks are 1-based; tied scores share the average rank.
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avgRank
		}
		i = j
	}

	rankSum := 0.0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			rankSum += ranks[i]
		}
	}

	auc := (rankSum - float64(nPos)*float64(nPos+1)/2) / (float64(nPos) * float64(nNeg))
	return auc, nil
}

// AUCMatrix computes AUC over the first column of matrix inputs.
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	yTrueVec, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	yPredVec, err := firstColumn("AUCMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return AUC(yTrueVec, yPredVec)
}

// BinaryLogLoss computes the cross-entropy between binary labels and
// predicted probabilities. Probabilities are clipped away from 0 and 1
// before taking logs.
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validatePair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	const epsilon = 1e-15
	sum := 0.0
	for i := 0; i < n; i++ {
		label := yTrue.AtVec(i)
		if label != 0 && label != 1 {
			return 0, errors.NewValueError("BinaryLogLoss", "labels must be 0 or 1")
		}
		p := math.Min(math.Max(yPred.AtVec(i), epsilon), 1-epsilon)
		if label == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// ConfusionMatrix counts predictions per (true, predicted) class pair.
// Entry (i, j) is the number of samples of class labels[i] predicted
// as labels[j]. Labels are the sorted union of both vectors.
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*mat.Dense, []int, error) {
	n, err := validatePair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}

	classMap := make(map[int]bool)
	for i := 0; i < n; i++ {
		classMap[int(yTrue.AtVec(i))] = true
		classMap[int(yPred.AtVec(i))] = true
	}
	labels := make([]int, 0, len(classMap))
	for class := range classMap {
		labels = append(labels, class)
	}
	sort.Ints(labels)

	index := make(map[int]int, len(labels))
	for i, class := range labels {
		index[class] = i
	}

	counts := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		row := index[int(yTrue.AtVec(i))]
		col := index[int(yPred.AtVec(i))]
		counts.Set(row, col, counts.At(row, col)+1)
	}
	return counts, labels, nil
}

// Precision returns tp / (tp + fp) for the given positive class. A
// zero denominator is undefined; 0 is returned with an
// UndefinedMetricWarning.
func Precision(yTrue, yPred *mat.VecDense, positive int) (float64, error) {
	n, err := validatePair("Precision", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	tp, fp := 0, 0
	for i := 0; i < n; i++ {
		if int(yPred.AtVec(i)) != positive {
			continue
		}
		if int(yTrue.AtVec(i)) == positive {
			tp++
		} else {
			fp++
		}
	}
	if tp+fp == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("Precision", "no predicted samples for class", 0))
		return 0, nil
	}
	return float64(tp) / float64(tp+fp), nil
}

// Recall returns tp / (tp + fn) for the given positive class. A zero
// denominator is undefined; 0 is returned with an
// UndefinedMetricWarning.
func Recall(yTrue, yPred *mat.VecDense, positive int) (float64, error) {
	n, err := validatePair("Recall", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	tp, fn := 0, 0
	for i := 0; i < n; i++ {
		if int(yTrue.AtVec(i)) != positive {
			continue
		}
		if int(yPred.AtVec(i)) == positive {
			tp++
		} else {
			fn++
		}
	}
	if tp+fn == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("Recall", "no true samples for class", 0))
		return 0, nil
	}
	return float64(tp) / float64(tp+fn), nil
}

// F1Score returns the harmonic mean of precision and recall for the
// given positive class.
func F1Score(yTrue, yPred *mat.VecDense, positive int) (float64, error) {
	precision, err := Precision(yTrue, yPred, positive)
	if err != nil {
		return 0, err
	}
	recall, err := Recall(yTrue, yPred, positive)
	if err != nil {
		return 0, err
	}
	if precision+recall == 0 {
		return 0, nil
	}
	return 2 * precision * recall / (precision + recall), nil
}

// ClassMetrics holds per-class precision, recall and F1.
type ClassMetrics struct {
	Class     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report summarizes classification quality across all classes.
type Report struct {
	Classes        []ClassMetrics
	Accuracy       float64
	MacroPrecision float64
	MacroRecall    float64
	MacroF1        float64
	NSamples       int
}

// ClassificationReport computes per-class precision, recall, F1 and
// support plus overall accuracy and macro averages.
func ClassificationReport(yTrue, yPred *mat.VecDense) (*Report, error) {
	n, err := validatePair("ClassificationReport", yTrue, yPred)
	if err != nil {
		return nil, err
	}

	_, labels, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	report := &Report{NSamples: n}
	for _, class := range labels {
		precision, err := Precision(yTrue, yPred, class)
		if err != nil {
			return nil, err
		}
		recall, err := Recall(yTrue, yPred, class)
		if err != nil {
			return nil, err
		}
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}

		support := 0
		for i := 0; i < n; i++ {
			if int(yTrue.AtVec(i)) == class {
				support++
			}
		}

		report.Classes = append(report.Classes, ClassMetrics{
			Class:     class,
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   support,
		})
		report.MacroPrecision += precision
		report.MacroRecall += recall
		report.MacroF1 += f1
	}

	nClasses := float64(len(labels))
	report.MacroPrecision /= nClasses
	report.MacroRecall /= nClasses
	report.MacroF1 /= nClasses

	report.Accuracy, err = Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// String renders the report as an aligned text table.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n", "class", "precision", "recall", "f1", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%12d %10.3f %10.3f %10.3f %10d\n",
			c.Class, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(&b, "\n%12s %10.3f\n", "accuracy", r.Accuracy)
	fmt.Fprintf(&b, "%12s %10.3f %10.3f %10.3f %10d\n",
		"macro avg", r.MacroPrecision, r.MacroRecall, r.MacroF1, r.NSamples)
	return b.String()
}
