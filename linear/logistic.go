// Package linear implements linear classification models.
package linear

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// LogisticRegression is a logistic regression classifier trained with
// batch gradient descent. Binary problems fit a single weight vector;
// multiclass problems fall back to one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty      string  // regularization: "l2" or "none"
	C            float64 // inverse regularization strength
	fitIntercept bool
	randomState  int64
	maxIter      int
	tol          float64

	// Fitted parameters
	Coef_      [][]float64 // (1 x n_features) for binary, (n_classes x n_features) for OVR
	Intercept_ []float64
	Classes_   []int
	NIter_     []int

	nClasses_  int
	nFeatures_ int

	rand *rand.Rand
}

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a LogisticRegression classifier.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  -1,
		maxIter:      100,
		tol:          1e-4,
	}

	for _, opt := range opts {
		opt(lr)
	}

	if lr.randomState >= 0 {
		lr.rand = rand.New(rand.NewSource(lr.randomState))
	} else {
		lr.rand = rand.New(rand.NewSource(rand.Int63()))
	}

	return lr
}

// WithPenalty sets the regularization type ("l2" or "none").
func WithPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithC sets the inverse regularization strength.
func WithC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithFitIntercept sets whether to fit an intercept term.
func WithFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithMaxIter sets the maximum number of iterations.
func WithMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithTol sets the tolerance for the stopping criterion.
func WithTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithRandomState sets the random seed for weight initialization.
func WithRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
		if seed >= 0 {
			lr.rand = rand.New(rand.NewSource(seed))
		}
	}
}

// Fit trains the logistic regression model. Failing to reach the
// tolerance within max_iter raises a ConvergenceWarning; it does not
// fail the fit.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 {
		return errors.NewValueError("LogisticRegression.Fit", "empty data")
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	lr.extractClasses(y)
	lr.nFeatures_ = nFeatures
	lr.initializeWeights(nFeatures)

	if lr.nClasses_ < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "need at least 2 classes")
	}

	if lr.nClasses_ == 2 {
		yBinary := binaryLabels(y, lr.Classes_[1])
		if err := lr.fitBinaryForClass(X, yBinary, 0); err != nil {
			return err
		}
	} else {
		for classIdx, class := range lr.Classes_ {
			yBinary := binaryLabels(y, class)
			if err := lr.fitBinaryForClass(X, yBinary, classIdx); err != nil {
				return errors.Wrapf(err, "failed to fit class %d", class)
			}
		}
	}

	lr.state.SetFitted()
	lr.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// extractClasses identifies the unique class labels, sorted.
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classMap[int(y.At(i, 0))] = true
	}

	lr.Classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		lr.Classes_ = append(lr.Classes_, class)
	}
	sort.Ints(lr.Classes_)
	lr.nClasses_ = len(lr.Classes_)
}

func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	nSets := 1
	if lr.nClasses_ > 2 {
		nSets = lr.nClasses_
	}

	lr.Coef_ = make([][]float64, nSets)
	for i := range lr.Coef_ {
		lr.Coef_[i] = make([]float64, nFeatures)
		for j := range lr.Coef_[i] {
			lr.Coef_[i][j] = lr.rand.NormFloat64() * 0.01
		}
	}
	lr.Intercept_ = make([]float64, nSets)
	lr.NIter_ = make([]int, nSets)
}

// binaryLabels converts labels to 0/1 against a positive class.
func binaryLabels(y mat.Matrix, positive int) *mat.Dense {
	rows, _ := y.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if int(y.At(i, 0)) == positive {
			out.Set(i, 0, 1)
		}
	}
	return out
}

// fitBinaryForClass runs gradient descent for one weight set.
func (lr *LogisticRegression) fitBinaryForClass(X mat.Matrix, yBinary mat.Matrix, classIdx int) error {
	nSamples, nFeatures := X.Dims()
	weights := lr.Coef_[classIdx]
	intercept := &lr.Intercept_[classIdx]

	baseLearningRate := 1.0
	converged := false

	for iter := 0; iter < lr.maxIter; iter++ {
		gradWeights := make([]float64, nFeatures)
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			residual := sigmoid(z) - yBinary.At(i, 0)
			gradIntercept += residual
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += residual * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		if lr.penalty == "l2" {
			lambda := 1.0 / lr.C
			for j := range weights {
				gradWeights[j] += lambda * weights[j] / float64(nSamples)
			}
		}

		if err := errors.CheckNumericalStability("gradient_update", gradWeights, iter); err != nil {
			return err
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}

		lr.NIter_[classIdx] = iter + 1

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			if math.Abs(g) > maxGrad {
				maxGrad = math.Abs(g)
			}
		}
		if maxGrad < lr.tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter, ""))
	}
	return nil
}

// Predict returns the predicted class labels.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "Predict")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures_ {
		return nil, errors.NewDimensionError("LogisticRegression.Predict", lr.nFeatures_, nFeatures, 1)
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}

	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best, bestProba := 0, probas.At(i, 0)
		for c := 1; c < lr.nClasses_; c++ {
			if probas.At(i, c) > bestProba {
				best, bestProba = c, probas.At(i, c)
			}
		}
		predictions.Set(i, 0, float64(lr.Classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures_ {
		return nil, errors.NewDimensionError("LogisticRegression.PredictProba", lr.nFeatures_, nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, lr.nClasses_, nil)

	if lr.nClasses_ == 2 {
		for i := 0; i < nSamples; i++ {
			z := lr.Intercept_[0]
			for j := 0; j < lr.nFeatures_; j++ {
				z += X.At(i, j) * lr.Coef_[0][j]
			}
			p := sigmoid(z)
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
		}
		return probas, nil
	}

	// One-vs-rest scores through softmax.
	for i := 0; i < nSamples; i++ {
		scores := make([]float64, lr.nClasses_)
		maxScore := math.Inf(-1)
		for c := 0; c < lr.nClasses_; c++ {
			score := lr.Intercept_[c]
			for j := 0; j < lr.nFeatures_; j++ {
				score += X.At(i, j) * lr.Coef_[c][j]
			}
			scores[c] = score
			if score > maxScore {
				maxScore = score
			}
		}

		sum := 0.0
		for c := range scores {
			scores[c] = math.Exp(scores[c] - maxScore)
			sum += scores[c]
		}
		for c := range scores {
			probas.Set(i, c, scores[c]/sum)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Classes returns the class labels seen during fitting.
func (lr *LogisticRegression) Classes() []int {
	return lr.Classes_
}

// GetParams returns the model hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// sigmoid computes the logistic function.
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

type logisticGobPayload struct {
	Penalty      string
	C            float64
	FitIntercept bool
	MaxIter      int
	Tol          float64
	Coef         [][]float64
	Intercept    []float64
	Classes      []int
	NIter        []int
	NFeatures    int
}

// GobEncode serializes the fitted model.
func (lr *LogisticRegression) GobEncode() ([]byte, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "GobEncode")
	}
	payload := logisticGobPayload{
		Penalty:      lr.penalty,
		C:            lr.C,
		FitIntercept: lr.fitIntercept,
		MaxIter:      lr.maxIter,
		Tol:          lr.tol,
		Coef:         lr.Coef_,
		Intercept:    lr.Intercept_,
		Classes:      lr.Classes_,
		NIter:        lr.NIter_,
		NFeatures:    lr.nFeatures_,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, errors.Wrap(err, "failed to encode LogisticRegression")
	}
	return buf.Bytes(), nil
}

// GobDecode restores a model serialized by GobEncode.
func (lr *LogisticRegression) GobDecode(data []byte) error {
	var payload logisticGobPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return errors.Wrap(err, "failed to decode LogisticRegression")
	}
	lr.penalty = payload.Penalty
	lr.C = payload.C
	lr.fitIntercept = payload.FitIntercept
	lr.maxIter = payload.MaxIter
	lr.tol = payload.Tol
	lr.Coef_ = payload.Coef
	lr.Intercept_ = payload.Intercept
	lr.Classes_ = payload.Classes
	lr.NIter_ = payload.NIter
	lr.nClasses_ = len(payload.Classes)
	lr.nFeatures_ = payload.NFeatures
	lr.rand = rand.New(rand.NewSource(rand.Int63()))
	lr.state = model.NewStateManager()
	lr.state.SetFitted()
	lr.state.SetDimensions(payload.NFeatures, 0)
	return nil
}
