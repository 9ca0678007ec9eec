// Package naivebayes implements the Gaussian naive Bayes classifier.
package naivebayes

import (
	"bytes"
	"encoding/gob"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// GaussianNB is a naive Bayes classifier assuming each feature follows
// a per-class Gaussian distribution.
type GaussianNB struct {
	state *model.StateManager

	// Portion of the largest feature variance added to all variances
	// to keep the likelihood terms finite.
	varSmoothing float64

	// Fitted attributes
	Theta_      [][]float64 // per-class feature means
	Var_        [][]float64 // per-class feature variances
	ClassPrior_ []float64
	Classes_    []int
	NFeatures_  int
}

// GaussianNBOption is a functional option for GaussianNB.
type GaussianNBOption func(*GaussianNB)

// NewGaussianNB creates a GaussianNB classifier.
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// WithVarSmoothing sets the variance smoothing fraction.
func WithVarSmoothing(eps float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.varSmoothing = eps
	}
}

// Fit estimates per-class feature means, variances and class priors.
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 {
		return errors.NewValueError("GaussianNB.Fit", "empty data")
	}
	if yRows != nSamples {
		return errors.NewDimensionError("GaussianNB.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("GaussianNB.Fit", 1, yCols, 1)
	}
	if nb.varSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.varSmoothing)
	}

	byClass := make(map[int][]int)
	for i := 0; i < nSamples; i++ {
		label := int(y.At(i, 0))
		byClass[label] = append(byClass[label], i)
	}

	nb.Classes_ = make([]int, 0, len(byClass))
	for class := range byClass {
		nb.Classes_ = append(nb.Classes_, class)
	}
	sort.Ints(nb.Classes_)
	nb.NFeatures_ = nFeatures

	nb.Theta_ = make([][]float64, len(nb.Classes_))
	nb.Var_ = make([][]float64, len(nb.Classes_))
	nb.ClassPrior_ = make([]float64, len(nb.Classes_))

	maxVar := 0.0
	for ci, class := range nb.Classes_ {
		rows := byClass[class]
		nb.ClassPrior_[ci] = float64(len(rows)) / float64(nSamples)

		means := make([]float64, nFeatures)
		for _, row := range rows {
			for j := 0; j < nFeatures; j++ {
				means[j] += X.At(row, j)
			}
		}
		for j := range means {
			means[j] /= float64(len(rows))
		}

		variances := make([]float64, nFeatures)
		for _, row := range rows {
			for j := 0; j < nFeatures; j++ {
				d := X.At(row, j) - means[j]
				variances[j] += d * d
			}
		}
		for j := range variances {
			variances[j] /= float64(len(rows))
			if variances[j] > maxVar {
				maxVar = variances[j]
			}
		}

		nb.Theta_[ci] = means
		nb.Var_[ci] = variances
	}

	epsilon := nb.varSmoothing * maxVar
	if epsilon == 0 {
		epsilon = nb.varSmoothing
	}
	for ci := range nb.Var_ {
		for j := range nb.Var_[ci] {
			nb.Var_[ci][j] += epsilon
		}
	}

	nb.state.SetFitted()
	nb.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// Predict returns the class with the highest posterior for each sample.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := nb.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best, bestProba := 0, probas.At(i, 0)
		for c := 1; c < len(nb.Classes_); c++ {
			if probas.At(i, c) > bestProba {
				best, bestProba = c, probas.At(i, c)
			}
		}
		predictions.Set(i, 0, float64(nb.Classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns normalized class posteriors. Log joint
// likelihoods are shifted by their maximum before exponentiation.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !nb.state.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != nb.NFeatures_ {
		return nil, errors.NewDimensionError("GaussianNB.PredictProba", nb.NFeatures_, nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, len(nb.Classes_), nil)
	for i := 0; i < nSamples; i++ {
		logJoint := make([]float64, len(nb.Classes_))
		maxLog := math.Inf(-1)
		for ci := range nb.Classes_ {
			ll := math.Log(nb.ClassPrior_[ci])
			for j := 0; j < nFeatures; j++ {
				variance := nb.Var_[ci][j]
				d := X.At(i, j) - nb.Theta_[ci][j]
				ll -= 0.5 * (math.Log(2*math.Pi*variance) + d*d/variance)
			}
			logJoint[ci] = ll
			if ll > maxLog {
				maxLog = ll
			}
		}

		total := 0.0
		for ci := range logJoint {
			logJoint[ci] = math.Exp(logJoint[ci] - maxLog)
			total += logJoint[ci]
		}
		for ci := range logJoint {
			probas.Set(i, ci, logJoint[ci]/total)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (nb *GaussianNB) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := nb.Predict(X)
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
func (nb *GaussianNB) Classes() []int {
	return nb.Classes_
}

// GetParams returns the model hyperparameters.
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
	}
}

type gaussianGobPayload struct {
	VarSmoothing float64
	Theta        [][]float64
	Var          [][]float64
	ClassPrior   []float64
	Classes      []int
	NFeatures    int
}

// GobEncode serializes the fitted model.
func (nb *GaussianNB) GobEncode() ([]byte, error) {
	if !nb.state.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", "GobEncode")
	}
	payload := gaussianGobPayload{
		VarSmoothing: nb.varSmoothing,
		Theta:        nb.Theta_,
		Var:          nb.Var_,
		ClassPrior:   nb.ClassPrior_,
		Classes:      nb.Classes_,
		NFeatures:    nb.NFeatures_,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, errors.Wrap(err, "failed to encode GaussianNB")
	}
	return buf.Bytes(), nil
}

// GobDecode restores a model serialized by GobEncode.
func (nb *GaussianNB) GobDecode(data []byte) error {
	var payload gaussianGobPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return errors.Wrap(err, "failed to decode GaussianNB")
	}
	nb.varSmoothing = payload.VarSmoothing
	nb.Theta_ = payload.Theta
	nb.Var_ = payload.Var
	nb.ClassPrior_ = payload.ClassPrior
	nb.Classes_ = payload.Classes
	nb.NFeatures_ = payload.NFeatures
	nb.state = model.NewStateManager()
	nb.state.SetFitted()
	nb.state.SetDimensions(payload.NFeatures, 0)
	return nil
}
