// Package neighbors implements the k-nearest neighbors classifier.
package neighbors

import (
	"bytes"
	"encoding/gob"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/core/parallel"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// predictParallelThreshold is the sample count below which prediction
// stays sequential.
const predictParallelThreshold = 64

// KNeighborsClassifier predicts by majority vote among the k training
// samples closest in Euclidean distance.
type KNeighborsClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nNeighbors int
	weights    string // "uniform" or "distance"

	// Fitted data. KNN is a lazy learner: Fit stores the training set.
	XTrain_  *mat.Dense
	YTrain_  []int
	Classes_ []int

	nFeatures_ int
}

// KNeighborsOption is a functional option for KNeighborsClassifier.
type KNeighborsOption func(*KNeighborsClassifier)

// NewKNeighborsClassifier creates a KNeighborsClassifier.
func NewKNeighborsClassifier(opts ...KNeighborsOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		weights:    "uniform",
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// WithNNeighbors sets the number of neighbors.
func WithNNeighbors(k int) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.nNeighbors = k
	}
}

// WithWeights sets the vote weighting: "uniform" or "distance".
func WithWeights(weights string) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.weights = weights
	}
}

// Fit stores the training data.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 {
		return errors.NewValueError("KNeighborsClassifier.Fit", "empty data")
	}
	if yRows != nSamples {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", 1, yCols, 1)
	}
	if knn.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be at least 1", knn.nNeighbors)
	}
	if knn.nNeighbors > nSamples {
		return errors.NewValidationError("n_neighbors", "cannot exceed the number of samples", knn.nNeighbors)
	}
	if knn.weights != "uniform" && knn.weights != "distance" {
		return errors.NewValidationError("weights", "must be \"uniform\" or \"distance\"", knn.weights)
	}

	knn.XTrain_ = mat.DenseCopyOf(X)
	knn.YTrain_ = make([]int, nSamples)
	classMap := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		label := int(y.At(i, 0))
		knn.YTrain_[i] = label
		classMap[label] = true
	}

	knn.Classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		knn.Classes_ = append(knn.Classes_, class)
	}
	sort.Ints(knn.Classes_)

	knn.nFeatures_ = nFeatures
	knn.state.SetFitted()
	knn.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// Predict returns the majority-vote class for each sample.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := knn.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best, bestProba := 0, probas.At(i, 0)
		for c := 1; c < len(knn.Classes_); c++ {
			if probas.At(i, c) > bestProba {
				best, bestProba = c, probas.At(i, c)
			}
		}
		predictions.Set(i, 0, float64(knn.Classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns the neighbor vote shares for each class.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !knn.state.IsFitted() {
		return nil, errors.NewNotFittedError("KNeighborsClassifier", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != knn.nFeatures_ {
		return nil, errors.NewDimensionError("KNeighborsClassifier.PredictProba", knn.nFeatures_, nFeatures, 1)
	}

	// Rows of probas are independent, so samples are scored in parallel.
	probas := mat.NewDense(nSamples, len(knn.Classes_), nil)
	parallel.ParallelizeWithThreshold(nSamples, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			nearest := knn.nearestNeighbors(X, i)

			votes := make([]float64, len(knn.Classes_))
			total := 0.0
			for _, nb := range nearest {
				weight := 1.0
				if knn.weights == "distance" {
					// Exact matches dominate the vote.
					if nb.dist == 0 {
						weight = math.Inf(1)
					} else {
						weight = 1.0 / nb.dist
					}
				}
				classIdx := sort.SearchInts(knn.Classes_, knn.YTrain_[nb.index])
				votes[classIdx] += weight
				total += weight
			}

			if math.IsInf(total, 1) {
				// Restrict the vote to exact matches.
				for c := range votes {
					if math.IsInf(votes[c], 1) {
						votes[c] = 1
					} else {
						votes[c] = 0
					}
				}
				total = 0
				for _, v := range votes {
					total += v
				}
			}

			for c := range votes {
				probas.Set(i, c, votes[c]/total)
			}
		}
	})
	return probas, nil
}

type neighbor struct {
	index int
	dist  float64
}

// nearestNeighbors returns the k training samples closest to row i of X.
func (knn *KNeighborsClassifier) nearestNeighbors(X mat.Matrix, i int) []neighbor {
	nTrain, _ := knn.XTrain_.Dims()
	distances := make([]neighbor, nTrain)
	for t := 0; t < nTrain; t++ {
		sum := 0.0
		for j := 0; j < knn.nFeatures_; j++ {
			d := X.At(i, j) - knn.XTrain_.At(t, j)
			sum += d * d
		}
		distances[t] = neighbor{index: t, dist: math.Sqrt(sum)}
	}
	sort.Slice(distances, func(a, b int) bool {
		if distances[a].dist != distances[b].dist {
			return distances[a].dist < distances[b].dist
		}
		return distances[a].index < distances[b].index
	})
	return distances[:knn.nNeighbors]
}

// Score returns the mean accuracy on the given test data and labels.
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := knn.Predict(X)
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
func (knn *KNeighborsClassifier) Classes() []int {
	return knn.Classes_
}

// GetParams returns the model hyperparameters.
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.nNeighbors,
		"weights":     knn.weights,
	}
}

type knnGobPayload struct {
	NNeighbors int
	Weights    string
	Rows       int
	Cols       int
	XData      []float64
	YTrain     []int
	Classes    []int
}

// GobEncode serializes the fitted model.
func (knn *KNeighborsClassifier) GobEncode() ([]byte, error) {
	if !knn.state.IsFitted() {
		return nil, errors.NewNotFittedError("KNeighborsClassifier", "GobEncode")
	}
	rows, cols := knn.XTrain_.Dims()
	payload := knnGobPayload{
		NNeighbors: knn.nNeighbors,
		Weights:    knn.weights,
		Rows:       rows,
		Cols:       cols,
		XData:      append([]float64(nil), knn.XTrain_.RawMatrix().Data...),
		YTrain:     knn.YTrain_,
		Classes:    knn.Classes_,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, errors.Wrap(err, "failed to encode KNeighborsClassifier")
	}
	return buf.Bytes(), nil
}

// GobDecode restores a model serialized by GobEncode.
func (knn *KNeighborsClassifier) GobDecode(data []byte) error {
	var payload knnGobPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return errors.Wrap(err, "failed to decode KNeighborsClassifier")
	}
	knn.nNeighbors = payload.NNeighbors
	knn.weights = payload.Weights
	knn.XTrain_ = mat.NewDense(payload.Rows, payload.Cols, payload.XData)
	knn.YTrain_ = payload.YTrain
	knn.Classes_ = payload.Classes
	knn.nFeatures_ = payload.Cols
	knn.state = model.NewStateManager()
	knn.state.SetFitted()
	knn.state.SetDimensions(payload.Cols, payload.Rows)
	return nil
}
