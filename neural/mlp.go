// Package neural implements a multilayer perceptron classifier.
package neural

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

// activationFn bundles an activation with its derivative. The
// derivative takes the activated output, not the pre-activation.
type activationFn struct {
	Sigma      func(x float64) float64
	SigmaPrime func(y float64) float64
}

var activations = map[string]activationFn{
	"relu": {
		Sigma: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		},
		SigmaPrime: func(y float64) float64 {
			if y > 0 {
				return 1
			}
			return 0
		},
	},
	"tanh": {
		Sigma:      math.Tanh,
		SigmaPrime: func(y float64) float64 { return 1 - y*y },
	},
	"logistic": {
		Sigma:      func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
		SigmaPrime: func(y float64) float64 { return y * (1 - y) },
	},
}

// MLPClassifier is a feedforward neural network with softmax output
// trained by minibatch stochastic gradient descent on cross-entropy
// loss.
type MLPClassifier struct {
	state *model.StateManager

	// Hyperparameters
	hiddenLayerSizes []int
	activation       string
	learningRate     float64
	batchSize        int
	maxIter          int
	tol              float64
	randomState      int64

	// Fitted attributes
	Weights_   [][][]float64 // per layer: (fan_in x fan_out)
	Biases_    [][]float64
	Classes_   []int
	NFeatures_ int
	NIter_     int
	Loss_      float64
	LossCurve_ []float64

	rand *rand.Rand
}

// MLPOption is a functional option for MLPClassifier.
type MLPOption func(*MLPClassifier)

// NewMLPClassifier creates an MLPClassifier.
func NewMLPClassifier(opts ...MLPOption) *MLPClassifier {
	mlp := &MLPClassifier{
		state:            model.NewStateManager(),
		hiddenLayerSizes: []int{100},
		activation:       "relu",
		learningRate:     0.001,
		batchSize:        32,
		maxIter:          200,
		tol:              1e-4,
		randomState:      -1,
	}
	for _, opt := range opts {
		opt(mlp)
	}
	if mlp.randomState >= 0 {
		mlp.rand = rand.New(rand.NewSource(mlp.randomState))
	} else {
		mlp.rand = rand.New(rand.NewSource(rand.Int63()))
	}
	return mlp
}

// WithHiddenLayerSizes sets the hidden layer widths.
func WithHiddenLayerSizes(sizes ...int) MLPOption {
	return func(mlp *MLPClassifier) {
		mlp.hiddenLayerSizes = sizes
	}
}

// WithActivation sets the hidden layer activation ("relu", "tanh" or
// "logistic").
func WithActivation(activation string) MLPOption {
	return func(mlp *MLPClassifier) {
		mlp.activation = activation
	}
}

// WithLearningRate sets the SGD step size.
func WithLearningRate(lr float64) MLPOption {
	return func(mlp *MLPClassifier) {
		mlp.learningRate = lr
	}
}

// WithBatchSize sets the minibatch size.
func WithBatchSize(size int) MLPOption {
	return func(mlp *MLPClassifier) {
		mlp.batchSize = size
	}
}

// WithMaxIter sets the maximum number of epochs.
func WithMaxIter(maxIter int) MLPOption {
	return func(mlp *MLPClassifier) {
		mlp.maxIter = maxIter
	}
}

// WithTol sets the minimum loss improvement between epochs.
func WithTol(tol float64) MLPOption {
	return func(mlp *MLPClassifier) {
		mlp.tol = tol
	}
}

// WithRandomState seeds weight initialization and batch shuffling.
func WithRandomState(seed int64) MLPOption {
	return func(mlp *MLPClassifier) {
		mlp.randomState = seed
		if seed >= 0 {
			mlp.rand = rand.New(rand.NewSource(seed))
		}
	}
}

// Fit trains the network. Running out of epochs before the loss
// improvement drops below tol raises a ConvergenceWarning; it does not
// fail the fit.
func (mlp *MLPClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MLPClassifier.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 {
		return errors.NewValueError("MLPClassifier.Fit", "empty data")
	}
	if yRows != nSamples {
		return errors.NewDimensionError("MLPClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("MLPClassifier.Fit", 1, yCols, 1)
	}
	act, ok := activations[mlp.activation]
	if !ok {
		return errors.NewValidationError("activation", "must be \"relu\", \"tanh\" or \"logistic\"", mlp.activation)
	}
	for _, size := range mlp.hiddenLayerSizes {
		if size < 1 {
			return errors.NewValidationError("hidden_layer_sizes", "layer widths must be positive", size)
		}
	}
	if mlp.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", mlp.learningRate)
	}

	labels := make([]int, nSamples)
	classMap := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		labels[i] = int(y.At(i, 0))
		classMap[labels[i]] = true
	}
	mlp.Classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		mlp.Classes_ = append(mlp.Classes_, class)
	}
	sort.Ints(mlp.Classes_)
	if len(mlp.Classes_) < 2 {
		return errors.NewValueError("MLPClassifier.Fit", "need at least 2 classes")
	}
	mlp.NFeatures_ = nFeatures

	classIdx := make(map[int]int, len(mlp.Classes_))
	for i, class := range mlp.Classes_ {
		classIdx[class] = i
	}

	mlp.initializeLayers(nFeatures, len(mlp.Classes_))

	batchSize := mlp.batchSize
	if batchSize <= 0 || batchSize > nSamples {
		batchSize = nSamples
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}

	mlp.LossCurve_ = nil
	prevLoss := math.Inf(1)
	converged := false

	for epoch := 0; epoch < mlp.maxIter; epoch++ {
		mlp.rand.Shuffle(nSamples, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		epochLoss := 0.0
		for start := 0; start < nSamples; start += batchSize {
			end := start + batchSize
			if end > nSamples {
				end = nSamples
			}
			batch := indices[start:end]
			epochLoss += mlp.trainBatch(X, labels, classIdx, batch, act)
		}
		epochLoss /= float64(nSamples)

		if err := errors.CheckScalar("epoch_loss", epochLoss, epoch); err != nil {
			return err
		}

		mlp.Loss_ = epochLoss
		mlp.LossCurve_ = append(mlp.LossCurve_, epochLoss)
		mlp.NIter_ = epoch + 1

		if math.Abs(prevLoss-epochLoss) < mlp.tol {
			converged = true
			break
		}
		prevLoss = epochLoss
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("MLPClassifier", mlp.maxIter, ""))
	}

	mlp.state.SetFitted()
	mlp.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// initializeLayers allocates weights with scaled uniform init.
func (mlp *MLPClassifier) initializeLayers(nFeatures, nClasses int) {
	sizes := append([]int{nFeatures}, mlp.hiddenLayerSizes...)
	sizes = append(sizes, nClasses)

	mlp.Weights_ = make([][][]float64, len(sizes)-1)
	mlp.Biases_ = make([][]float64, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

		mlp.Weights_[l] = make([][]float64, fanIn)
		for i := range mlp.Weights_[l] {
			mlp.Weights_[l][i] = make([]float64, fanOut)
			for j := range mlp.Weights_[l][i] {
				mlp.Weights_[l][i][j] = (mlp.rand.Float64()*2 - 1) * bound
			}
		}
		mlp.Biases_[l] = make([]float64, fanOut)
	}
}

// trainBatch runs forward and backward passes over one minibatch and
// returns the summed cross-entropy loss.
func (mlp *MLPClassifier) trainBatch(X mat.Matrix, labels []int, classIdx map[int]int, batch []int, act activationFn) float64 {
	nLayers := len(mlp.Weights_)
	loss := 0.0

	// Accumulated gradients over the batch.
	gradW := make([][][]float64, nLayers)
	gradB := make([][]float64, nLayers)
	for l := range mlp.Weights_ {
		gradW[l] = make([][]float64, len(mlp.Weights_[l]))
		for i := range gradW[l] {
			gradW[l][i] = make([]float64, len(mlp.Weights_[l][i]))
		}
		gradB[l] = make([]float64, len(mlp.Biases_[l]))
	}

	for _, sample := range batch {
		// Forward pass keeping every layer's output.
		outputs := make([][]float64, nLayers+1)
		outputs[0] = make([]float64, mlp.NFeatures_)
		for j := range outputs[0] {
			outputs[0][j] = X.At(sample, j)
		}
		for l := 0; l < nLayers; l++ {
			outputs[l+1] = mlp.forwardLayer(outputs[l], l, act, l == nLayers-1)
		}

		probs := outputs[nLayers]
		target := classIdx[labels[sample]]
		loss -= math.Log(math.Max(probs[target], 1e-15))

		// Backward pass. Softmax with cross-entropy gives
		// probs - onehot at the output.
		delta := make([]float64, len(probs))
		copy(delta, probs)
		delta[target]--

		for l := nLayers - 1; l >= 0; l-- {
			input := outputs[l]
			for i := range gradW[l] {
				for j := range gradW[l][i] {
					gradW[l][i][j] += input[i] * delta[j]
				}
			}
			for j := range gradB[l] {
				gradB[l][j] += delta[j]
			}

			if l == 0 {
				break
			}
			next := make([]float64, len(input))
			for i := range next {
				sum := 0.0
				for j := range delta {
					sum += mlp.Weights_[l][i][j] * delta[j]
				}
				next[i] = sum * act.SigmaPrime(input[i])
			}
			delta = next
		}
	}

	step := mlp.learningRate / float64(len(batch))
	for l := range mlp.Weights_ {
		for i := range mlp.Weights_[l] {
			for j := range mlp.Weights_[l][i] {
				mlp.Weights_[l][i][j] -= step * gradW[l][i][j]
			}
		}
		for j := range mlp.Biases_[l] {
			mlp.Biases_[l][j] -= step * gradB[l][j]
		}
	}

	return loss
}

// forwardLayer applies one layer. The final layer uses softmax instead
// of the hidden activation.
func (mlp *MLPClassifier) forwardLayer(input []float64, layer int, act activationFn, isOutput bool) []float64 {
	weights := mlp.Weights_[layer]
	biases := mlp.Biases_[layer]

	out := make([]float64, len(biases))
	for j := range out {
		z := biases[j]
		for i := range input {
			z += input[i] * weights[i][j]
		}
		out[j] = z
	}

	if isOutput {
		return softmax(out)
	}
	for j := range out {
		out[j] = act.Sigma(out[j])
	}
	return out
}

func softmax(z []float64) []float64 {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	out := make([]float64, len(z))
	total := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// Predict returns the class with the highest output for each sample.
func (mlp *MLPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := mlp.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best, bestProba := 0, probas.At(i, 0)
		for c := 1; c < len(mlp.Classes_); c++ {
			if probas.At(i, c) > bestProba {
				best, bestProba = c, probas.At(i, c)
			}
		}
		predictions.Set(i, 0, float64(mlp.Classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns the softmax outputs for each sample.
func (mlp *MLPClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !mlp.state.IsFitted() {
		return nil, errors.NewNotFittedError("MLPClassifier", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != mlp.NFeatures_ {
		return nil, errors.NewDimensionError("MLPClassifier.PredictProba", mlp.NFeatures_, nFeatures, 1)
	}

	act := activations[mlp.activation]
	nLayers := len(mlp.Weights_)

	probas := mat.NewDense(nSamples, len(mlp.Classes_), nil)
	for i := 0; i < nSamples; i++ {
		current := make([]float64, nFeatures)
		for j := range current {
			current[j] = X.At(i, j)
		}
		for l := 0; l < nLayers; l++ {
			current = mlp.forwardLayer(current, l, act, l == nLayers-1)
		}
		for c, p := range current {
			probas.Set(i, c, p)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (mlp *MLPClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := mlp.Predict(X)
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
func (mlp *MLPClassifier) Classes() []int {
	return mlp.Classes_
}

// GetParams returns the model hyperparameters.
func (mlp *MLPClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_layer_sizes": mlp.hiddenLayerSizes,
		"activation":         mlp.activation,
		"learning_rate":      mlp.learningRate,
		"batch_size":         mlp.batchSize,
		"max_iter":           mlp.maxIter,
		"tol":                mlp.tol,
	}
}

type mlpGobPayload struct {
	HiddenLayerSizes []int
	Activation       string
	LearningRate     float64
	BatchSize        int
	MaxIter          int
	Tol              float64
	Weights          [][][]float64
	Biases           [][]float64
	Classes          []int
	NFeatures        int
	NIter            int
	Loss             float64
}

// GobEncode serializes the fitted network.
func (mlp *MLPClassifier) GobEncode() ([]byte, error) {
	if !mlp.state.IsFitted() {
		return nil, errors.NewNotFittedError("MLPClassifier", "GobEncode")
	}
	payload := mlpGobPayload{
		HiddenLayerSizes: mlp.hiddenLayerSizes,
		Activation:       mlp.activation,
		LearningRate:     mlp.learningRate,
		BatchSize:        mlp.batchSize,
		MaxIter:          mlp.maxIter,
		Tol:              mlp.tol,
		Weights:          mlp.Weights_,
		Biases:           mlp.Biases_,
		Classes:          mlp.Classes_,
		NFeatures:        mlp.NFeatures_,
		NIter:            mlp.NIter_,
		Loss:             mlp.Loss_,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, errors.Wrap(err, "failed to encode MLPClassifier")
	}
	return buf.Bytes(), nil
}

// GobDecode restores a network serialized by GobEncode.
func (mlp *MLPClassifier) GobDecode(data []byte) error {
	var payload mlpGobPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return errors.Wrap(err, "failed to decode MLPClassifier")
	}
	mlp.hiddenLayerSizes = payload.HiddenLayerSizes
	mlp.activation = payload.Activation
	mlp.learningRate = payload.LearningRate
	mlp.batchSize = payload.BatchSize
	mlp.maxIter = payload.MaxIter
	mlp.tol = payload.Tol
	mlp.Weights_ = payload.Weights
	mlp.Biases_ = payload.Biases
	mlp.Classes_ = payload.Classes
	mlp.NFeatures_ = payload.NFeatures
	mlp.NIter_ = payload.NIter
	mlp.Loss_ = payload.Loss
	mlp.rand = rand.New(rand.NewSource(rand.Int63()))
	mlp.state = model.NewStateManager()
	mlp.state.SetFitted()
	mlp.state.SetDimensions(payload.NFeatures, 0)
	return nil
}
