package tree

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// RandomForestClassifier averages predictions over an ensemble of
// decision trees fitted on bootstrap samples with random feature
// subsets. Trees are fitted concurrently.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int // <= 0 uses sqrt(n_features)
	randomState     int64

	// Fitted attributes
	Trees_     []*DecisionTreeClassifier
	Classes_   []int
	NFeatures_ int
}

// RandomForestOption is a functional option for RandomForestClassifier.
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a RandomForestClassifier.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithForestCriterion sets the split quality measure for every tree.
func WithForestCriterion(criterion string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithForestMaxDepth limits the depth of every tree.
func WithForestMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithForestMaxFeatures limits the features considered per split. Zero
// or negative uses the square root of the feature count.
func WithForestMaxFeatures(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = n
	}
}

// WithForestRandomState seeds bootstrap sampling and feature selection.
func WithForestRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// Fit trains the ensemble. Each tree sees a bootstrap sample of the
// rows and a random subset of features at every split.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()

	if nSamples == 0 {
		return errors.NewValueError("RandomForestClassifier.Fit", "empty data")
	}
	if yRows != nSamples {
		return errors.NewDimensionError("RandomForestClassifier.Fit", nSamples, yRows, 0)
	}
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}

	classMap := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		classMap[int(y.At(i, 0))] = true
	}
	rf.Classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		rf.Classes_ = append(rf.Classes_, class)
	}
	sort.Ints(rf.Classes_)
	rf.NFeatures_ = nFeatures

	maxFeatures := rf.maxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(nFeatures)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	seed := rf.randomState
	if seed < 0 {
		seed = rand.Int63()
	}

	// Per-tree seeds are drawn up front so tree fitting order cannot
	// change the result.
	seeds := make([]int64, rf.nEstimators)
	seedSource := rand.New(rand.NewSource(seed))
	for i := range seeds {
		seeds[i] = seedSource.Int63()
	}

	rf.Trees_ = make([]*DecisionTreeClassifier, rf.nEstimators)
	var g errgroup.Group
	for ti := 0; ti < rf.nEstimators; ti++ {
		g.Go(func() error {
			r := rand.New(rand.NewSource(seeds[ti]))

			// Bootstrap sample with replacement.
			rows := make([]int, nSamples)
			for i := range rows {
				rows[i] = r.Intn(nSamples)
			}

			XBoot := mat.NewDense(nSamples, nFeatures, nil)
			yBoot := mat.NewDense(nSamples, 1, nil)
			for i, row := range rows {
				for j := 0; j < nFeatures; j++ {
					XBoot.Set(i, j, X.At(row, j))
				}
				yBoot.Set(i, 0, y.At(row, 0))
			}

			dt := NewDecisionTreeClassifier(
				WithCriterion(rf.criterion),
				WithMaxDepth(rf.maxDepth),
				WithMinSamplesSplit(rf.minSamplesSplit),
				WithMaxFeatures(maxFeatures),
				WithRandomState(seeds[ti]),
			)
			if err := dt.Fit(XBoot, yBoot); err != nil {
				return errors.Wrapf(err, "failed to fit tree %d", ti)
			}
			rf.Trees_[ti] = dt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.state.SetFitted()
	rf.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// Predict returns the class with the highest averaged probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best, bestProba := 0, probas.At(i, 0)
		for c := 1; c < len(rf.Classes_); c++ {
			if probas.At(i, c) > bestProba {
				best, bestProba = c, probas.At(i, c)
			}
		}
		predictions.Set(i, 0, float64(rf.Classes_[best]))
	}
	return predictions, nil
}

// PredictProba averages the per-tree class distributions. Each tree
// may have seen only a subset of the classes in its bootstrap sample,
// so votes are mapped through the tree's own class list.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != rf.NFeatures_ {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.NFeatures_, nFeatures, 1)
	}

	classIdx := make(map[int]int, len(rf.Classes_))
	for i, class := range rf.Classes_ {
		classIdx[class] = i
	}

	probas := mat.NewDense(nSamples, len(rf.Classes_), nil)
	for _, dt := range rf.Trees_ {
		treeProbas, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < nSamples; i++ {
			for tc, class := range dt.Classes_ {
				c := classIdx[class]
				probas.Set(i, c, probas.At(i, c)+treeProbas.At(i, tc))
			}
		}
	}

	scale := 1.0 / float64(len(rf.Trees_))
	probas.Scale(scale, probas)
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := rf.Predict(X)
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
func (rf *RandomForestClassifier) Classes() []int {
	return rf.Classes_
}

// GetParams returns the model hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"max_features":      rf.maxFeatures,
	}
}

type forestGobPayload struct {
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
	Trees           [][]byte
	Classes         []int
	NFeatures       int
}

// GobEncode serializes the fitted ensemble.
func (rf *RandomForestClassifier) GobEncode() ([]byte, error) {
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "GobEncode")
	}
	payload := forestGobPayload{
		NEstimators:     rf.nEstimators,
		Criterion:       rf.criterion,
		MaxDepth:        rf.maxDepth,
		MinSamplesSplit: rf.minSamplesSplit,
		MaxFeatures:     rf.maxFeatures,
		Trees:           make([][]byte, len(rf.Trees_)),
		Classes:         rf.Classes_,
		NFeatures:       rf.NFeatures_,
	}
	for i, dt := range rf.Trees_ {
		encoded, err := dt.GobEncode()
		if err != nil {
			return nil, err
		}
		payload.Trees[i] = encoded
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, errors.Wrap(err, "failed to encode RandomForestClassifier")
	}
	return buf.Bytes(), nil
}

// GobDecode restores an ensemble serialized by GobEncode.
func (rf *RandomForestClassifier) GobDecode(data []byte) error {
	var payload forestGobPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return errors.Wrap(err, "failed to decode RandomForestClassifier")
	}
	rf.nEstimators = payload.NEstimators
	rf.criterion = payload.Criterion
	rf.maxDepth = payload.MaxDepth
	rf.minSamplesSplit = payload.MinSamplesSplit
	rf.maxFeatures = payload.MaxFeatures
	rf.Trees_ = make([]*DecisionTreeClassifier, len(payload.Trees))
	for i, encoded := range payload.Trees {
		dt := &DecisionTreeClassifier{}
		if err := dt.GobDecode(encoded); err != nil {
			return err
		}
		rf.Trees_[i] = dt
	}
	rf.Classes_ = payload.Classes
	rf.NFeatures_ = payload.NFeatures
	rf.state = model.NewStateManager()
	rf.state.SetFitted()
	rf.state.SetDimensions(payload.NFeatures, 0)
	return nil
}
