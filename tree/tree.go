// Package tree implements decision tree and random forest classifiers.
package tree

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

// Node is one node of a fitted decision tree. Leaf nodes carry the
// class distribution of the training samples that reached them.
type Node struct {
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node
	Counts    []float64
	IsLeaf    bool
}

// DecisionTreeClassifier is a CART classifier splitting on gini
// impurity or entropy.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	maxFeatures     int // <= 0 uses all features
	randomState     int64

	// Fitted attributes
	Root_      *Node
	Classes_   []int
	NFeatures_ int
	MaxDepth_  int

	rand *rand.Rand
}

// DecisionTreeOption is a functional option for DecisionTreeClassifier.
type DecisionTreeOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a DecisionTreeClassifier.
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        0,
		minSamplesSplit: 2,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	if dt.randomState >= 0 {
		dt.rand = rand.New(rand.NewSource(dt.randomState))
	} else {
		dt.rand = rand.New(rand.NewSource(rand.Int63()))
	}
	return dt
}

// WithCriterion sets the split quality measure ("gini" or "entropy").
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth limits the tree depth. Zero or negative means unlimited.
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to
// split an internal node.
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMaxFeatures limits how many features are considered per split.
// Zero or negative considers all of them.
func WithMaxFeatures(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = n
	}
}

// WithRandomState seeds the feature subsampling.
func WithRandomState(seed int64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
		if seed >= 0 {
			dt.rand = rand.New(rand.NewSource(seed))
		}
	}
}

// Fit grows the tree on the given samples and labels.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "empty data")
	}
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be \"gini\" or \"entropy\"", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}

	labels := make([]int, nSamples)
	classMap := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		labels[i] = int(y.At(i, 0))
		classMap[labels[i]] = true
	}
	dt.Classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		dt.Classes_ = append(dt.Classes_, class)
	}
	sort.Ints(dt.Classes_)
	dt.NFeatures_ = nFeatures

	classIdx := make(map[int]int, len(dt.Classes_))
	for i, class := range dt.Classes_ {
		classIdx[class] = i
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}

	dt.MaxDepth_ = 0
	dt.Root_ = dt.grow(X, labels, classIdx, indices, 0)
	dt.state.SetFitted()
	dt.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// grow recursively builds the tree over the given sample indices.
func (dt *DecisionTreeClassifier) grow(X mat.Matrix, labels []int, classIdx map[int]int, indices []int, depth int) *Node {
	if depth > dt.MaxDepth_ {
		dt.MaxDepth_ = depth
	}

	counts := make([]float64, len(dt.Classes_))
	for _, idx := range indices {
		counts[classIdx[labels[idx]]]++
	}

	node := &Node{Counts: counts}
	if dt.isPure(counts) ||
		len(indices) < dt.minSamplesSplit ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) {
		node.IsLeaf = true
		return node
	}

	feature, threshold, gain := dt.bestSplit(X, labels, classIdx, indices, counts)
	if gain <= 0 {
		node.IsLeaf = true
		return node
	}

	var left, right []int
	for _, idx := range indices {
		if X.At(idx, feature) <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		node.IsLeaf = true
		return node
	}

	node.Feature = feature
	node.Threshold = threshold
	node.Left = dt.grow(X, labels, classIdx, left, depth+1)
	node.Right = dt.grow(X, labels, classIdx, right, depth+1)
	return node
}

func (dt *DecisionTreeClassifier) isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// bestSplit scans candidate thresholds over the selected features and
// returns the split with the highest impurity gain.
func (dt *DecisionTreeClassifier) bestSplit(X mat.Matrix, labels []int, classIdx map[int]int, indices []int, parentCounts []float64) (int, float64, float64) {
	n := float64(len(indices))
	parentImpurity := dt.impurity(parentCounts, n)

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0

	for _, feature := range dt.splitFeatures() {
		// Sort sample indices by this feature's value.
		sorted := make([]int, len(indices))
		copy(sorted, indices)
		sort.Slice(sorted, func(a, b int) bool {
			return X.At(sorted[a], feature) < X.At(sorted[b], feature)
		})

		leftCounts := make([]float64, len(dt.Classes_))
		rightCounts := make([]float64, len(dt.Classes_))
		copy(rightCounts, parentCounts)

		for i := 0; i < len(sorted)-1; i++ {
			idx := sorted[i]
			leftCounts[classIdx[labels[idx]]]++
			rightCounts[classIdx[labels[idx]]]--

			current := X.At(idx, feature)
			next := X.At(sorted[i+1], feature)
			if current == next {
				continue
			}

			nLeft := float64(i + 1)
			nRight := n - nLeft
			childImpurity := (nLeft*dt.impurity(leftCounts, nLeft) +
				nRight*dt.impurity(rightCounts, nRight)) / n

			gain := parentImpurity - childImpurity
			if gain > bestGain {
				bestFeature = feature
				bestThreshold = (current + next) / 2
				bestGain = gain
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

// splitFeatures returns the feature indices considered for one split.
func (dt *DecisionTreeClassifier) splitFeatures() []int {
	features := make([]int, dt.NFeatures_)
	for i := range features {
		features[i] = i
	}
	if dt.maxFeatures <= 0 || dt.maxFeatures >= dt.NFeatures_ {
		return features
	}
	dt.rand.Shuffle(len(features), func(i, j int) {
		features[i], features[j] = features[j], features[i]
	})
	return features[:dt.maxFeatures]
}

func (dt *DecisionTreeClassifier) impurity(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	if dt.criterion == "entropy" {
		entropy := 0.0
		for _, c := range counts {
			if c == 0 {
				continue
			}
			p := c / total
			entropy -= p * math.Log2(p)
		}
		return entropy
	}
	gini := 1.0
	for _, c := range counts {
		p := c / total
		gini -= p * p
	}
	return gini
}

// Predict returns the majority class of the leaf each sample reaches.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best, bestProba := 0, probas.At(i, 0)
		for c := 1; c < len(dt.Classes_); c++ {
			if probas.At(i, c) > bestProba {
				best, bestProba = c, probas.At(i, c)
			}
		}
		predictions.Set(i, 0, float64(dt.Classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns the leaf class distribution for each sample.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != dt.NFeatures_ {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.PredictProba", dt.NFeatures_, nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, len(dt.Classes_), nil)
	for i := 0; i < nSamples; i++ {
		node := dt.Root_
		for !node.IsLeaf {
			if X.At(i, node.Feature) <= node.Threshold {
				node = node.Left
			} else {
				node = node.Right
			}
		}

		total := 0.0
		for _, c := range node.Counts {
			total += c
		}
		for c := range node.Counts {
			probas.Set(i, c, node.Counts[c]/total)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := dt.Predict(X)
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
func (dt *DecisionTreeClassifier) Classes() []int {
	return dt.Classes_
}

// GetParams returns the model hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"max_features":      dt.maxFeatures,
	}
}

type treeGobPayload struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
	Root            *Node
	Classes         []int
	NFeatures       int
	GrownDepth      int
}

// GobEncode serializes the fitted tree.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "GobEncode")
	}
	payload := treeGobPayload{
		Criterion:       dt.criterion,
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MaxFeatures:     dt.maxFeatures,
		Root:            dt.Root_,
		Classes:         dt.Classes_,
		NFeatures:       dt.NFeatures_,
		GrownDepth:      dt.MaxDepth_,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, errors.Wrap(err, "failed to encode DecisionTreeClassifier")
	}
	return buf.Bytes(), nil
}

// GobDecode restores a tree serialized by GobEncode.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var payload treeGobPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return errors.Wrap(err, "failed to decode DecisionTreeClassifier")
	}
	dt.criterion = payload.Criterion
	dt.maxDepth = payload.MaxDepth
	dt.minSamplesSplit = payload.MinSamplesSplit
	dt.maxFeatures = payload.MaxFeatures
	dt.Root_ = payload.Root
	dt.Classes_ = payload.Classes
	dt.NFeatures_ = payload.NFeatures
	dt.MaxDepth_ = payload.GrownDepth
	dt.rand = rand.New(rand.NewSource(rand.Int63()))
	dt.state = model.NewStateManager()
	dt.state.SetFitted()
	dt.state.SetDimensions(payload.NFeatures, 0)
	return nil
}
