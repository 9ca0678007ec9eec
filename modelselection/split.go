// Package modelselection provides the holdout splitter, k-fold cross
// validation and grid search used to train and tune the classifiers.
package modelselection

import (
	"log/slog"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/pkg/errors"
	"github.com/ceschini/lichess-win-prediction/pkg/log"
)

// TrainTestSplit partitions samples into disjoint train and test sets.
// testSize is the fraction of rows assigned to the test set. The
// shuffle is deterministic for a given seed, and the two subsets cover
// the input exactly.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int64) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 {
		return nil, nil, nil, nil, errors.NewValueError("TrainTestSplit", "empty data")
	}
	if yRows != nSamples {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", nSamples, yRows, 0)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nTest := int(float64(nSamples) * testSize)
	if nTest == 0 {
		nTest = 1
	}
	nTrain := nSamples - nTest
	if nTrain == 0 {
		return nil, nil, nil, nil, errors.NewValueError("TrainTestSplit", "train set would be empty")
	}

	indices := shuffledIndices(nSamples, seed)

	XTrain = takeRows(X, indices[:nTrain], nFeatures)
	XTest = takeRows(X, indices[nTrain:], nFeatures)
	yTrain = takeRows(y, indices[:nTrain], yCols)
	yTest = takeRows(y, indices[nTrain:], yCols)

	slog.Info("split dataset",
		log.StageKey, log.StageSplit,
		log.SamplesKey, nSamples,
		log.SeedKey, seed,
		"train_samples", nTrain,
		"test_samples", nTest)
	return XTrain, XTest, yTrain, yTest, nil
}

func shuffledIndices(n int, seed int64) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	r.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	return indices
}

func takeRows(m mat.Matrix, rows []int, cols int) *mat.Dense {
	out := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(row, j))
		}
	}
	return out
}
