package modelselection

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
	"github.com/ceschini/lichess-win-prediction/pkg/log"
)

// EstimatorFactory builds a fresh estimator for a parameter candidate.
// Grid search never reuses an estimator across folds.
type EstimatorFactory func(params map[string]interface{}) (model.Classifier, error)

// CandidateResult is the cross-validated outcome of one parameter set.
type CandidateResult struct {
	Params    map[string]interface{}
	Scores    []float64
	MeanScore float64
}

// GridSearchCV exhaustively evaluates a hyperparameter grid with
// cross-validation and refits the best candidate on the full data.
type GridSearchCV struct {
	Factory   EstimatorFactory
	ParamGrid map[string][]interface{}
	CV        Splitter
	NJobs     int // max concurrent candidates; <= 0 uses GOMAXPROCS

	// Fitted attributes.
	BestScore_     float64
	BestParams_    map[string]interface{}
	BestEstimator_ model.Classifier
	Results_       []CandidateResult

	fitted bool
}

// NewGridSearchCV creates a grid search over the given factory and grid.
func NewGridSearchCV(factory EstimatorFactory, paramGrid map[string][]interface{}, cv Splitter) *GridSearchCV {
	if cv == nil {
		cv = NewKFold(5, true, 42)
	}
	return &GridSearchCV{
		Factory:   factory,
		ParamGrid: paramGrid,
		CV:        cv,
	}
}

// Fit evaluates every candidate and refits the best one.
func (gs *GridSearchCV) Fit(X, y mat.Matrix) error {
	candidates := enumerateGrid(gs.ParamGrid)
	if len(candidates) == 0 {
		return errors.NewValueError("GridSearchCV.Fit", "empty parameter grid")
	}

	folds := gs.CV.Split(X, y)
	if len(folds) == 0 {
		return errors.NewValueError("GridSearchCV.Fit", "splitter produced no folds")
	}

	nJobs := gs.NJobs
	if nJobs <= 0 {
		nJobs = runtime.GOMAXPROCS(0)
	}

	results := make([]CandidateResult, len(candidates))
	var g errgroup.Group
	g.SetLimit(nJobs)

	for ci, params := range candidates {
		g.Go(func() error {
			scores, err := gs.scoreCandidate(params, X, y, folds)
			if err != nil {
				return err
			}
			mean := 0.0
			for _, s := range scores {
				mean += s
			}
			mean /= float64(len(scores))
			results[ci] = CandidateResult{Params: params, Scores: scores, MeanScore: mean}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].MeanScore > results[best].MeanScore {
			best = i
		}
	}

	gs.Results_ = results
	gs.BestScore_ = results[best].MeanScore
	gs.BestParams_ = results[best].Params

	estimator, err := gs.Factory(gs.BestParams_)
	if err != nil {
		return err
	}
	if err := estimator.Fit(X, y); err != nil {
		return err
	}
	gs.BestEstimator_ = estimator
	gs.fitted = true

	slog.Info("grid search finished",
		log.OperationKey, log.OperationFit,
		"candidates", len(candidates),
		"folds", len(folds),
		"best_score", gs.BestScore_)
	return nil
}

// Predict delegates to the best estimator.
func (gs *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !gs.fitted {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return gs.BestEstimator_.Predict(X)
}

// Score delegates to the best estimator.
func (gs *GridSearchCV) Score(X, y mat.Matrix) (float64, error) {
	if !gs.fitted {
		return 0, errors.NewNotFittedError("GridSearchCV", "Score")
	}
	return gs.BestEstimator_.Score(X, y)
}

func (gs *GridSearchCV) scoreCandidate(params map[string]interface{}, X, y mat.Matrix, folds []Fold) ([]float64, error) {
	scores := make([]float64, len(folds))
	for fi, fold := range folds {
		estimator, err := gs.Factory(params)
		if err != nil {
			return nil, err
		}

		XTrain, yTrain := SubsetRows(X, fold.TrainIndices), SubsetRows(y, fold.TrainIndices)
		XTest, yTest := SubsetRows(X, fold.TestIndices), SubsetRows(y, fold.TestIndices)

		if err := estimator.Fit(XTrain, yTrain); err != nil {
			return nil, err
		}
		score, err := estimator.Score(XTest, yTest)
		if err != nil {
			return nil, err
		}
		scores[fi] = score
	}
	return scores, nil
}

// CrossValScore evaluates a fresh estimator per fold and returns the
// per-fold accuracies. Folds run concurrently.
func CrossValScore(newEstimator func() model.Classifier, X, y mat.Matrix, cv Splitter) ([]float64, error) {
	if cv == nil {
		cv = NewKFold(5, true, 42)
	}
	folds := cv.Split(X, y)
	scores := make([]float64, len(folds))

	var g errgroup.Group
	var mu sync.Mutex
	for fi, fold := range folds {
		g.Go(func() error {
			estimator := newEstimator()

			XTrain, yTrain := SubsetRows(X, fold.TrainIndices), SubsetRows(y, fold.TrainIndices)
			XTest, yTest := SubsetRows(X, fold.TestIndices), SubsetRows(y, fold.TestIndices)

			if err := estimator.Fit(XTrain, yTrain); err != nil {
				return err
			}
			score, err := estimator.Score(XTest, yTest)
			if err != nil {
				return err
			}
			mu.Lock()
			scores[fi] = score
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// SubsetRows copies the given rows of m into a new matrix.
func SubsetRows(m mat.Matrix, rows []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(row, j))
		}
	}
	return out
}

// enumerateGrid expands a parameter grid into candidate maps. Keys are
// iterated in sorted order so enumeration is deterministic.
func enumerateGrid(grid map[string][]interface{}) []map[string]interface{} {
	if len(grid) == 0 {
		return nil
	}

	keys := make([]string, 0, len(grid))
	for k := range grid {
		if len(grid[k]) == 0 {
			return nil
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	candidates := []map[string]interface{}{{}}
	for _, key := range keys {
		var next []map[string]interface{}
		for _, base := range candidates {
			for _, value := range grid[key] {
				candidate := make(map[string]interface{}, len(base)+1)
				for k, v := range base {
					candidate[k] = v
				}
				candidate[key] = value
				next = append(next, candidate)
			}
		}
		candidates = next
	}
	return candidates
}
