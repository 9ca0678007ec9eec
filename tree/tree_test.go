package tree

import (
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{
		0, 0, 0, 0,
		1, 1, 1, 1,
	})

	dt := NewDecisionTreeClassifier(
		WithCriterion("gini"),
		WithMaxDepth(5),
	)
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	predictions, err := dt.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < 8; i++ {
		if predictions.At(i, 0) != y.At(i, 0) {
			t.Errorf("sample %d: Predict() = %v, want %v", i, predictions.At(i, 0), y.At(i, 0))
		}
	}

	XTest := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		3.5, 3.5,
	})
	testPreds, err := dt.Predict(XTest)
	if err != nil {
		t.Fatalf("Predict() on test data error = %v", err)
	}
	if testPreds.At(0, 0) != 0 {
		t.Errorf("point (0.5, 0.5) predicted %v, want class 0", testPreds.At(0, 0))
	}
	if testPreds.At(1, 0) != 1 {
		t.Errorf("point (3.5, 3.5) predicted %v, want class 1", testPreds.At(1, 0))
	}
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	probas, err := dt.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}

	rows, cols := probas.Dims()
	if rows != 6 || cols != 2 {
		t.Errorf("PredictProba() shape = (%d, %d), want (6, 2)", rows, cols)
	}
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			p := probas.At(i, j)
			if p < 0 || p > 1 {
				t.Errorf("proba[%d][%d] = %v, want value in [0, 1]", i, j, p)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-6 {
			t.Errorf("probas for sample %d sum to %v, want 1.0", i, sum)
		}
	}
}

func TestDecisionTreeClassifier_Criteria(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	for _, criterion := range []string{"gini", "entropy"} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion))
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			score, err := dt.Score(X, y)
			if err != nil {
				t.Fatalf("Score() error = %v", err)
			}
			if score != 1.0 {
				t.Errorf("Score() = %v, want 1.0 on separable data", score)
			}
		})
	}

	dt := NewDecisionTreeClassifier(WithCriterion("chi2"))
	if err := dt.Fit(X, y); err == nil {
		t.Error("Fit() with unknown criterion should return error")
	}
}

func TestDecisionTreeClassifier_MaxDepth(t *testing.T) {
	// An alternating pattern needs several levels to separate.
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	y := mat.NewDense(8, 1, []float64{0, 1, 0, 1, 0, 1, 0, 1})

	dt := NewDecisionTreeClassifier(WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if dt.MaxDepth_ > 1 {
		t.Errorf("tree grew to depth %d, want at most 1", dt.MaxDepth_)
	}

	deep := NewDecisionTreeClassifier()
	if err := deep.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	score, err := deep.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 1.0 {
		t.Errorf("unlimited depth Score() = %v, want 1.0", score)
	}
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	_, err := dt.Predict(mat.NewDense(1, 1, []float64{0}))
	if err == nil {
		t.Fatal("Predict() on unfitted model should return error")
	}

	var notFitted *errors.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Errorf("Predict() error = %T, want *errors.NotFittedError", err)
	}
}

func TestDecisionTreeClassifier_SaveLoad(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier(WithMaxDepth(4))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "tree.gob")
	if err := model.SaveModel(dt, path); err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}

	var loaded DecisionTreeClassifier
	if err := model.LoadModel(&loaded, path); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}

	original, err := dt.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	restored, err := loaded.Predict(X)
	if err != nil {
		t.Fatalf("Predict() after load error = %v", err)
	}
	if !mat.Equal(original, restored) {
		t.Error("loaded model predictions differ from original")
	}
}
