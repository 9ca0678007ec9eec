package naivebayes

import (
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

func gaussianData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		-3, -3,
		-3, -2,
		-2, -3,
		-2.5, -2.5,
		3, 3,
		3, 2,
		2, 3,
		2.5, 2.5,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestGaussianNB_FitPredict(t *testing.T) {
	X, y := gaussianData()

	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if got := nb.Classes(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Classes() = %v, want [0 1]", got)
	}

	predictions, err := nb.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	rows, _ := y.Dims()
	for i := 0; i < rows; i++ {
		if predictions.At(i, 0) != y.At(i, 0) {
			t.Errorf("sample %d: Predict() = %v, want %v", i, predictions.At(i, 0), y.At(i, 0))
		}
	}
}

func TestGaussianNB_FitValidation(t *testing.T) {
	tests := []struct {
		name string
		X    *mat.Dense
		y    *mat.Dense
		opts []GaussianNBOption
	}{
		{
			name: "mismatched rows",
			X:    mat.NewDense(3, 1, []float64{1, 2, 3}),
			y:    mat.NewDense(2, 1, []float64{0, 1}),
		},
		{
			name: "multi column labels",
			X:    mat.NewDense(2, 1, []float64{1, 2}),
			y:    mat.NewDense(2, 2, []float64{0, 1, 1, 0}),
		},
		{
			name: "negative smoothing",
			X:    mat.NewDense(2, 1, []float64{1, 2}),
			y:    mat.NewDense(2, 1, []float64{0, 1}),
			opts: []GaussianNBOption{WithVarSmoothing(-1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nb := NewGaussianNB(tt.opts...)
			if err := nb.Fit(tt.X, tt.y); err == nil {
				t.Error("Fit() should return error")
			}
		})
	}
}

func TestGaussianNB_FittedParameters(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 2, 10, 12})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if got := nb.Theta_[0][0]; got != 1.0 {
		t.Errorf("Theta_[0][0] = %v, want 1.0", got)
	}
	if got := nb.Theta_[1][0]; got != 11.0 {
		t.Errorf("Theta_[1][0] = %v, want 11.0", got)
	}
	for ci, prior := range nb.ClassPrior_ {
		if prior != 0.5 {
			t.Errorf("ClassPrior_[%d] = %v, want 0.5", ci, prior)
		}
	}
	// Population variance of {0, 2} is 1, plus smoothing.
	if got := nb.Var_[0][0]; math.Abs(got-1.0) > 1e-6 {
		t.Errorf("Var_[0][0] = %v, want ~1.0", got)
	}
}

func TestGaussianNB_PredictProba(t *testing.T) {
	X, y := gaussianData()

	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	probas, err := nb.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}

	rows, cols := probas.Dims()
	if cols != 2 {
		t.Fatalf("PredictProba() returned %d columns, want 2", cols)
	}
	for i := 0; i < rows; i++ {
		sum := 0.0
		for c := 0; c < cols; c++ {
			p := probas.At(i, c)
			if p < 0 || p > 1 {
				t.Errorf("proba[%d][%d] = %v, want value in [0, 1]", i, c, p)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("probas for sample %d sum to %v, want 1.0", i, sum)
		}
	}

	// A point far inside one cluster gets a near-certain posterior.
	far, err := nb.PredictProba(mat.NewDense(1, 2, []float64{-2.5, -2.5}))
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}
	if got := far.At(0, 0); got < 0.99 {
		t.Errorf("P(class=0) = %v, want > 0.99 deep in the class 0 cluster", got)
	}
}

func TestGaussianNB_ConstantFeature(t *testing.T) {
	// Smoothing keeps a zero-variance feature from producing NaN.
	X := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 1,
		1, 10,
		1, 11,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	probas, err := nb.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}
	rows, cols := probas.Dims()
	for i := 0; i < rows; i++ {
		for c := 0; c < cols; c++ {
			if math.IsNaN(probas.At(i, c)) {
				t.Fatalf("proba[%d][%d] is NaN", i, c)
			}
		}
	}
}

func TestGaussianNB_NotFitted(t *testing.T) {
	nb := NewGaussianNB()
	_, err := nb.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	if err == nil {
		t.Fatal("Predict() on unfitted model should return error")
	}

	var notFitted *errors.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Errorf("Predict() error = %T, want *errors.NotFittedError", err)
	}
}

func TestGaussianNB_SaveLoad(t *testing.T) {
	X, y := gaussianData()

	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "gaussian.gob")
	if err := model.SaveModel(nb, path); err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}

	var loaded GaussianNB
	if err := model.LoadModel(&loaded, path); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}

	original, err := nb.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}
	restored, err := loaded.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() after load error = %v", err)
	}
	if !mat.Equal(original, restored) {
		t.Error("loaded model predictions differ from original")
	}
}
