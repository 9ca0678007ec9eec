package neighbors

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

func TestKNeighborsClassifier_Fit(t *testing.T) {
	tests := []struct {
		name    string
		X       *mat.Dense
		y       *mat.Dense
		opts    []KNeighborsOption
		wantErr bool
	}{
		{
			name: "valid binary data",
			X: mat.NewDense(4, 2, []float64{
				0, 0,
				1, 0,
				5, 5,
				6, 5,
			}),
			y:       mat.NewDense(4, 1, []float64{0, 0, 1, 1}),
			opts:    []KNeighborsOption{WithNNeighbors(3)},
			wantErr: false,
		},
		{
			name:    "mismatched dimensions",
			X:       mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}),
			y:       mat.NewDense(2, 1, []float64{0, 1}),
			wantErr: true,
		},
		{
			name:    "k larger than sample count",
			X:       mat.NewDense(2, 1, []float64{1, 2}),
			y:       mat.NewDense(2, 1, []float64{0, 1}),
			opts:    []KNeighborsOption{WithNNeighbors(5)},
			wantErr: true,
		},
		{
			name:    "invalid weights",
			X:       mat.NewDense(2, 1, []float64{1, 2}),
			y:       mat.NewDense(2, 1, []float64{0, 1}),
			opts:    []KNeighborsOption{WithNNeighbors(1), WithWeights("gaussian")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			knn := NewKNeighborsClassifier(tt.opts...)
			err := knn.Fit(tt.X, tt.y)
			if (err != nil) != tt.wantErr {
				t.Errorf("Fit() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKNeighborsClassifier_Predict(t *testing.T) {
	// Two well separated clusters.
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		10, 10,
		11, 10,
		10, 11,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	XTest := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		10.5, 10.5,
	})
	predictions, err := knn.Predict(XTest)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	want := []float64{0, 1}
	for i, w := range want {
		if got := predictions.At(i, 0); got != w {
			t.Errorf("Predict()[%d] = %v, want %v", i, got, w)
		}
	}
}

func TestKNeighborsClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 10, 11})
	y := mat.NewDense(5, 1, []float64{0, 0, 0, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(5))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	probas, err := knn.PredictProba(mat.NewDense(1, 1, []float64{1}))
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}

	// All five neighbors vote: three for class 0, two for class 1.
	if got := probas.At(0, 0); math.Abs(got-0.6) > 1e-12 {
		t.Errorf("P(class=0) = %v, want 0.6", got)
	}
	if got := probas.At(0, 1); math.Abs(got-0.4) > 1e-12 {
		t.Errorf("P(class=1) = %v, want 0.4", got)
	}

	sum := probas.At(0, 0) + probas.At(0, 1)
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("probabilities sum to %v, want 1.0", sum)
	}
}

func TestKNeighborsClassifier_DistanceWeights(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 9, 10})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(4), WithWeights("distance"))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	// An exact match outweighs everything else.
	probas, err := knn.PredictProba(mat.NewDense(1, 1, []float64{9}))
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}
	if got := probas.At(0, 1); got != 1.0 {
		t.Errorf("P(class=1) = %v, want 1.0 for exact match", got)
	}
}

func TestKNeighborsClassifier_NotFitted(t *testing.T) {
	knn := NewKNeighborsClassifier()
	_, err := knn.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	if err == nil {
		t.Fatal("Predict() on unfitted model should return error")
	}

	var notFitted *errors.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Errorf("Predict() error = %T, want *errors.NotFittedError", err)
	}
}

func TestKNeighborsClassifier_Score(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 10, 11})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(1))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	score, err := knn.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 1.0 {
		t.Errorf("Score() = %v, want 1.0 on training data with k=1", score)
	}
}

func TestKNeighborsClassifier_SaveLoad(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 1, 1, 10, 10, 11, 11})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(1))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "knn.gob")
	if err := model.SaveModel(knn, path); err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("model file not written: %v", err)
	}

	var loaded KNeighborsClassifier
	if err := model.LoadModel(&loaded, path); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}

	original, err := knn.Predict(X)
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
