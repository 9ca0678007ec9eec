package modelselection

import (
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestKFold_Split(t *testing.T) {
	tests := []struct {
		name     string
		nSamples int
		nSplits  int
		shuffle  bool
	}{
		{name: "even folds", nSamples: 10, nSplits: 5, shuffle: false},
		{name: "uneven folds", nSamples: 11, nSplits: 3, shuffle: false},
		{name: "shuffled", nSamples: 20, nSplits: 4, shuffle: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X := mat.NewDense(tt.nSamples, 1, nil)
			kf := NewKFold(tt.nSplits, tt.shuffle, 42)

			folds := kf.Split(X, nil)
			if len(folds) != tt.nSplits {
				t.Fatalf("Split() returned %d folds, want %d", len(folds), tt.nSplits)
			}

			testSeen := make(map[int]int)
			for f, fold := range folds {
				if len(fold.TrainIndices)+len(fold.TestIndices) != tt.nSamples {
					t.Errorf("fold %d covers %d samples, want %d",
						f, len(fold.TrainIndices)+len(fold.TestIndices), tt.nSamples)
				}
				inTrain := make(map[int]bool)
				for _, idx := range fold.TrainIndices {
					inTrain[idx] = true
				}
				for _, idx := range fold.TestIndices {
					if inTrain[idx] {
						t.Errorf("fold %d: index %d in both train and test", f, idx)
					}
					testSeen[idx]++
				}
			}

			// Every sample lands in a test fold exactly once.
			if len(testSeen) != tt.nSamples {
				t.Errorf("test folds cover %d samples, want %d", len(testSeen), tt.nSamples)
			}
			for idx, count := range testSeen {
				if count != 1 {
					t.Errorf("sample %d appears in %d test folds, want 1", idx, count)
				}
			}
		})
	}
}

func TestKFold_Deterministic(t *testing.T) {
	X := mat.NewDense(20, 1, nil)

	folds1 := NewKFold(4, true, 42).Split(X, nil)
	folds2 := NewKFold(4, true, 42).Split(X, nil)
	if !reflect.DeepEqual(folds1, folds2) {
		t.Error("same seed produced different folds")
	}

	folds3 := NewKFold(4, true, 7).Split(X, nil)
	if reflect.DeepEqual(folds1, folds3) {
		t.Error("different seeds produced identical folds")
	}
}

func TestNewKFold_DefaultSplits(t *testing.T) {
	if got := NewKFold(1, false, 0).GetNSplits(); got != 5 {
		t.Errorf("GetNSplits() = %d, want fallback 5", got)
	}
	if got := NewKFold(0, false, 0).GetNSplits(); got != 5 {
		t.Errorf("GetNSplits() = %d, want fallback 5", got)
	}
}

func TestStratifiedKFold_PreservesClassRatio(t *testing.T) {
	// 12 samples of class 0 and 6 of class 1.
	nSamples := 18
	X := mat.NewDense(nSamples, 1, nil)
	y := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		if i%3 == 0 {
			y.Set(i, 0, 1)
		}
	}

	skf := NewStratifiedKFold(3, true, 42)
	folds := skf.Split(X, y)
	if len(folds) != 3 {
		t.Fatalf("Split() returned %d folds, want 3", len(folds))
	}

	for f, fold := range folds {
		counts := map[int]int{}
		for _, idx := range fold.TestIndices {
			counts[int(y.At(idx, 0))]++
		}
		if counts[0] != 4 || counts[1] != 2 {
			t.Errorf("fold %d test class counts = %v, want map[0:4 1:2]", f, counts)
		}
	}
}

func TestStratifiedKFold_DisjointAndCovering(t *testing.T) {
	nSamples := 17
	X := mat.NewDense(nSamples, 1, nil)
	y := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		y.Set(i, 0, float64(i%2))
	}

	folds := NewStratifiedKFold(4, false, 0).Split(X, y)

	testSeen := make(map[int]int)
	for f, fold := range folds {
		inTest := make(map[int]bool)
		for _, idx := range fold.TestIndices {
			inTest[idx] = true
			testSeen[idx]++
		}
		for _, idx := range fold.TrainIndices {
			if inTest[idx] {
				t.Errorf("fold %d: index %d in both train and test", f, idx)
			}
		}
	}

	if len(testSeen) != nSamples {
		t.Errorf("test folds cover %d samples, want %d", len(testSeen), nSamples)
	}
}
