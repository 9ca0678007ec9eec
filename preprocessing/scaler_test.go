package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	scaler := NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := out.Dims()
	for j := 0; j < c; j++ {
		var sum, sumSq float64
		for i := 0; i < r; i++ {
			sum += out.At(i, j)
			sumSq += out.At(i, j) * out.At(i, j)
		}
		mean := sum / float64(r)
		std := math.Sqrt(sumSq/float64(r) - mean*mean)
		if math.Abs(mean) > 1e-9 {
			t.Errorf("column %d mean = %v, want 0", j, mean)
		}
		if math.Abs(std-1) > 1e-9 {
			t.Errorf("column %d std = %v, want 1", j, std)
		}
	}
}

func TestStandardScaler_InverseTransform(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1400, 1500, 1900})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	back, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if math.Abs(back.At(i, 0)-X.At(i, 0)) > 1e-9 {
			t.Errorf("inverse transform mismatch at %d: %v != %v", i, back.At(i, 0), X.At(i, 0))
		}
	}
}

func TestStandardScaler_ConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{5, 5, 5})
	scaler := NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if out.At(i, 0) != 0 {
			t.Errorf("constant column should map to 0, got %v", out.At(i, 0))
		}
	}
}

func TestMinMaxScaler_UnitRange(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{13, 16, 61, 95})

	scaler := NewMinMaxScalerDefault()
	out, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if out.At(0, 0) != 0 {
		t.Errorf("min should map to 0, got %v", out.At(0, 0))
	}
	if out.At(3, 0) != 1 {
		t.Errorf("max should map to 1, got %v", out.At(3, 0))
	}
	for i := 0; i < 4; i++ {
		v := out.At(i, 0)
		if v < 0 || v > 1 {
			t.Errorf("value %v out of [0, 1]", v)
		}
	}
}

func TestMinMaxScaler_DimensionMismatch(t *testing.T) {
	scaler := NewMinMaxScalerDefault()
	if err := scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatal(err)
	}
	if _, err := scaler.Transform(mat.NewDense(2, 3, nil)); err == nil {
		t.Error("expected DimensionError for mismatched feature count")
	}
}

func TestPipeline_ChainsTransformers(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		10, 1,
		20, 2,
		30, 3,
		40, 4,
	})

	p := NewPipeline(
		Step{Name: "minmax", Transformer: NewMinMaxScalerDefault()},
		Step{Name: "standard", Transformer: NewStandardScalerDefault()},
	)

	out, err := p.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := out.Dims()
	if r != 4 || c != 2 {
		t.Fatalf("shape = (%d, %d), want (4, 2)", r, c)
	}

	// Final step standardizes, so each column has zero mean.
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += out.At(i, j)
		}
		if math.Abs(sum) > 1e-9 {
			t.Errorf("column %d not centered: sum = %v", j, sum)
		}
	}
}

func TestPipeline_NotFitted(t *testing.T) {
	p := NewPipeline(Step{Name: "minmax", Transformer: NewMinMaxScalerDefault()})
	if _, err := p.Transform(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected NotFittedError")
	}
}
