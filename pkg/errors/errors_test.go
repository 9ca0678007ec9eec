package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewDataUnavailableError(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		reason  string
		err     error
		wantMsg string
	}{
		{
			name:    "with underlying error",
			source:  "games.csv",
			reason:  "open failed",
			err:     fmt.Errorf("no such file"),
			wantMsg: `chesspredict: dataset unavailable at "games.csv": open failed: no such file`,
		},
		{
			name:    "without underlying error",
			source:  "games.csv",
			reason:  "empty file",
			err:     nil,
			wantMsg: `chesspredict: dataset unavailable at "games.csv": empty file`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDataUnavailableError(tt.source, tt.reason, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var dataErr *DataUnavailableError
			if !As(err, &dataErr) {
				t.Error("Error should be castable to *DataUnavailableError")
			}
			if tt.err != nil && dataErr.Unwrap() == nil {
				t.Error("Unwrap() should return the underlying error")
			}
		})
	}
}

func TestNewSchemaError(t *testing.T) {
	err := NewSchemaError("games.csv", "white_rating", 42, "not an integer")

	want := `chesspredict: schema mismatch in "games.csv" line 42, column "white_rating": not an integer`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var schemaErr *SchemaError
	if !As(err, &schemaErr) {
		t.Error("Error should be castable to *SchemaError")
	}
	if schemaErr.Line != 42 {
		t.Errorf("Line = %d, want 42", schemaErr.Line)
	}
}

func TestNewSchemaError_NoLine(t *testing.T) {
	err := NewSchemaError("games.csv", "winner", 0, "missing column")

	want := `chesspredict: schema mismatch in "games.csv", column "winner": missing column`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LogisticRegression", "Predict")

	want := "chesspredict: LogisticRegression: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFitted *NotFittedError
	if !As(err, &notFitted) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 7, 1)

	want := "chesspredict: Predict: dimension mismatch on axis 1 (features). Expected 10, got 7"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestConvergenceWarningMessage(t *testing.T) {
	w := NewConvergenceWarning("MLPClassifier", 300, "")
	if !strings.Contains(w.Error(), "failed to converge after 300 iterations") {
		t.Errorf("unexpected warning message: %s", w.Error())
	}

	w = NewConvergenceWarning("MLPClassifier", 300, "loss still decreasing")
	if !strings.Contains(w.Error(), "loss still decreasing") {
		t.Errorf("unexpected warning message: %s", w.Error())
	}
}

func TestWarnHandler(t *testing.T) {
	var captured error
	SetWarningHandler(func(w error) {
		captured = w
	})
	defer SetWarningHandler(nil)

	warning := NewConvergenceWarning("LogisticRegression", 100, "")
	Warn(warning)

	if captured == nil {
		t.Fatal("warning handler was not invoked")
	}
	var convWarn *ConvergenceWarning
	if !As(captured, &convWarn) {
		t.Errorf("captured warning has wrong type: %T", captured)
	}
	if convWarn.Iterations != 100 {
		t.Errorf("Iterations = %d, want 100", convWarn.Iterations)
	}
}
