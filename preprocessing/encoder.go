package preprocessing

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// LabelEncoder maps categorical string values to integer codes.
// Codes are assigned by sorted order of the unique values, so the same
// category always maps to the same code for a given fitted vocabulary.
type LabelEncoder struct {
	model.BaseEstimator

	// ClassList holds the known categories, sorted. The code of a
	// category is its index in this slice.
	ClassList []string

	codes map[string]int
}

// NewLabelEncoder creates a LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit learns the vocabulary of the given values.
func (le *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewValueError("LabelEncoder.Fit", "empty data")
	}

	seen := make(map[string]bool)
	for _, v := range values {
		seen[v] = true
	}

	le.ClassList = make([]string, 0, len(seen))
	for v := range seen {
		le.ClassList = append(le.ClassList, v)
	}
	sort.Strings(le.ClassList)

	le.codes = make(map[string]int, len(le.ClassList))
	for i, v := range le.ClassList {
		le.codes[v] = i
	}

	le.SetFitted()
	return nil
}

// Transform encodes values into their integer codes as a column vector.
// Unknown categories are an error.
func (le *LabelEncoder) Transform(values []string) (*mat.VecDense, error) {
	if !le.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}

	out := mat.NewVecDense(len(values), nil)
	for i, v := range values {
		code, ok := le.codes[v]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", "unknown category: "+v)
		}
		out.SetVec(i, float64(code))
	}
	return out, nil
}

// FitTransform fits the encoder and encodes the same values.
func (le *LabelEncoder) FitTransform(values []string) (*mat.VecDense, error) {
	if err := le.Fit(values); err != nil {
		return nil, err
	}
	return le.Transform(values)
}

// InverseTransform maps codes back to their categories.
func (le *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if !le.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}

	out := make([]string, len(codes))
	for i, c := range codes {
		idx := int(c)
		if idx < 0 || idx >= len(le.ClassList) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", "code out of range")
		}
		out[i] = le.ClassList[idx]
	}
	return out, nil
}

// Classes returns the fitted vocabulary in code order.
func (le *LabelEncoder) Classes() []string {
	return le.ClassList
}

// OneHotEncoder expands a categorical column into indicator columns,
// one per category, in sorted category order.
type OneHotEncoder struct {
	model.BaseEstimator

	// Categories holds the known categories, sorted. Column j of the
	// output corresponds to Categories[j].
	Categories []string

	index map[string]int

	// HandleUnknown controls behavior on unseen categories:
	// "error" (default) or "ignore" (all-zeros row).
	HandleUnknown string
}

// NewOneHotEncoder creates a OneHotEncoder.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{HandleUnknown: "error"}
}

// Fit learns the categories of the given values.
func (oh *OneHotEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewValueError("OneHotEncoder.Fit", "empty data")
	}

	seen := make(map[string]bool)
	for _, v := range values {
		seen[v] = true
	}

	oh.Categories = make([]string, 0, len(seen))
	for v := range seen {
		oh.Categories = append(oh.Categories, v)
	}
	sort.Strings(oh.Categories)

	oh.index = make(map[string]int, len(oh.Categories))
	for i, v := range oh.Categories {
		oh.index[v] = i
	}

	oh.SetFitted()
	return nil
}

// Transform encodes values into an indicator matrix of shape
// (len(values), len(Categories)).
func (oh *OneHotEncoder) Transform(values []string) (*mat.Dense, error) {
	if !oh.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}

	out := mat.NewDense(len(values), len(oh.Categories), nil)
	for i, v := range values {
		j, ok := oh.index[v]
		if !ok {
			if oh.HandleUnknown == "ignore" {
				continue
			}
			return nil, errors.NewValueError("OneHotEncoder.Transform", "unknown category: "+v)
		}
		out.Set(i, j, 1)
	}
	return out, nil
}

// FitTransform fits the encoder and encodes the same values.
func (oh *OneHotEncoder) FitTransform(values []string) (*mat.Dense, error) {
	if err := oh.Fit(values); err != nil {
		return nil, err
	}
	return oh.Transform(values)
}
