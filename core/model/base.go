// Package model defines the shared estimator surface used by every
// pipeline stage: fitted-state tracking, the Fit/Predict/Transform
// interfaces and gob persistence.
package model

// EstimatorState represents whether an estimator has been fitted.
type EstimatorState int

const (
	// NotFitted is the state of an estimator before Fit.
	NotFitted EstimatorState = iota
	// Fitted is the state of an estimator after a successful Fit.
	Fitted
)

// BaseEstimator is embedded by simple transformers to track fitted state.
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted reports whether the estimator has been fitted.
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted marks the estimator as fitted.
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// Reset returns the estimator to its unfitted state.
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
}
