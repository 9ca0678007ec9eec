package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// Step is a named transformer in a Pipeline.
type Step struct {
	Name        string
	Transformer model.Transformer
}

// Pipeline chains matrix transformers, fitting and applying them in
// order. It implements model.Transformer itself, so pipelines nest.
type Pipeline struct {
	model.BaseEstimator

	Steps []Step
}

// NewPipeline creates a Pipeline from the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{Steps: steps}
}

// Fit fits each step on the output of the previous one.
func (p *Pipeline) Fit(X mat.Matrix) error {
	if len(p.Steps) == 0 {
		return errors.NewValueError("Pipeline.Fit", "no steps")
	}

	current := X
	for i, step := range p.Steps {
		// Every step but the last must also transform for the next fit.
		if i == len(p.Steps)-1 {
			if err := step.Transformer.Fit(current); err != nil {
				return errors.Wrapf(err, "pipeline step %q", step.Name)
			}
			break
		}
		out, err := step.Transformer.FitTransform(current)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %q", step.Name)
		}
		current = out
	}

	p.SetFitted()
	return nil
}

// Transform applies each fitted step in order.
func (p *Pipeline) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}

	current := X
	for _, step := range p.Steps {
		out, err := step.Transformer.Transform(current)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q", step.Name)
		}
		current = out
	}
	return current, nil
}

// FitTransform fits the pipeline and transforms the same data.
func (p *Pipeline) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}
