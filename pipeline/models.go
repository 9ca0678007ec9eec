// Package pipeline wires the loading, preprocessing, splitting,
// training and evaluation stages into runnable workflows.
package pipeline

import (
	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/linear"
	"github.com/ceschini/lichess-win-prediction/naivebayes"
	"github.com/ceschini/lichess-win-prediction/neighbors"
	"github.com/ceschini/lichess-win-prediction/neural"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
	"github.com/ceschini/lichess-win-prediction/tree"
)

// paramInt reads an integer parameter. YAML decodes numbers as int or
// float64 depending on their spelling.
func paramInt(params map[string]interface{}, key string, fallback int) (int, error) {
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, errors.NewValidationError(key, "must be an integer", raw)
	}
}

func paramFloat(params map[string]interface{}, key string, fallback float64) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, errors.NewValidationError(key, "must be a number", raw)
	}
}

func paramString(params map[string]interface{}, key, fallback string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", errors.NewValidationError(key, "must be a string", raw)
	}
	return s, nil
}

func paramIntSlice(params map[string]interface{}, key string, fallback []int) ([]int, error) {
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.NewValidationError(key, "must be a list of integers", raw)
	}
	out := make([]int, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case int:
			out[i] = v
		case int64:
			out[i] = int(v)
		case float64:
			out[i] = int(v)
		default:
			return nil, errors.NewValidationError(key, "must be a list of integers", raw)
		}
	}
	return out, nil
}

// NewClassifier builds a classifier by name with the given
// hyperparameters. The seed feeds every stochastic model so runs are
// reproducible.
func NewClassifier(name string, params map[string]interface{}, seed int64) (model.Classifier, error) {
	switch name {
	case "knn":
		k, err := paramInt(params, "n_neighbors", 5)
		if err != nil {
			return nil, err
		}
		weights, err := paramString(params, "weights", "uniform")
		if err != nil {
			return nil, err
		}
		return neighbors.NewKNeighborsClassifier(
			neighbors.WithNNeighbors(k),
			neighbors.WithWeights(weights),
		), nil

	case "decision_tree":
		criterion, err := paramString(params, "criterion", "gini")
		if err != nil {
			return nil, err
		}
		maxDepth, err := paramInt(params, "max_depth", 0)
		if err != nil {
			return nil, err
		}
		minSplit, err := paramInt(params, "min_samples_split", 2)
		if err != nil {
			return nil, err
		}
		return tree.NewDecisionTreeClassifier(
			tree.WithCriterion(criterion),
			tree.WithMaxDepth(maxDepth),
			tree.WithMinSamplesSplit(minSplit),
			tree.WithRandomState(seed),
		), nil

	case "random_forest":
		nEstimators, err := paramInt(params, "n_estimators", 100)
		if err != nil {
			return nil, err
		}
		criterion, err := paramString(params, "criterion", "gini")
		if err != nil {
			return nil, err
		}
		maxDepth, err := paramInt(params, "max_depth", 0)
		if err != nil {
			return nil, err
		}
		maxFeatures, err := paramInt(params, "max_features", 0)
		if err != nil {
			return nil, err
		}
		return tree.NewRandomForestClassifier(
			tree.WithNEstimators(nEstimators),
			tree.WithForestCriterion(criterion),
			tree.WithForestMaxDepth(maxDepth),
			tree.WithForestMaxFeatures(maxFeatures),
			tree.WithForestRandomState(seed),
		), nil

	case "gaussian_nb":
		smoothing, err := paramFloat(params, "var_smoothing", 1e-9)
		if err != nil {
			return nil, err
		}
		return naivebayes.NewGaussianNB(
			naivebayes.WithVarSmoothing(smoothing),
		), nil

	case "logistic":
		c, err := paramFloat(params, "c", 1.0)
		if err != nil {
			return nil, err
		}
		penalty, err := paramString(params, "penalty", "l2")
		if err != nil {
			return nil, err
		}
		maxIter, err := paramInt(params, "max_iter", 100)
		if err != nil {
			return nil, err
		}
		return linear.NewLogisticRegression(
			linear.WithC(c),
			linear.WithPenalty(penalty),
			linear.WithMaxIter(maxIter),
			linear.WithRandomState(seed),
		), nil

	case "mlp":
		hidden, err := paramIntSlice(params, "hidden_layer_sizes", []int{100})
		if err != nil {
			return nil, err
		}
		activation, err := paramString(params, "activation", "relu")
		if err != nil {
			return nil, err
		}
		learningRate, err := paramFloat(params, "learning_rate", 0.001)
		if err != nil {
			return nil, err
		}
		maxIter, err := paramInt(params, "max_iter", 200)
		if err != nil {
			return nil, err
		}
		return neural.NewMLPClassifier(
			neural.WithHiddenLayerSizes(hidden...),
			neural.WithActivation(activation),
			neural.WithLearningRate(learningRate),
			neural.WithMaxIter(maxIter),
			neural.WithRandomState(seed),
		), nil

	default:
		return nil, errors.NewValidationError("model.name", "unknown model", name)
	}
}

// EmptyModel returns an unfitted instance of the named model for
// loading saved weights into.
func EmptyModel(name string) (model.Classifier, error) {
	switch name {
	case "knn":
		return &neighbors.KNeighborsClassifier{}, nil
	case "decision_tree":
		return &tree.DecisionTreeClassifier{}, nil
	case "random_forest":
		return &tree.RandomForestClassifier{}, nil
	case "gaussian_nb":
		return &naivebayes.GaussianNB{}, nil
	case "logistic":
		return &linear.LogisticRegression{}, nil
	case "mlp":
		return &neural.MLPClassifier{}, nil
	default:
		return nil, errors.NewValidationError("model.name", "unknown model", name)
	}
}
