// Package chesspredict predicts the winner of chess games from lichess
// CSV exports.
//
// The module is a complete classification pipeline: it loads and
// validates a games CSV, engineers numeric features from the raw
// columns, splits the data into reproducible train and test sets,
// fits one of several classifiers and reports holdout metrics.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/ceschini/lichess-win-prediction/config"
//	    "github.com/ceschini/lichess-win-prediction/pipeline"
//	)
//
//	func main() {
//	    cfg := config.Default()
//	    cfg.Data.Source = "games.csv"
//	    cfg.Model.Name = "random_forest"
//
//	    result, err := pipeline.Train(context.Background(), cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Print(result.Evaluation.Report.String())
//	}
//
// # Packages
//
//   - dataset: CSV loading, schema validation and descriptive statistics
//   - preprocessing: encoders, scaling and feature construction
//   - modelselection: train/test splitting, k-fold CV and grid search
//   - neighbors, tree, naivebayes, linear, neural: the classifiers
//   - metrics: accuracy, precision, recall, AUC and confusion matrices
//   - pipeline: end to end training and evaluation
//   - visualize: PNG plots for exploration and evaluation
//   - config: YAML configuration
//   - core/model: shared estimator interfaces, state and persistence
//
// All classifiers follow the same contract: a New* constructor with
// functional options, Fit/Predict/PredictProba over gonum matrices and
// gob based persistence through core/model.SaveModel and LoadModel.
//
// The command line front end lives in cmd/chesspredict.
package chesspredict
