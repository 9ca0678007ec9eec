package pipeline

import (
	"context"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/config"
	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/dataset"
	"github.com/ceschini/lichess-win-prediction/metrics"
	"github.com/ceschini/lichess-win-prediction/modelselection"
	"github.com/ceschini/lichess-win-prediction/pkg/log"
	"github.com/ceschini/lichess-win-prediction/preprocessing"
)

// Evaluation bundles the metrics computed on a test set.
type Evaluation struct {
	Accuracy        float64
	Report          *metrics.Report
	Confusion       *mat.Dense
	ConfusionLabels []int
	AUC             float64
	HasAUC          bool
}

// TrainResult is the outcome of a training run.
type TrainResult struct {
	Model      model.Classifier
	Features   *preprocessing.FeatureBuilder
	Evaluation *Evaluation

	// Grid search outcome, nil when a fixed model was trained.
	BestParams map[string]interface{}
	CVScore    float64

	TrainSamples int
	TestSamples  int
	Duration     time.Duration
}

// Train runs the full pipeline: load, build features, split, fit and
// evaluate on the holdout set.
func Train(ctx context.Context, cfg *config.Config) (*TrainResult, error) {
	start := time.Now()

	records, err := dataset.Load(ctx, cfg.Data.Source, cfg.Schema())
	if err != nil {
		return nil, err
	}

	builder := preprocessing.NewFeatureBuilder(cfg.Schema(), cfg.Features)
	X, y, err := builder.FitTransform(records)
	if err != nil {
		return nil, err
	}

	XTrain, XTest, yTrain, yTest, err := modelselection.TrainTestSplit(X, y, cfg.Split.TestSize, cfg.Split.Seed)
	if err != nil {
		return nil, err
	}
	XTrain, XTest, err = scaleForModel(cfg.Model.Name, XTrain, XTest)
	if err != nil {
		return nil, err
	}

	result := &TrainResult{Features: builder}

	if len(cfg.Model.Grid) > 0 {
		factory := func(params map[string]interface{}) (model.Classifier, error) {
			return NewClassifier(cfg.Model.Name, merged(cfg.Model.Params, params), cfg.Split.Seed)
		}
		cv := modelselection.NewKFold(cfg.Model.CVFolds, true, int(cfg.Split.Seed))
		gs := modelselection.NewGridSearchCV(factory, cfg.Model.Grid, cv)
		if err := gs.Fit(XTrain, yTrain); err != nil {
			return nil, err
		}
		result.Model = gs.BestEstimator_
		result.BestParams = gs.BestParams_
		result.CVScore = gs.BestScore_
	} else {
		clf, err := NewClassifier(cfg.Model.Name, cfg.Model.Params, cfg.Split.Seed)
		if err != nil {
			return nil, err
		}
		if err := clf.Fit(XTrain, yTrain); err != nil {
			return nil, err
		}
		result.Model = clf
	}

	evaluation, err := Evaluate(result.Model, XTest, yTest)
	if err != nil {
		return nil, err
	}
	result.Evaluation = evaluation

	result.TrainSamples, _ = XTrain.Dims()
	result.TestSamples, _ = XTest.Dims()
	result.Duration = time.Since(start)

	slog.Info("training finished",
		log.StageKey, log.StageTrain,
		log.ModelNameKey, cfg.Model.Name,
		log.AccuracyKey, evaluation.Accuracy,
		log.DurationMsKey, result.Duration.Milliseconds())
	return result, nil
}

// scaleForModel standardizes the split for models whose solver is
// sensitive to feature scale. The scaler is fit on the training rows
// only so no test statistics leak into training.
func scaleForModel(name string, XTrain, XTest *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	if name != "mlp" {
		return XTrain, XTest, nil
	}
	scaler := preprocessing.NewStandardScalerDefault()
	scaledTrain, err := scaler.FitTransform(XTrain)
	if err != nil {
		return nil, nil, err
	}
	scaledTest, err := scaler.Transform(XTest)
	if err != nil {
		return nil, nil, err
	}
	return mat.DenseCopyOf(scaledTrain), mat.DenseCopyOf(scaledTest), nil
}

// merged overlays grid candidate params on the fixed params.
func merged(base, override map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Evaluate computes accuracy, the per-class report and the confusion
// matrix of a fitted classifier on a test set. Binary problems also
// get AUC from the positive-class probabilities.
func Evaluate(clf model.Classifier, XTest, yTest mat.Matrix) (*Evaluation, error) {
	predictions, err := clf.Predict(XTest)
	if err != nil {
		return nil, err
	}

	nSamples, _ := XTest.Dims()
	yTrueVec := mat.NewVecDense(nSamples, nil)
	yPredVec := mat.NewVecDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		yTrueVec.SetVec(i, yTest.At(i, 0))
		yPredVec.SetVec(i, predictions.At(i, 0))
	}

	accuracy, err := metrics.Accuracy(yTrueVec, yPredVec)
	if err != nil {
		return nil, err
	}
	report, err := metrics.ClassificationReport(yTrueVec, yPredVec)
	if err != nil {
		return nil, err
	}
	confusion, labels, err := metrics.ConfusionMatrix(yTrueVec, yPredVec)
	if err != nil {
		return nil, err
	}

	evaluation := &Evaluation{
		Accuracy:        accuracy,
		Report:          report,
		Confusion:       confusion,
		ConfusionLabels: labels,
	}

	if classes := clf.Classes(); len(classes) == 2 && classes[0] == 0 && classes[1] == 1 {
		probas, err := clf.PredictProba(XTest)
		if err != nil {
			return nil, err
		}
		scoreVec := mat.NewVecDense(nSamples, nil)
		for i := 0; i < nSamples; i++ {
			scoreVec.SetVec(i, probas.At(i, 1))
		}
		auc, err := metrics.AUC(yTrueVec, scoreVec)
		if err != nil {
			return nil, err
		}
		evaluation.AUC = auc
		evaluation.HasAUC = true
	}

	return evaluation, nil
}

// Prepare rebuilds the feature matrix and holdout split for a
// configuration. Loading, encoding and splitting are deterministic, so
// a saved model can be evaluated against the same test rows it was
// held out from.
func Prepare(ctx context.Context, cfg *config.Config) (XTest, yTest *mat.Dense, builder *preprocessing.FeatureBuilder, err error) {
	records, err := dataset.Load(ctx, cfg.Data.Source, cfg.Schema())
	if err != nil {
		return nil, nil, nil, err
	}

	builder = preprocessing.NewFeatureBuilder(cfg.Schema(), cfg.Features)
	X, y, err := builder.FitTransform(records)
	if err != nil {
		return nil, nil, nil, err
	}

	XTrain, XTest, _, yTest, err := modelselection.TrainTestSplit(X, y, cfg.Split.TestSize, cfg.Split.Seed)
	if err != nil {
		return nil, nil, nil, err
	}
	_, XTest, err = scaleForModel(cfg.Model.Name, XTrain, XTest)
	if err != nil {
		return nil, nil, nil, err
	}
	return XTest, yTest, builder, nil
}
