// Standard attribute keys for pipeline logging. Using these keys keeps
// log output consistent across the loader, preprocessing, training and
// evaluation stages.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the type of model.
	// Examples: "LogisticRegression", "DecisionTreeClassifier"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	// Examples: "dataset", "preprocessing", "metrics"
	ComponentKey = "ml.component"

	// StageKey names the pipeline stage.
	// Values: "load", "preprocess", "split", "train", "evaluate"
	StageKey = "pipeline.stage"
)

// Data shape.
const (
	// SamplesKey is the number of samples (rows) being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of features (columns) being processed.
	FeaturesKey = "data.features"

	// DroppedRowsKey is the number of rows dropped during cleaning.
	DroppedRowsKey = "data.dropped_rows"

	// SourceKey is the dataset source path or URL.
	SourceKey = "data.source"
)

// Performance and evaluation.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy, in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// LossKey records the training loss value.
	LossKey = "metrics.loss"

	// IterationKey records the current iteration of an iterative solver.
	IterationKey = "training.iteration"

	// SeedKey records the random seed, for reproducibility.
	SeedKey = "config.random_seed"
)

// Standard attribute value constants.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	StageLoad       = "load"
	StagePreprocess = "preprocess"
	StageSplit      = "split"
	StageTrain      = "train"
	StageEvaluate   = "evaluate"
)
