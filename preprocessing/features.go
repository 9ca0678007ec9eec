package preprocessing

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/dataset"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
	"github.com/ceschini/lichess-win-prediction/pkg/log"
)

// Options selects which engineered features the builder produces.
// The column set is configuration, not a fixed contract.
type Options struct {
	// DropDraws removes drawn games, turning the task into binary
	// white-wins / black-wins classification.
	DropDraws bool `yaml:"drop_draws"`

	// RatingDiff adds white rating minus black rating.
	RatingDiff bool `yaml:"rating_diff"`

	// Turns adds the min-max normalized turn count.
	Turns bool `yaml:"turns"`

	// Rated adds a 0/1 indicator for rated games.
	Rated bool `yaml:"rated"`

	// VictoryStatus adds the label-encoded victory status.
	VictoryStatus bool `yaml:"victory_status"`

	// OpeningEco adds the label-encoded ECO opening code.
	OpeningEco bool `yaml:"opening_eco"`

	// OpeningPly adds the min-max normalized opening ply count.
	OpeningPly bool `yaml:"opening_ply"`

	// Required overrides the schema's required columns when non-empty.
	Required []string `yaml:"required"`
}

// DefaultOptions enables binary classification over the rated flag,
// normalized turns, victory status and the rating difference.
func DefaultOptions() Options {
	return Options{
		DropDraws:     true,
		RatingDiff:    true,
		Turns:         true,
		Rated:         true,
		VictoryStatus: true,
	}
}

// FeatureBuilder converts game records into a numeric feature matrix
// and a label vector. Encoding is deterministic: categorical codes are
// assigned by sorted order, scalers are fitted on the cleaned records.
type FeatureBuilder struct {
	model.BaseEstimator

	Opts   Options
	Schema dataset.Schema

	// Fitted sub-transformers, nil when the feature is disabled.
	TurnScaler     *MinMaxScaler
	PlyScaler      *MinMaxScaler
	VictoryEncoder *LabelEncoder
	EcoEncoder     *LabelEncoder
	WinnerEncoder  *LabelEncoder

	// Names lists the produced feature columns in order.
	Names []string

	// Dropped is the number of records removed during cleaning.
	Dropped int
}

// NewFeatureBuilder creates a FeatureBuilder for the given schema and options.
func NewFeatureBuilder(schema dataset.Schema, opts Options) *FeatureBuilder {
	return &FeatureBuilder{Opts: opts, Schema: schema}
}

// required returns the required-column list in effect.
func (fb *FeatureBuilder) required() []string {
	if len(fb.Opts.Required) > 0 {
		return fb.Opts.Required
	}
	return fb.Schema.Required
}

// Clean drops records with missing required fields and, when
// configured, drawn games. The input slice is not modified.
func (fb *FeatureBuilder) Clean(records []dataset.GameRecord) []dataset.GameRecord {
	required := fb.required()
	kept := make([]dataset.GameRecord, 0, len(records))
	for i := range records {
		if records[i].HasMissing(required) {
			continue
		}
		if fb.Opts.DropDraws && records[i].Winner == dataset.WinnerDraw {
			continue
		}
		kept = append(kept, records[i])
	}
	fb.Dropped = len(records) - len(kept)
	return kept
}

// FitTransform cleans the records, fits the encoders and scalers on the
// surviving rows and returns the feature matrix with the label vector.
func (fb *FeatureBuilder) FitTransform(records []dataset.GameRecord) (*mat.Dense, *mat.VecDense, error) {
	if len(records) == 0 {
		return nil, nil, errors.NewValueError("FeatureBuilder.FitTransform", "empty data")
	}

	clean := fb.Clean(records)
	if len(clean) == 0 {
		return nil, nil, errors.NewValueError("FeatureBuilder.FitTransform", "all records dropped during cleaning")
	}

	if err := fb.fit(clean); err != nil {
		return nil, nil, err
	}
	fb.SetFitted()

	X, err := fb.transform(clean)
	if err != nil {
		return nil, nil, err
	}

	winners := make([]string, len(clean))
	for i := range clean {
		winners[i] = clean[i].Winner
	}
	y, err := fb.WinnerEncoder.Transform(winners)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("preprocessed dataset",
		log.StageKey, log.StagePreprocess,
		log.SamplesKey, len(clean),
		log.FeaturesKey, len(fb.Names),
		log.DroppedRowsKey, fb.Dropped)
	return X, y, nil
}

// Transform encodes already-cleaned records with the fitted state.
// Records with missing required fields are rejected.
func (fb *FeatureBuilder) Transform(records []dataset.GameRecord) (*mat.Dense, error) {
	if !fb.IsFitted() {
		return nil, errors.NewNotFittedError("FeatureBuilder", "Transform")
	}
	required := fb.required()
	for i := range records {
		if records[i].HasMissing(required) {
			return nil, errors.NewValueError("FeatureBuilder.Transform", "record has missing required fields")
		}
	}
	return fb.transform(records)
}

// FeatureNames returns the produced feature columns in order.
func (fb *FeatureBuilder) FeatureNames() []string {
	return fb.Names
}

// Labels returns the winner categories in code order.
func (fb *FeatureBuilder) Labels() []string {
	if fb.WinnerEncoder == nil {
		return nil
	}
	return fb.WinnerEncoder.Classes()
}

func (fb *FeatureBuilder) fit(clean []dataset.GameRecord) error {
	fb.Names = fb.Names[:0]

	if fb.Opts.RatingDiff {
		fb.Names = append(fb.Names, "rating_diff")
	}
	if fb.Opts.Turns {
		fb.TurnScaler = NewMinMaxScalerDefault()
		if err := fb.TurnScaler.Fit(columnMatrix(clean, func(g *dataset.GameRecord) float64 { return g.Turns })); err != nil {
			return err
		}
		fb.Names = append(fb.Names, "turns")
	}
	if fb.Opts.Rated {
		fb.Names = append(fb.Names, "rated")
	}
	if fb.Opts.VictoryStatus {
		fb.VictoryEncoder = NewLabelEncoder()
		if err := fb.VictoryEncoder.Fit(columnStrings(clean, func(g *dataset.GameRecord) string { return g.VictoryStatus })); err != nil {
			return err
		}
		fb.Names = append(fb.Names, "victory_status")
	}
	if fb.Opts.OpeningEco {
		fb.EcoEncoder = NewLabelEncoder()
		if err := fb.EcoEncoder.Fit(columnStrings(clean, func(g *dataset.GameRecord) string { return g.OpeningEco })); err != nil {
			return err
		}
		fb.Names = append(fb.Names, "opening_eco")
	}
	if fb.Opts.OpeningPly {
		fb.PlyScaler = NewMinMaxScalerDefault()
		if err := fb.PlyScaler.Fit(columnMatrix(clean, func(g *dataset.GameRecord) float64 { return g.OpeningPly })); err != nil {
			return err
		}
		fb.Names = append(fb.Names, "opening_ply")
	}

	if len(fb.Names) == 0 {
		return errors.NewValidationError("features", "no features enabled", fb.Opts)
	}

	fb.WinnerEncoder = NewLabelEncoder()
	return fb.WinnerEncoder.Fit(columnStrings(clean, func(g *dataset.GameRecord) string { return g.Winner }))
}

func (fb *FeatureBuilder) transform(records []dataset.GameRecord) (*mat.Dense, error) {
	n := len(records)
	X := mat.NewDense(n, len(fb.Names), nil)

	col := 0
	if fb.Opts.RatingDiff {
		for i := range records {
			X.Set(i, col, records[i].RatingDiff())
		}
		col++
	}
	if fb.Opts.Turns {
		scaled, err := fb.TurnScaler.Transform(columnMatrix(records, func(g *dataset.GameRecord) float64 { return g.Turns }))
		if err != nil {
			return nil, err
		}
		setColumn(X, col, scaled)
		col++
	}
	if fb.Opts.Rated {
		for i := range records {
			if records[i].Rated {
				X.Set(i, col, 1)
			}
		}
		col++
	}
	if fb.Opts.VictoryStatus {
		codes, err := fb.VictoryEncoder.Transform(columnStrings(records, func(g *dataset.GameRecord) string { return g.VictoryStatus }))
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			X.Set(i, col, codes.AtVec(i))
		}
		col++
	}
	if fb.Opts.OpeningEco {
		codes, err := fb.EcoEncoder.Transform(columnStrings(records, func(g *dataset.GameRecord) string { return g.OpeningEco }))
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			X.Set(i, col, codes.AtVec(i))
		}
		col++
	}
	if fb.Opts.OpeningPly {
		scaled, err := fb.PlyScaler.Transform(columnMatrix(records, func(g *dataset.GameRecord) float64 { return g.OpeningPly }))
		if err != nil {
			return nil, err
		}
		setColumn(X, col, scaled)
		col++
	}

	return X, nil
}

func columnMatrix(records []dataset.GameRecord, get func(*dataset.GameRecord) float64) *mat.Dense {
	out := mat.NewDense(len(records), 1, nil)
	for i := range records {
		v := get(&records[i])
		if math.IsNaN(v) {
			v = 0
		}
		out.Set(i, 0, v)
	}
	return out
}

func columnStrings(records []dataset.GameRecord, get func(*dataset.GameRecord) string) []string {
	out := make([]string, len(records))
	for i := range records {
		out[i] = get(&records[i])
	}
	return out
}

func setColumn(dst *mat.Dense, col int, src mat.Matrix) {
	r, _ := src.Dims()
	for i := 0; i < r; i++ {
		dst.Set(i, col, src.At(i, 0))
	}
}
