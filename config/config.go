// Package config loads and validates pipeline configuration from YAML.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ceschini/lichess-win-prediction/dataset"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
	"github.com/ceschini/lichess-win-prediction/preprocessing"
)

// DataConfig locates the games file and optionally remaps its columns.
type DataConfig struct {
	// Source is a CSV file path or an http(s) URL.
	Source string `yaml:"source"`
	// Columns overrides header names per logical column.
	Columns map[string]string `yaml:"columns,omitempty"`
}

// SplitConfig controls the holdout split.
type SplitConfig struct {
	TestSize float64 `yaml:"test_size"`
	Seed     int64   `yaml:"seed"`
}

// ModelConfig selects a classifier and its hyperparameters. A non-empty
// Grid switches training to cross-validated grid search.
type ModelConfig struct {
	Name    string                   `yaml:"name"`
	Params  map[string]interface{}   `yaml:"params,omitempty"`
	Grid    map[string][]interface{} `yaml:"grid,omitempty"`
	CVFolds int                      `yaml:"cv_folds"`
}

// OutputConfig names the artifacts the pipeline writes.
type OutputConfig struct {
	ModelPath string `yaml:"model_path"`
	PlotsDir  string `yaml:"plots_dir,omitempty"`
}

// Config is the full pipeline configuration.
type Config struct {
	Data     DataConfig            `yaml:"data"`
	Features preprocessing.Options `yaml:"features"`
	Split    SplitConfig           `yaml:"split"`
	Model    ModelConfig           `yaml:"model"`
	Output   OutputConfig          `yaml:"output"`
	LogLevel string                `yaml:"log_level"`
}

// ModelNames lists the supported classifier names.
var ModelNames = []string{
	"knn",
	"decision_tree",
	"random_forest",
	"gaussian_nb",
	"logistic",
	"mlp",
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Features: preprocessing.DefaultOptions(),
		Split: SplitConfig{
			TestSize: 0.3,
			Seed:     42,
		},
		Model: ModelConfig{
			Name:    "knn",
			CVFolds: 5,
		},
		Output: OutputConfig{
			ModelPath: "model.gob",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run
// with.
func (c *Config) Validate() error {
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	}
	if c.Model.Name != "" && !validModelName(c.Model.Name) {
		return errors.NewValidationError("model.name", "unknown model", c.Model.Name)
	}
	if c.Model.CVFolds < 0 {
		return errors.NewValidationError("model.cv_folds", "must be non-negative", c.Model.CVFolds)
	}
	if !c.Features.RatingDiff && !c.Features.Turns && !c.Features.Rated &&
		!c.Features.VictoryStatus && !c.Features.OpeningEco && !c.Features.OpeningPly {
		return errors.NewValidationError("features", "at least one feature must be enabled", nil)
	}
	return nil
}

func validModelName(name string) bool {
	for _, known := range ModelNames {
		if name == known {
			return true
		}
	}
	return false
}

// Schema builds the dataset schema with any configured column
// overrides applied.
func (c *Config) Schema() dataset.Schema {
	schema := dataset.DefaultSchema()
	for column, header := range c.Data.Columns {
		schema.Columns[column] = header
	}
	if len(c.Features.Required) > 0 {
		schema.Required = c.Features.Required
	}
	return schema
}
