package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/pipeline"
)

func evaluateCmd(flags *rootFlags) *cobra.Command {
	var modelPath string

	cmd := cobra.Command{
		Use:   "evaluate",
		Short: "score a saved model on the holdout split",
		Long: `evaluate rebuilds the test split from the configured data source
and seed, loads a previously saved model and reports its metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if modelPath != "" {
				cfg.Output.ModelPath = modelPath
			}
			flags.setupLogging(cfg)

			XTest, yTest, _, err := pipeline.Prepare(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			clf, err := pipeline.EmptyModel(cfg.Model.Name)
			if err != nil {
				return err
			}
			if err := model.LoadModel(clf, cfg.Output.ModelPath); err != nil {
				return err
			}

			eval, err := pipeline.Evaluate(clf, XTest, yTest)
			if err != nil {
				return err
			}

			rows, _ := XTest.Dims()
			fmt.Printf("model: %s (%s)\n", cfg.Model.Name, cfg.Output.ModelPath)
			fmt.Printf("test samples: %d\n\n", rows)
			printEvaluation(eval)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model-path", "m", "", "path of the saved model (overrides config)")
	return &cmd
}
