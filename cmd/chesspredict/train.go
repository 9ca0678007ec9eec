package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/core/model"
	"github.com/ceschini/lichess-win-prediction/neural"
	"github.com/ceschini/lichess-win-prediction/pipeline"
	"github.com/ceschini/lichess-win-prediction/visualize"
)

const timePrecision = time.Millisecond

func trainCmd(flags *rootFlags) *cobra.Command {
	var (
		modelName string
		out       string
		plots     bool
	)

	cmd := cobra.Command{
		Use:   "train",
		Short: "fit a classifier and report holdout metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if modelName != "" {
				cfg.Model.Name = modelName
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if out != "" {
				cfg.Output.ModelPath = out
			}
			flags.setupLogging(cfg)

			result, err := pipeline.Train(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printTrainResult(cfg.Model.Name, result)

			if cfg.Output.ModelPath != "" {
				if err := model.SaveModel(result.Model, cfg.Output.ModelPath); err != nil {
					return err
				}
				fmt.Printf("\nmodel saved to %s\n", cfg.Output.ModelPath)
			}

			if !plots {
				return nil
			}
			if err := os.MkdirAll(cfg.Output.PlotsDir, 0o755); err != nil {
				return err
			}
			eval := result.Evaluation
			if err := visualize.ConfusionHeatmap(eval.Confusion, eval.ConfusionLabels,
				"Confusion matrix", filepath.Join(cfg.Output.PlotsDir, "confusion.png")); err != nil {
				return err
			}
			if mlp, ok := result.Model.(*neural.MLPClassifier); ok {
				if err := visualize.LossCurve(mlp.LossCurve_, "Training loss",
					filepath.Join(cfg.Output.PlotsDir, "loss.png")); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "classifier to train (overrides config)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "path for the saved model (overrides config)")
	cmd.Flags().BoolVar(&plots, "plots", false, "write evaluation plots to the configured plots dir")
	return &cmd
}

func printTrainResult(name string, result *pipeline.TrainResult) {
	fmt.Printf("model: %s\n", name)
	fmt.Printf("train samples: %d, test samples: %d\n", result.TrainSamples, result.TestSamples)
	fmt.Printf("fit time: %s\n", result.Duration.Round(timePrecision))
	if result.BestParams != nil {
		fmt.Printf("best params: %v (cv score %.4f)\n", result.BestParams, result.CVScore)
	}
	fmt.Println()
	printEvaluation(result.Evaluation)
}

func printEvaluation(eval *pipeline.Evaluation) {
	fmt.Print(eval.Report.String())
	if eval.HasAUC {
		fmt.Printf("\nauc: %.4f\n", eval.AUC)
	}
	fmt.Println("\nconfusion matrix (rows true, cols predicted):")
	printConfusion(eval.Confusion, eval.ConfusionLabels)
}

func printConfusion(counts *mat.Dense, labels []int) {
	fmt.Print("      ")
	for _, l := range labels {
		fmt.Printf("%6d", l)
	}
	fmt.Println()
	for i, l := range labels {
		fmt.Printf("%6d", l)
		for j := range labels {
			fmt.Printf("%6.0f", counts.At(i, j))
		}
		fmt.Println()
	}
}
