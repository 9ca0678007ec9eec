// Command chesspredict trains and evaluates chess game outcome
// classifiers from lichess CSV exports.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ceschini/lichess-win-prediction/config"
	"github.com/ceschini/lichess-win-prediction/pkg/log"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	source     string
	logLevel   string
	console    bool
}

// loadConfig builds the effective configuration from the config file
// and command line overrides.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.source != "" {
		cfg.Data.Source = f.source
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *rootFlags) setupLogging(cfg *config.Config) {
	if f.console {
		log.SetupConsoleLogger(cfg.LogLevel)
		return
	}
	log.SetupLogger(cfg.LogLevel)
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := cobra.Command{
		Use:   "chesspredict",
		Short: "predict chess game winners from lichess data",
		Long: `chesspredict runs a classification pipeline over lichess game
exports: it loads a games CSV, engineers features, fits a classifier
and reports holdout metrics.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVarP(&flags.source, "data", "d", "", "games CSV path or URL (overrides config)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&flags.console, "console", false, "human readable log output")

	root.AddCommand(exploreCmd(flags))
	root.AddCommand(trainCmd(flags))
	root.AddCommand(evaluateCmd(flags))
	return &root
}
