package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ceschini/lichess-win-prediction/dataset"
	"github.com/ceschini/lichess-win-prediction/visualize"
)

func exploreCmd(flags *rootFlags) *cobra.Command {
	var plots bool

	cmd := cobra.Command{
		Use:   "explore",
		Short: "print descriptive statistics for a games CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			flags.setupLogging(cfg)

			records, err := dataset.Load(cmd.Context(), cfg.Data.Source, cfg.Schema())
			if err != nil {
				return err
			}
			summary, err := dataset.Summarize(records)
			if err != nil {
				return err
			}

			printSummary(summary)

			if !plots {
				return nil
			}
			if err := os.MkdirAll(cfg.Output.PlotsDir, 0o755); err != nil {
				return err
			}
			diffs := make([]float64, 0, len(records))
			for i := range records {
				diffs = append(diffs, records[i].RatingDiff())
			}
			if err := visualize.Histogram(diffs, 40, "Rating difference (white - black)", "rating diff",
				filepath.Join(cfg.Output.PlotsDir, "rating_diff.png")); err != nil {
				return err
			}
			return visualize.ClassBalance(summary.WinnerCounts, "Winner distribution",
				filepath.Join(cfg.Output.PlotsDir, "winners.png"))
		},
	}

	cmd.Flags().BoolVar(&plots, "plots", false, "write exploratory plots to the configured plots dir")
	return &cmd
}

func printSummary(s *dataset.Summary) {
	fmt.Printf("games: %d (rated: %d)\n", s.Games, s.RatedGames)
	fmt.Printf("mean rating diff: %.1f\n\n", s.MeanRatingDiff)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "column\tcount\tmissing\tmean\tstd\tmin\tq1\tmedian\tq3\tmax")
	for _, c := range s.Columns {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\n",
			c.Column, c.Count, c.Missing, c.Mean, c.StdDev, c.Min, c.Q1, c.Median, c.Q3, c.Max)
	}
	w.Flush()

	fmt.Println("\nwinner:")
	printCounts(s.WinnerCounts, s.Games)
	fmt.Println("\nvictory_status:")
	printCounts(s.VictoryCounts, s.Games)
}

func printCounts(counts []dataset.ClassCount, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, c := range counts {
		fmt.Fprintf(w, "  %s\t%d\t%.1f%%\n", c.Label, c.Count, 100*float64(c.Count)/float64(total))
	}
	w.Flush()
}
