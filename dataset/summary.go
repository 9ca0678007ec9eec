package dataset

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// ColumnSummary holds descriptive statistics for one numeric column.
type ColumnSummary struct {
	Column  string
	Count   int
	Missing int
	Mean    float64
	Median  float64
	StdDev  float64
	Min     float64
	Max     float64
	Q1      float64
	Q3      float64
}

// ClassCount is the frequency of one label value.
type ClassCount struct {
	Label string
	Count int
}

// Summary is the exploratory report over a loaded dataset.
type Summary struct {
	Games          int
	Columns        []ColumnSummary
	WinnerCounts   []ClassCount
	VictoryCounts  []ClassCount
	RatedGames     int
	MeanRatingDiff float64
}

// Summarize computes descriptive statistics over the numeric columns
// and the label distributions of the winner and victory_status columns.
func Summarize(records []GameRecord) (*Summary, error) {
	if len(records) == 0 {
		return nil, errors.ErrEmptyData
	}

	numeric := map[string]func(*GameRecord) float64{
		ColTurns:       func(g *GameRecord) float64 { return g.Turns },
		ColWhiteRating: func(g *GameRecord) float64 { return g.WhiteRating },
		ColBlackRating: func(g *GameRecord) float64 { return g.BlackRating },
		ColOpeningPly:  func(g *GameRecord) float64 { return g.OpeningPly },
	}

	summary := &Summary{Games: len(records)}

	columns := make([]string, 0, len(numeric))
	for col := range numeric {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	for _, col := range columns {
		get := numeric[col]
		values := make([]float64, 0, len(records))
		missing := 0
		for i := range records {
			v := get(&records[i])
			if math.IsNaN(v) {
				missing++
				continue
			}
			values = append(values, v)
		}

		cs := ColumnSummary{Column: col, Count: len(values), Missing: missing}
		if len(values) > 0 {
			cs.Mean, _ = stats.Mean(values)
			cs.Median, _ = stats.Median(values)
			cs.StdDev, _ = stats.StandardDeviationSample(values)
			cs.Min, _ = stats.Min(values)
			cs.Max, _ = stats.Max(values)
			if q, err := stats.Quartile(values); err == nil {
				cs.Q1 = q.Q1
				cs.Q3 = q.Q3
			}
		}
		summary.Columns = append(summary.Columns, cs)
	}

	summary.WinnerCounts = countLabels(records, func(g *GameRecord) string { return g.Winner })
	summary.VictoryCounts = countLabels(records, func(g *GameRecord) string { return g.VictoryStatus })

	var diffs []float64
	for i := range records {
		if records[i].Rated {
			summary.RatedGames++
		}
		if d := records[i].RatingDiff(); !math.IsNaN(d) {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) > 0 {
		summary.MeanRatingDiff, _ = stats.Mean(diffs)
	}

	return summary, nil
}

func countLabels(records []GameRecord, get func(*GameRecord) string) []ClassCount {
	counts := make(map[string]int)
	for i := range records {
		label := get(&records[i])
		if label == "" {
			label = "(missing)"
		}
		counts[label]++
	}

	result := make([]ClassCount, 0, len(counts))
	for label, count := range counts {
		result = append(result, ClassCount{Label: label, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Label < result[j].Label
	})
	return result
}
