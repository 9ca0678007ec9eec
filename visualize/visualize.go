// Package visualize renders dataset and evaluation plots to PNG files.
package visualize

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ceschini/lichess-win-prediction/dataset"
	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// Histogram plots the distribution of a numeric column.
func Histogram(values []float64, bins int, title, xLabel, path string) error {
	if len(values) == 0 {
		return errors.NewValueError("Histogram", "no values to plot")
	}
	if bins < 1 {
		bins = 16
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "count"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return errors.Wrapf(err, "failed to build histogram %q", title)
	}
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", path)
	}
	slog.Info("wrote plot", "path", path, "kind", "histogram")
	return nil
}

// ClassBalance plots label counts as a bar chart.
func ClassBalance(counts []dataset.ClassCount, title, path string) error {
	if len(counts) == 0 {
		return errors.NewValueError("ClassBalance", "no classes to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "games"

	values := make(plotter.Values, len(counts))
	labels := make([]string, len(counts))
	for i, c := range counts {
		values[i] = float64(c.Count)
		labels[i] = c.Label
	}

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return errors.Wrapf(err, "failed to build bar chart %q", title)
	}
	p.Add(bars)
	p.NominalX(labels...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", path)
	}
	slog.Info("wrote plot", "path", path, "kind", "bar")
	return nil
}

// confusionGrid adapts a confusion matrix to the heat map interface.
// Rows are flipped so the first class appears at the top.
type confusionGrid struct {
	m *mat.Dense
}

func (g confusionGrid) Dims() (int, int) {
	rows, cols := g.m.Dims()
	return cols, rows
}

func (g confusionGrid) Z(c, r int) float64 {
	rows, _ := g.m.Dims()
	return g.m.At(rows-1-r, c)
}

func (g confusionGrid) X(c int) float64 { return float64(c) }
func (g confusionGrid) Y(r int) float64 { return float64(r) }

// ConfusionHeatmap plots a confusion matrix as a heat map with class
// labels on both axes.
func ConfusionHeatmap(counts *mat.Dense, labels []int, title, path string) error {
	if counts == nil {
		return errors.NewValueError("ConfusionHeatmap", "nil confusion matrix")
	}
	rows, cols := counts.Dims()
	if rows != len(labels) || cols != len(labels) {
		return errors.NewDimensionError("ConfusionHeatmap", len(labels), rows, 0)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "predicted"
	p.Y.Label.Text = "actual"

	heatMap := plotter.NewHeatMap(confusionGrid{m: counts}, moreland.SmoothBlueRed().Palette(255))
	p.Add(heatMap)

	ticks := make([]plot.Tick, len(labels))
	for i, label := range labels {
		ticks[i] = plot.Tick{Value: float64(i), Label: fmt.Sprintf("%d", label)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	yTicks := make([]plot.Tick, len(labels))
	for i, label := range labels {
		yTicks[i] = plot.Tick{Value: float64(len(labels) - 1 - i), Label: fmt.Sprintf("%d", label)}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)

	if err := p.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", path)
	}
	slog.Info("wrote plot", "path", path, "kind", "heatmap")
	return nil
}

// LossCurve plots per-epoch training loss.
func LossCurve(losses []float64, title, path string) error {
	if len(losses) == 0 {
		return errors.NewValueError("LossCurve", "no losses to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	points := make(plotter.XYs, len(losses))
	for i, loss := range losses {
		points[i].X = float64(i + 1)
		points[i].Y = loss
	}

	line, err := plotter.NewLine(points)
	if err != nil {
		return errors.Wrapf(err, "failed to build loss curve %q", title)
	}
	p.Add(line)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", path)
	}
	slog.Info("wrote plot", "path", path, "kind", "line")
	return nil
}
