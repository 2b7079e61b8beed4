package report

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/wcharczuk/go-chart/v2"

	"etlkit/internal/config"
	"etlkit/internal/dataset"
	apperrors "etlkit/internal/errors"
	"etlkit/internal/transform"
)

// RenderChart renders one chart spec to an image file in the output
// directory and returns the file path. A spec referencing a column the
// Dataset does not have is a render error; a write failure is an IO error.
func (g *Generator) RenderChart(ctx context.Context, ds *dataset.Dataset, spec config.ChartSpec) (string, error) {
	const op = "report.RenderChart"

	if spec.Type != "heatmap" {
		for _, col := range []string{spec.X, spec.Y} {
			if !ds.HasColumn(col) {
				return "", apperrors.NewRender(op,
					fmt.Sprintf("column %q not in dataset (have %s)", col, strings.Join(ds.Columns(), ", ")), nil)
			}
		}
	}

	var (
		path string
		err  error
	)
	switch spec.Type {
	case "bar":
		path, err = g.renderBar(ds, spec)
	case "line":
		path, err = g.renderLine(ds, spec)
	case "pie":
		path, err = g.renderPie(ds, spec)
	case "heatmap":
		path, err = g.renderHeatmap(ds, spec)
	default:
		return "", apperrors.NewConfig(op, fmt.Sprintf("unknown chart type %q", spec.Type), nil)
	}
	if err != nil {
		return "", err
	}

	g.logger.InfoContext(ctx, "chart rendered",
		slog.String("type", spec.Type),
		slog.String("path", path))
	return path, nil
}

// groupSums reduces the dataset to one (label, value) pair per distinct x,
// summing y, which is what bar and pie charts plot.
func (g *Generator) groupSums(ds *dataset.Dataset, spec config.ChartSpec) ([]chart.Value, error) {
	const op = "report.RenderChart"

	grouped, err := transform.New(g.logger).
		SetDataset(ds).
		Aggregate([]string{spec.X}, map[string]string{spec.Y: "sum"}).
		Dataset()
	if err != nil {
		return nil, apperrors.NewRender(op, fmt.Sprintf("group %q by %q", spec.Y, spec.X), err)
	}

	labels, err := grouped.Strings(spec.X)
	if err != nil {
		return nil, apperrors.NewRender(op, "read chart labels", err)
	}
	values, err := grouped.Floats(spec.Y)
	if err != nil {
		return nil, apperrors.NewRender(op, "read chart values", err)
	}

	pairs := make([]chart.Value, 0, len(labels))
	for i, label := range labels {
		v := values[i]
		if math.IsNaN(v) {
			continue
		}
		pairs = append(pairs, chart.Value{Label: label, Value: v})
	}
	if len(pairs) == 0 {
		return nil, apperrors.NewRender(op, "no plottable values after grouping", nil)
	}
	return pairs, nil
}

func (g *Generator) renderBar(ds *dataset.Dataset, spec config.ChartSpec) (string, error) {
	bars, err := g.groupSums(ds, spec)
	if err != nil {
		return "", err
	}

	c := chart.BarChart{
		Title:    chartTitle(spec, fmt.Sprintf("%s by %s", spec.Y, spec.X)),
		Width:    1024,
		Height:   512,
		BarWidth: 60,
		Bars:     bars,
	}

	path := g.outputPath(fmt.Sprintf("bar_%s_%s_%s.%s", spec.X, spec.Y, g.timestamp(), g.cfg.ImageFormat))
	return path, g.renderToFile(path, func(f *os.File) error {
		return c.Render(rendererFor(g.cfg.ImageFormat), f)
	})
}

func (g *Generator) renderLine(ds *dataset.Dataset, spec config.ChartSpec) (string, error) {
	const op = "report.RenderChart"

	ys, err := ds.Floats(spec.Y)
	if err != nil {
		return "", apperrors.NewRender(op, "read y values", err)
	}

	// Numeric x columns plot on their own scale; anything else falls back
	// to row order.
	var xs []float64
	if containsString(ds.NumericColumns(), spec.X) {
		xs, err = ds.Floats(spec.X)
		if err != nil {
			return "", apperrors.NewRender(op, "read x values", err)
		}
	} else {
		xs = make([]float64, len(ys))
		for i := range xs {
			xs[i] = float64(i)
		}
	}

	plotXs := make([]float64, 0, len(xs))
	plotYs := make([]float64, 0, len(ys))
	for i := range ys {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		plotXs = append(plotXs, xs[i])
		plotYs = append(plotYs, ys[i])
	}
	if len(plotYs) == 0 {
		return "", apperrors.NewRender(op, "no plottable values", nil)
	}

	c := chart.Chart{
		Title:  chartTitle(spec, fmt.Sprintf("%s over %s", spec.Y, spec.X)),
		Width:  1024,
		Height: 512,
		XAxis:  chart.XAxis{Name: spec.X},
		YAxis:  chart.YAxis{Name: spec.Y},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    spec.Y,
				XValues: plotXs,
				YValues: plotYs,
			},
		},
	}

	path := g.outputPath(fmt.Sprintf("line_%s_%s_%s.%s", spec.X, spec.Y, g.timestamp(), g.cfg.ImageFormat))
	return path, g.renderToFile(path, func(f *os.File) error {
		return c.Render(rendererFor(g.cfg.ImageFormat), f)
	})
}

func (g *Generator) renderPie(ds *dataset.Dataset, spec config.ChartSpec) (string, error) {
	values, err := g.groupSums(ds, spec)
	if err != nil {
		return "", err
	}

	c := chart.PieChart{
		Title:  chartTitle(spec, fmt.Sprintf("%s share by %s", spec.Y, spec.X)),
		Width:  700,
		Height: 700,
		Values: values,
	}

	path := g.outputPath(fmt.Sprintf("pie_%s_%s_%s.%s", spec.X, spec.Y, g.timestamp(), g.cfg.ImageFormat))
	return path, g.renderToFile(path, func(f *os.File) error {
		return c.Render(rendererFor(g.cfg.ImageFormat), f)
	})
}

// renderToFile creates the target file and runs render against it,
// classifying failures: creation is IO, rendering is render.
func (g *Generator) renderToFile(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewIO("report.RenderChart", fmt.Sprintf("create chart file %s", path), err)
	}
	defer f.Close()

	if err := render(f); err != nil {
		return apperrors.NewRender("report.RenderChart", "render chart", err)
	}
	return nil
}

func rendererFor(format string) chart.RendererProvider {
	if format == "svg" {
		return chart.SVG
	}
	return chart.PNG
}

func chartTitle(spec config.ChartSpec, fallback string) string {
	if spec.Title != "" {
		return spec.Title
	}
	return fallback
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
