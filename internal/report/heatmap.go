package report

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"etlkit/internal/config"
	"etlkit/internal/dataset"
	apperrors "etlkit/internal/errors"
)

// corrGrid adapts a correlation matrix to the heatmap grid interface.
type corrGrid struct {
	m *mat.SymDense
}

func (g corrGrid) Dims() (c, r int) {
	n := g.m.SymmetricDim()
	return n, n
}

func (g corrGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// renderHeatmap draws the correlation matrix of the numeric columns.
func (g *Generator) renderHeatmap(ds *dataset.Dataset, spec config.ChartSpec) (string, error) {
	const op = "report.RenderChart"

	cols := ds.NumericColumns()
	if len(cols) < 2 {
		return "", apperrors.NewRender(op,
			fmt.Sprintf("correlation heatmap needs at least two numeric columns, have %d", len(cols)), nil)
	}

	corr, err := correlationMatrix(ds, cols)
	if err != nil {
		return "", apperrors.NewRender(op, "compute correlation matrix", err)
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)

	p := plot.New()
	p.Title.Text = chartTitle(spec, "Correlation Heatmap")
	p.Add(plotter.NewHeatMap(corrGrid{m: corr}, cm.Palette(255)))
	p.NominalX(cols...)
	p.NominalY(cols...)

	path := g.outputPath(fmt.Sprintf("heatmap_%s.%s", g.timestamp(), g.cfg.ImageFormat))
	if err := p.Save(7*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", apperrors.NewIO(op, fmt.Sprintf("save heatmap %s", path), err)
	}
	return path, nil
}

// correlationMatrix computes pairwise Pearson correlations over the rows
// that are complete in every listed column.
func correlationMatrix(ds *dataset.Dataset, cols []string) (*mat.SymDense, error) {
	columns := make([][]float64, len(cols))
	for i, name := range cols {
		values, err := ds.Floats(name)
		if err != nil {
			return nil, err
		}
		columns[i] = values
	}

	n := ds.NumRows()
	complete := make([]int, 0, n)
	for r := 0; r < n; r++ {
		ok := true
		for _, col := range columns {
			if math.IsNaN(col[r]) {
				ok = false
				break
			}
		}
		if ok {
			complete = append(complete, r)
		}
	}
	if len(complete) < 2 {
		return nil, fmt.Errorf("not enough complete rows (%d) to correlate", len(complete))
	}

	data := mat.NewDense(len(complete), len(cols), nil)
	for i, r := range complete {
		for j, col := range columns {
			data.Set(i, j, col[r])
		}
	}

	corr := mat.NewSymDense(len(cols), nil)
	stat.CorrelationMatrix(corr, data, nil)
	return corr, nil
}
