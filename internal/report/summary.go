package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"etlkit/internal/dataset"
)

// ColumnStats holds the summary statistics of one numeric column.
type ColumnStats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// SummaryStatistics computes per-column statistics for every numeric column
// with at least one present value. Missing values are excluded.
func SummaryStatistics(ds *dataset.Dataset) []ColumnStats {
	var stats []ColumnStats
	for _, name := range ds.NumericColumns() {
		values, err := ds.Floats(name)
		if err != nil {
			continue
		}
		xs := make([]float64, 0, len(values))
		for _, v := range values {
			if !math.IsNaN(v) {
				xs = append(xs, v)
			}
		}
		if len(xs) == 0 {
			continue
		}
		sort.Float64s(xs)

		stats = append(stats, ColumnStats{
			Column: name,
			Count:  len(xs),
			Mean:   stat.Mean(xs, nil),
			Std:    stat.StdDev(xs, nil),
			Min:    floats.Min(xs),
			Q25:    stat.Quantile(0.25, stat.Empirical, xs, nil),
			Median: stat.Quantile(0.5, stat.Empirical, xs, nil),
			Q75:    stat.Quantile(0.75, stat.Empirical, xs, nil),
			Max:    floats.Max(xs),
		})
	}
	return stats
}
