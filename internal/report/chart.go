package report

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
)

const (
	DefaultChartWidth  = 80
	DefaultChartHeight = 12
)

// Chart plots one or more series in the terminal. Series longer than the
// width are decimated by asciigraph's interpolation.
func Chart(caption string, series ...[]float64) (string, error) {
	clean := make([][]float64, 0, len(series))
	for i, s := range series {
		if len(s) == 0 {
			return "", fmt.Errorf("report: series %d is empty", i)
		}
		c := make([]float64, len(s))
		for j, v := range s {
			if !isFinite(v) {
				return "", fmt.Errorf("report: series %d has a non-finite value at %d", i, j)
			}
			c[j] = v
		}
		clean = append(clean, c)
	}
	if len(clean) == 0 {
		return "", fmt.Errorf("report: nothing to plot")
	}

	opts := []asciigraph.Option{
		asciigraph.Height(DefaultChartHeight),
		asciigraph.Width(DefaultChartWidth),
		asciigraph.Caption(caption),
	}
	if len(clean) > 1 {
		opts = append(opts, asciigraph.SeriesColors(
			asciigraph.Cyan, asciigraph.Yellow, asciigraph.Green, asciigraph.Red,
		))
	}
	return asciigraph.PlotMany(clean, opts...), nil
}
