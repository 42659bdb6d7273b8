package extract

import (
	"fmt"

	"github.com/brandjon/frexp/internal/experiment"
	"github.com/brandjon/frexp/internal/plotdoc"
)

// NormalizedExtractor rescales every series relative to a designated
// base series, e.g. to plot slowdown ratios instead of raw times. The
// base series itself is removed from the catalog. Because
// normalization operates on aggregated values, error bars are dropped.
type NormalizedExtractor struct {
	Base       Extractor
	BaseSeries string

	// Normalize combines a series value with the base value at the
	// same x. Defaults to division.
	Normalize func(y, base float64) float64
}

func (n *NormalizedExtractor) Series() []SeriesDescriptor {
	var out []SeriesDescriptor
	for _, d := range n.Base.Series() {
		if d.ID == n.BaseSeries {
			continue
		}
		d.ErrorBars = false
		out = append(out, d)
	}
	return out
}

func (n *NormalizedExtractor) SeriesData(id string, dps []*experiment.Datapoint) ([]plotdoc.Point, error) {
	if id == n.BaseSeries {
		return nil, &SeriesError{Series: id, Err: fmt.Errorf("base series is not rendered")}
	}
	data, err := n.Base.SeriesData(id, dps)
	if err != nil {
		return nil, err
	}
	base, err := n.Base.SeriesData(n.BaseSeries, dps)
	if err != nil {
		return nil, &SeriesError{Series: id, Err: fmt.Errorf("base series: %w", err)}
	}
	baseAt := make(map[float64]float64, len(base))
	for _, p := range base {
		baseAt[p.X] = p.Y
	}

	norm := n.Normalize
	if norm == nil {
		norm = func(y, b float64) float64 { return y / b }
	}

	out := make([]plotdoc.Point, 0, len(data))
	for _, p := range data {
		b, ok := baseAt[p.X]
		if !ok {
			return nil, &SeriesError{Series: id, Err: fmt.Errorf("base series has no value at x=%v", p.X)}
		}
		out = append(out, plotdoc.Point{X: p.X, Y: norm(p.Y, b)})
	}
	return out, nil
}
