// Package extract maps raw datapoints into named plot series. The
// extractor owns series membership (predicates over dataset and trial
// parameters), the per-series y projection, and - deliberately - the
// aggregation policy for multiple datapoints landing on the same x.
// The orchestrator imposes no implicit averaging.
package extract

import (
	"fmt"
	"sort"

	"github.com/brandjon/frexp/internal/experiment"
	"github.com/brandjon/frexp/internal/plotdoc"
)

// SeriesDescriptor defines one rendered series: its identity, render
// style, data transform, and which datapoints belong to it.
type SeriesDescriptor struct {
	ID   string
	Name string

	Color         string
	Style         string // compact marker+line style, e.g. "-o"
	Format        string // "normal", "polyN", "points"
	ErrorBars     bool
	HollowMarkers bool

	// Match selects the datapoints belonging to this series.
	Match func(dp *experiment.Datapoint) bool

	// X and Y project a datapoint onto the plot. When nil, X reads
	// the dataset field "x" and Y reads the "time" metric.
	X func(dp *experiment.Datapoint) (float64, error)
	Y func(dp *experiment.Datapoint) (float64, error)

	// Aggregation for duplicate x values: mean with outlier discard
	// (default) or every point kept as-is.
	AllPoints    bool
	DiscardRatio float64
}

// SeriesError reports a per-series extraction failure: an empty
// selection or an underdetermined fit. Other series still render.
type SeriesError struct {
	Series string
	Err    error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("extract: series %q: %v", e.Series, e.Err)
}

func (e *SeriesError) Unwrap() error { return e.Err }

// Extractor is the collaborator contract the orchestrator consumes:
// a static series catalog plus realized data per series.
type Extractor interface {
	Series() []SeriesDescriptor
	SeriesData(id string, dps []*experiment.Datapoint) ([]plotdoc.Point, error)
}

// TableExtractor implements Extractor from a list of descriptors.
type TableExtractor struct {
	Descriptors []SeriesDescriptor
}

func (e *TableExtractor) Series() []SeriesDescriptor { return e.Descriptors }

func (e *TableExtractor) SeriesData(id string, dps []*experiment.Datapoint) ([]plotdoc.Point, error) {
	var desc *SeriesDescriptor
	for i := range e.Descriptors {
		if e.Descriptors[i].ID == id {
			desc = &e.Descriptors[i]
			break
		}
	}
	if desc == nil {
		return nil, &SeriesError{Series: id, Err: fmt.Errorf("unknown series")}
	}
	return desc.realize(dps)
}

func (d *SeriesDescriptor) realize(dps []*experiment.Datapoint) ([]plotdoc.Point, error) {
	projX := d.X
	if projX == nil {
		projX = FieldX("x")
	}
	projY := d.Y
	if projY == nil {
		projY = MetricY("time")
	}

	var raw []plotdoc.Point
	for _, dp := range dps {
		if dp.Results.Failed {
			continue // failed cells are surfaced via the run report
		}
		if d.Match != nil && !d.Match(dp) {
			continue
		}
		x, err := projX(dp)
		if err != nil {
			return nil, &SeriesError{Series: d.ID, Err: err}
		}
		y, err := projY(dp)
		if err != nil {
			return nil, &SeriesError{Series: d.ID, Err: err}
		}
		raw = append(raw, plotdoc.Point{X: x, Y: y})
	}
	if len(raw) == 0 {
		return nil, &SeriesError{Series: d.ID, Err: fmt.Errorf("no datapoints matched")}
	}

	kind, degree, err := plotdoc.ParseFormat(d.Format)
	if err != nil {
		return nil, &SeriesError{Series: d.ID, Err: err}
	}

	switch kind {
	case "points":
		// Raw points, no aggregation.
		sort.Slice(raw, func(i, j int) bool { return raw[i].X < raw[j].X })
		return raw, nil
	case "normal":
		if d.AllPoints {
			sort.Slice(raw, func(i, j int) bool { return raw[i].X < raw[j].X })
			return raw, nil
		}
		return Average(raw, d.DiscardRatio, d.ErrorBars), nil
	case "poly":
		agg := raw
		if !d.AllPoints {
			agg = Average(raw, d.DiscardRatio, false)
		} else {
			sort.Slice(agg, func(i, j int) bool { return agg[i].X < agg[j].X })
		}
		curve, err := fitCurve(agg, degree)
		if err != nil {
			return nil, &SeriesError{Series: d.ID, Err: err}
		}
		return curve, nil
	default:
		return nil, &SeriesError{Series: d.ID, Err: fmt.Errorf("unhandled format kind %q", kind)}
	}
}

// fitCurve fits a degree-N polynomial to the points and samples the
// fitted curve at roughly ten times the input density.
func fitCurve(pts []plotdoc.Point, degree int) ([]plotdoc.Point, error) {
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	coefs, err := Fit(xs, ys, degree)
	if err != nil {
		return nil, err
	}
	n := len(pts)*10 + 1
	lo, hi := xs[0], xs[len(xs)-1]
	out := make([]plotdoc.Point, n)
	for i := 0; i < n; i++ {
		x := lo + (hi-lo)*float64(i)/float64(n-1)
		out[i] = plotdoc.Point{X: x, Y: Eval(coefs, x)}
	}
	return out, nil
}

// Average groups points by x and reduces each group to
// (x, mean y, mean-min delta, max-mean delta). The mean includes
// outliers; the error deltas discard the outer discardRatio fraction
// of samples on each side first, matching how repeated trials are
// summarized for plotting. When errorBars is false the deltas are
// zeroed.
func Average(pts []plotdoc.Point, discardRatio float64, errorBars bool) []plotdoc.Point {
	byX := make(map[float64][]float64)
	for _, p := range pts {
		byX[p.X] = append(byX[p.X], p.Y)
	}
	xs := make([]float64, 0, len(byX))
	for x := range byX {
		xs = append(xs, x)
	}
	sort.Float64s(xs)

	out := make([]plotdoc.Point, 0, len(xs))
	for _, x := range xs {
		yvals := byX[x]
		sort.Float64s(yvals)

		var sum float64
		for _, y := range yvals {
			sum += y
		}
		avg := sum / float64(len(yvals))

		kept := yvals
		discard := int(float64(len(yvals)) * discardRatio)
		if discard > 0 && len(yvals) > 2*discard {
			kept = yvals[discard : len(yvals)-discard]
		}

		p := plotdoc.Point{X: x, Y: avg}
		if errorBars {
			p.Lo = avg - kept[0]
			p.Hi = kept[len(kept)-1] - avg
		}
		out = append(out, p)
	}
	return out
}

// FieldX projects a numeric dataset parameter field as the x value.
func FieldX(field string) func(dp *experiment.Datapoint) (float64, error) {
	return func(dp *experiment.Datapoint) (float64, error) {
		v, ok := dp.DSParams.Fields[field]
		if !ok {
			return 0, fmt.Errorf("dataset %s has no field %q", dp.DSParams.DSID, field)
		}
		f, ok := asFloat(v)
		if !ok {
			return 0, fmt.Errorf("dataset field %q is not numeric: %v", field, v)
		}
		return f, nil
	}
}

// MetricY projects a results metric as the y value.
func MetricY(metric string) func(dp *experiment.Datapoint) (float64, error) {
	return func(dp *experiment.Datapoint) (float64, error) {
		y, ok := dp.Results.Metrics[metric]
		if !ok {
			return 0, fmt.Errorf("datapoint %s/%s has no metric %q", dp.DSParams.DSID, dp.Prog, metric)
		}
		return y, nil
	}
}

// MatchProg selects datapoints by program, optionally requiring
// dataset fields to contain the given values.
func MatchProg(prog string, fields map[string]any) func(dp *experiment.Datapoint) bool {
	return func(dp *experiment.Datapoint) bool {
		if prog != "" && dp.Prog != prog {
			return false
		}
		for k, want := range fields {
			got, ok := dp.DSParams.Fields[k]
			if !ok {
				return false
			}
			wf, wok := asFloat(want)
			gf, gok := asFloat(got)
			if wok && gok {
				if wf != gf {
					return false
				}
				continue
			}
			if fmt.Sprint(got) != fmt.Sprint(want) {
				return false
			}
		}
		return true
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	default:
		return 0, false
	}
}
