package plotdoc

import (
	"fmt"
	"strconv"
	"strings"
)

// Figure is the lower-level single-axes plot spec, the legacy shape
// consumed by the matplotlib-style rendering collaborator. It is a
// recognized on-disk format and must round-trip losslessly.
type Figure struct {
	RCParams map[string]any `json:"rcparams,omitempty"`

	Title string `json:"title,omitempty"`

	XLabel    string    `json:"x_label,omitempty"`
	XLabelPad *float64  `json:"x_labelpad,omitempty"`
	XMin      *float64  `json:"x_min,omitempty"`
	XMax      *float64  `json:"x_max,omitempty"`
	XMaxItvls *int      `json:"x_maxitvls,omitempty"`
	XTickLocs []float64 `json:"x_ticklocs,omitempty"`
	XLog      bool      `json:"x_log,omitempty"`

	YLabel    string    `json:"y_label,omitempty"`
	YLabelPad *float64  `json:"y_labelpad,omitempty"`
	YMin      *float64  `json:"y_min,omitempty"`
	YMax      *float64  `json:"y_max,omitempty"`
	YMaxItvls *int      `json:"y_maxitvls,omitempty"`
	YTickLocs []float64 `json:"y_ticklocs,omitempty"`
	YLog      bool      `json:"y_log,omitempty"`

	Legend     bool       `json:"legend"`
	LegendNCol *int       `json:"legend_ncol,omitempty"`
	LegendLoc  string     `json:"legend_loc,omitempty"`
	LegendBBox []float64  `json:"legend_bbox,omitempty"`

	FigSize         []float64 `json:"figsize,omitempty"`
	DPI             *float64  `json:"dpi,omitempty"`
	TightLayout     bool      `json:"tight_layout,omitempty"`
	TightLayoutRect []float64 `json:"tight_layout_rect,omitempty"`

	Series []FigureSeries `json:"series"`
}

// FigureSeries is one series in the legacy figure shape.
type FigureSeries struct {
	Name          string       `json:"name"`
	Format        string       `json:"format,omitempty"` // "normal", "polyfit", "points"
	PolyDeg       int          `json:"polydeg,omitempty"`
	Points        [][2]float64 `json:"points"`
	ErrData       [][2]float64 `json:"errdata,omitempty"`
	Color         string       `json:"color,omitempty"`
	LineStyle     string       `json:"linestyle,omitempty"`
	Marker        string       `json:"marker,omitempty"`
	HollowMarkers bool         `json:"hollow_markers,omitempty"`
	MarkerBorder  bool         `json:"marker_border,omitempty"`
	Dashes        []float64    `json:"dashes,omitempty"`
}

// ParseFormat splits a series format string into its kind and, for
// polynomial fits, the embedded degree: "normal", "points", "polyN".
func ParseFormat(format string) (kind string, degree int, err error) {
	switch {
	case format == "" || format == "normal":
		return "normal", 0, nil
	case format == "points":
		return "points", 0, nil
	case strings.HasPrefix(format, "poly"):
		deg, convErr := strconv.Atoi(strings.TrimPrefix(format, "poly"))
		if convErr != nil || deg < 1 {
			return "", 0, fmt.Errorf("plotdoc: bad polynomial format %q", format)
		}
		return "poly", deg, nil
	default:
		return "", 0, fmt.Errorf("plotdoc: unknown series format %q", format)
	}
}

// ToFigure lowers a single-axes Document into the legacy figure shape.
// Multi-axes documents cannot be represented and return an error.
func (d *Document) ToFigure() (*Figure, error) {
	if len(d.Axes) != 1 {
		return nil, fmt.Errorf("plotdoc: figure requires exactly one axes, document has %d", len(d.Axes))
	}
	ax := d.Axes[0]

	fig := &Figure{
		Title:  d.PlotTitle,
		XLabel: ax.XLabel,
		YLabel: ax.YLabel,
		XLog:   ax.LogX,
		YLog:   ax.LogY,
		Legend: true,
	}
	if v, ok := d.ConfigFloat("xmin"); ok {
		fig.XMin = &v
	}
	if v, ok := d.ConfigFloat("xmax"); ok {
		fig.XMax = &v
	}
	if v, ok := d.ConfigFloat("ymin"); ok {
		fig.YMin = &v
	}
	if v, ok := d.ConfigFloat("ymax"); ok {
		fig.YMax = &v
	}
	if v, ok := d.ConfigFloat("max_xitvls"); ok {
		n := int(v)
		fig.XMaxItvls = &n
	}
	if v, ok := d.ConfigFloat("max_yitvls"); ok {
		n := int(v)
		fig.YMaxItvls = &n
	}
	fig.XTickLocs = configFloats(d.Config["x_ticklocs"])
	fig.YTickLocs = configFloats(d.Config["y_ticklocs"])
	fig.FigSize = configFloats(d.Config["figsize"])

	for _, s := range ax.Series {
		kind, deg, err := ParseFormat(s.Format)
		if err != nil {
			return nil, err
		}
		fs := FigureSeries{
			Name:          s.Name,
			Color:         s.Color,
			HollowMarkers: s.HollowMarkers,
			MarkerBorder:  true,
			Points:        make([][2]float64, len(s.Data)),
		}
		switch kind {
		case "poly":
			fs.Format = "polyfit"
			fs.PolyDeg = deg
		default:
			fs.Format = kind
		}
		marker, line := splitStyle(s.Style)
		fs.Marker = marker
		fs.LineStyle = line
		for i, p := range s.Data {
			fs.Points[i] = [2]float64{p.X, p.Y}
		}
		if s.ErrorBars {
			fs.ErrData = make([][2]float64, len(s.Data))
			for i, p := range s.Data {
				fs.ErrData[i] = [2]float64{p.Lo, p.Hi}
			}
		}
		fig.Series = append(fig.Series, fs)
	}
	return fig, nil
}

// splitStyle separates a compact matplotlib-style string like "-o"
// into its marker and line components.
func splitStyle(style string) (marker, line string) {
	if style == "" {
		return "o", "-"
	}
	for _, r := range style {
		switch r {
		case 'o', 's', '^', 'v', 'x', '+', '*', 'd', '.':
			marker += string(r)
		default:
			line += string(r)
		}
	}
	if marker == "" {
		marker = "o"
	}
	if line == "" {
		line = "-"
	}
	return marker, line
}

func configFloats(v any) []float64 {
	switch xs := v.(type) {
	case []float64:
		return xs
	case []any:
		out := make([]float64, 0, len(xs))
		for _, x := range xs {
			switch n := x.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			}
		}
		if len(out) == len(xs) {
			return out
		}
	}
	return nil
}
