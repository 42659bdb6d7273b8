// Package plotdoc defines the declarative plot description that is
// the terminal artifact of a pipeline run, plus the legacy single-axes
// figure shape some rendering collaborators consume. Both shapes are
// part of the compatibility surface: field names, types and the
// 4-tuple data encoding must round-trip losslessly.
package plotdoc

import (
	"encoding/json"
	"fmt"
)

// Point is one series datum: (x, y, low error delta, high error
// delta). It serializes as a JSON 4-tuple.
type Point struct {
	X  float64
	Y  float64
	Lo float64
	Hi float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{p.X, p.Y, p.Lo, p.Hi})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var tup []float64
	if err := json.Unmarshal(data, &tup); err != nil {
		return err
	}
	switch len(tup) {
	case 2:
		*p = Point{X: tup[0], Y: tup[1]}
	case 4:
		*p = Point{X: tup[0], Y: tup[1], Lo: tup[2], Hi: tup[3]}
	default:
		return fmt.Errorf("plotdoc: point tuple has %d elements", len(tup))
	}
	return nil
}

// Series is one named, styled collection of points on an axes.
type Series struct {
	Name          string  `json:"name"`
	Style         string  `json:"style,omitempty"`
	Color         string  `json:"color,omitempty"`
	ErrorBars     bool    `json:"errorbars,omitempty"`
	Format        string  `json:"format,omitempty"` // "normal", "polyN", "points"
	HollowMarkers bool    `json:"hollow_markers,omitempty"`
	Data          []Point `json:"data"`
}

// Axes is one plotting surface within the document.
type Axes struct {
	AxesTitle string   `json:"axes_title,omitempty"`
	YLabel    string   `json:"ylabel,omitempty"`
	XLabel    string   `json:"xlabel,omitempty"`
	LogX      bool     `json:"logx,omitempty"`
	LogY      bool     `json:"logy,omitempty"`
	ScalarX   bool     `json:"scalarx,omitempty"`
	ScalarY   bool     `json:"scalary,omitempty"`
	Series    []Series `json:"series"`
}

// Document is the sole output artifact consumed by rendering. It is
// produced fresh on every successful orchestration run, never
// incrementally cached.
type Document struct {
	PlotTitle string         `json:"plot_title"`
	Axes      []Axes         `json:"axes"`
	Config    map[string]any `json:"config,omitempty"`
}

// Recognized configuration keys. Keys outside this list are passed
// through to the rendering collaborator unchanged.
var RecognizedConfigKeys = []string{
	"fontsize", "legfontsize",
	"xmin", "xmax", "ymin", "ymax",
	"linewidth", "markersize", "ticksize", "tickwidth",
	"figsize", "max_xitvls", "max_yitvls",
	"x_ticklocs", "y_ticklocs",
}

// ConfigFloat reads a numeric config value, tolerating the int/float
// ambiguity that YAML and JSON decoding introduce.
func (d *Document) ConfigFloat(key string) (float64, bool) {
	v, ok := d.Config[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
