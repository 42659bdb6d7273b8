// Package render draws a plot figure to a PNG file. It consumes the
// single-axes figure shape; multi-axes documents are lowered first via
// plotdoc.Document.ToFigure.
package render

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/brandjon/frexp/internal/plotdoc"
)

// palette cycles for series without an explicit color, roughly the
// matplotlib default cycle.
var palette = []color.RGBA{
	{31, 119, 180, 255},
	{255, 127, 14, 255},
	{44, 160, 44, 255},
	{214, 39, 40, 255},
	{148, 103, 189, 255},
	{140, 86, 75, 255},
	{227, 119, 194, 255},
	{127, 127, 127, 255},
}

// single-letter color codes carried over from the figure format.
var namedColors = map[string]color.RGBA{
	"b": {0, 0, 255, 255},
	"g": {0, 128, 0, 255},
	"r": {255, 0, 0, 255},
	"c": {0, 255, 255, 255},
	"m": {255, 0, 255, 255},
	"y": {255, 255, 0, 255},
	"k": {0, 0, 0, 255},
	"w": {255, 255, 255, 255},
}

// Document lowers a plot document and renders it.
func Document(doc *plotdoc.Document, path string) error {
	fig, err := doc.ToFigure()
	if err != nil {
		return err
	}
	return Figure(fig, path)
}

// Figure renders the figure to the PNG at path, creating parent
// directories as needed.
func Figure(fig *plotdoc.Figure, path string) error {
	p := plot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel

	if fig.XLog {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{}
	}
	if fig.YLog {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{}
	}
	if fig.XMin != nil {
		p.X.Min = *fig.XMin
	}
	if fig.XMax != nil {
		p.X.Max = *fig.XMax
	}
	if fig.YMin != nil {
		p.Y.Min = *fig.YMin
	}
	if fig.YMax != nil {
		p.Y.Max = *fig.YMax
	}
	if locs := fig.XTickLocs; len(locs) > 0 {
		p.X.Tick.Marker = plot.ConstantTicks(tickMarks(locs))
	}
	if locs := fig.YTickLocs; len(locs) > 0 {
		p.Y.Tick.Marker = plot.ConstantTicks(tickMarks(locs))
	}

	for i, s := range fig.Series {
		if err := addSeries(p, s, seriesColor(s.Color, i)); err != nil {
			return fmt.Errorf("render: series %q: %w", s.Name, err)
		}
	}

	if fig.Legend {
		p.Legend.Top = true
		p.Legend.Left = true
	}

	w, h := 8.0, 6.0
	if len(fig.FigSize) == 2 {
		w, h = fig.FigSize[0], fig.FigSize[1]
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("render: mkdir %s: %w", dir, err)
		}
	}
	if err := p.Save(vg.Length(w)*vg.Inch, vg.Length(h)*vg.Inch, path); err != nil {
		return fmt.Errorf("render: save %s: %w", path, err)
	}
	return nil
}

func addSeries(p *plot.Plot, s plotdoc.FigureSeries, col color.RGBA) error {
	xys := make(plotter.XYs, len(s.Points))
	for i, pt := range s.Points {
		xys[i].X, xys[i].Y = pt[0], pt[1]
	}

	drawLine := s.Format != "points" && s.LineStyle != "" && s.LineStyle != "none"
	drawMarkers := s.Format != "polyfit" && s.Marker != "" && s.Marker != "none"

	var legend plot.Thumbnailer
	if drawLine {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = col
		line.Width = vg.Points(1.5)
		line.Dashes = lineDashes(s)
		p.Add(line)
		legend = line
	}
	if drawMarkers {
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = col
		scatter.GlyphStyle.Radius = vg.Points(3)
		scatter.GlyphStyle.Shape = markerShape(s.Marker, s.HollowMarkers)
		p.Add(scatter)
		if legend == nil {
			legend = scatter
		}
	}
	if len(s.ErrData) == len(s.Points) && len(s.ErrData) > 0 {
		yerrs := make(plotter.YErrors, len(s.ErrData))
		for i, e := range s.ErrData {
			yerrs[i].Low, yerrs[i].High = e[0], e[1]
		}
		bars, err := plotter.NewYErrorBars(errPoints{XYs: xys, YErrors: yerrs})
		if err != nil {
			return err
		}
		bars.Color = col
		p.Add(bars)
	}
	if legend != nil && s.Name != "" {
		p.Legend.Add(s.Name, legend)
	}
	return nil
}

// errPoints pairs coordinates with their y error deltas for
// plotter.NewYErrorBars.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

func lineDashes(s plotdoc.FigureSeries) []vg.Length {
	if len(s.Dashes) > 0 {
		out := make([]vg.Length, len(s.Dashes))
		for i, d := range s.Dashes {
			out[i] = vg.Points(d)
		}
		return out
	}
	switch s.LineStyle {
	case "--":
		return []vg.Length{vg.Points(6), vg.Points(3)}
	case ":":
		return []vg.Length{vg.Points(1.5), vg.Points(2.5)}
	case "-.":
		return []vg.Length{vg.Points(6), vg.Points(3), vg.Points(1.5), vg.Points(3)}
	default:
		return nil
	}
}

func markerShape(marker string, hollow bool) draw.GlyphDrawer {
	switch marker {
	case "s":
		if hollow {
			return draw.SquareGlyph{}
		}
		return draw.BoxGlyph{}
	case "^", "v":
		if hollow {
			return draw.TriangleGlyph{}
		}
		return draw.PyramidGlyph{}
	case "x":
		return draw.CrossGlyph{}
	case "+":
		return draw.PlusGlyph{}
	default:
		if hollow {
			return draw.RingGlyph{}
		}
		return draw.CircleGlyph{}
	}
}

func seriesColor(spec string, index int) color.RGBA {
	if c, ok := namedColors[spec]; ok {
		return c
	}
	if c, ok := parseHex(spec); ok {
		return c
	}
	return palette[index%len(palette)]
}

func parseHex(spec string) (color.RGBA, bool) {
	if len(spec) != 7 || spec[0] != '#' {
		return color.RGBA{}, false
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(spec[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{r, g, b, 255}, true
}

func tickMarks(locs []float64) []plot.Tick {
	ticks := make([]plot.Tick, len(locs))
	for i, v := range locs {
		ticks[i] = plot.Tick{Value: v, Label: fmt.Sprintf("%g", v)}
	}
	return ticks
}
