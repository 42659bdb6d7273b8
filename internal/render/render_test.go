package render

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/brandjon/frexp/internal/plotdoc"
)

func sampleFigure() *plotdoc.Figure {
	return &plotdoc.Figure{
		Title:  "scaling",
		XLabel: "size",
		YLabel: "seconds",
		Legend: true,
		Series: []plotdoc.FigureSeries{
			{
				Name:      "solver",
				Format:    "normal",
				Marker:    "o",
				LineStyle: "-",
				Color:     "#1f77b4",
				Points:    [][2]float64{{1, 0.5}, {2, 1.1}, {3, 2.4}},
				ErrData:   [][2]float64{{0.1, 0.1}, {0.2, 0.1}, {0.3, 0.2}},
			},
			{
				Name:   "samples",
				Format: "points",
				Marker: "x",
				Points: [][2]float64{{1, 0.4}, {1, 0.6}, {2, 1.0}},
			},
		},
	}
}

func TestFigure_WritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "scaling.png")
	if err := Figure(sampleFigure(), path); err != nil {
		t.Fatalf("Figure failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Error("rendered file is empty")
	}
}

func TestFigure_LogAxesAndTicks(t *testing.T) {
	fig := sampleFigure()
	fig.XLog = true
	fig.YLog = true
	fig.XTickLocs = []float64{1, 2, 3}
	path := filepath.Join(t.TempDir(), "log.png")
	if err := Figure(fig, path); err != nil {
		t.Fatalf("Figure failed: %v", err)
	}
}

func TestDocument_LowersAndRenders(t *testing.T) {
	doc := &plotdoc.Document{
		PlotTitle: "scaling",
		Axes: []plotdoc.Axes{{
			XLabel: "size",
			YLabel: "seconds",
			Series: []plotdoc.Series{{
				Name:  "solver",
				Style: "-o",
				Data:  []plotdoc.Point{{X: 1, Y: 0.5}, {X: 2, Y: 1.1}},
			}},
		}},
		Config: map[string]any{},
	}
	path := filepath.Join(t.TempDir(), "doc.png")
	if err := Document(doc, path); err != nil {
		t.Fatalf("Document failed: %v", err)
	}
}

func TestDocument_MultiAxesRejected(t *testing.T) {
	doc := &plotdoc.Document{Axes: []plotdoc.Axes{{}, {}}}
	if err := Document(doc, filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Fatal("expected error for multi-axes document")
	}
}

func TestSeriesColor(t *testing.T) {
	if c := seriesColor("r", 0); c != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("named color r: got %v", c)
	}
	if c := seriesColor("#00ff00", 0); c != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("hex color: got %v", c)
	}
	if c := seriesColor("", 1); c != palette[1] {
		t.Errorf("palette fallback: got %v", c)
	}
	if c := seriesColor("", len(palette)+1); c != palette[1] {
		t.Errorf("palette wraps: got %v", c)
	}
}
