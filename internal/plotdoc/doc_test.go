package plotdoc

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleDoc() *Document {
	return &Document{
		PlotTitle: "Sorting algorithms",
		Axes: []Axes{{
			XLabel: "n",
			YLabel: "seconds",
			LogY:   true,
			Series: []Series{
				{
					Name:      "quicksort",
					Color:     "#1f77b4",
					Style:     "-o",
					Format:    "poly2",
					ErrorBars: true,
					Data: []Point{
						{X: 1000, Y: 0.5, Lo: 0.1, Hi: 0.2},
						{X: 2000, Y: 1.1, Lo: 0.05, Hi: 0.3},
					},
				},
				{
					Name:   "mergesort",
					Format: "points",
					Data:   []Point{{X: 1000, Y: 0.7}},
				},
			},
		}},
		Config: map[string]any{
			"fontsize":    14.0,
			"custom_knob": "hello",
			"figsize":     []float64{12, 9},
		},
	}
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	doc := sampleDoc()

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back Document
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	// figsize decodes as []any through JSON; compare field by field
	// after normalizing.
	if diff := cmp.Diff(doc.PlotTitle, back.PlotTitle); diff != "" {
		t.Errorf("title mismatch: %s", diff)
	}
	if diff := cmp.Diff(doc.Axes, back.Axes); diff != "" {
		t.Errorf("axes mismatch: %s", diff)
	}
	if back.Config["custom_knob"] != "hello" {
		t.Errorf("unknown config key lost: %v", back.Config)
	}
}

func TestPointEncodesAsTuple(t *testing.T) {
	data, err := json.Marshal(Point{X: 1, Y: 2, Lo: 0.5, Hi: 0.25})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != "[1,2,0.5,0.25]" {
		t.Errorf("expected 4-tuple encoding, got %s", data)
	}

	// A bare (x, y) pair is accepted with zero error deltas.
	var p Point
	if err := json.Unmarshal([]byte("[3,4]"), &p); err != nil {
		t.Fatalf("unmarshal pair failed: %v", err)
	}
	if p != (Point{X: 3, Y: 4}) {
		t.Errorf("pair decoded wrong: %+v", p)
	}

	if err := json.Unmarshal([]byte("[1,2,3]"), &p); err == nil {
		t.Error("expected error for 3-element tuple")
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in     string
		kind   string
		degree int
		ok     bool
	}{
		{"", "normal", 0, true},
		{"normal", "normal", 0, true},
		{"points", "points", 0, true},
		{"poly1", "poly", 1, true},
		{"poly3", "poly", 3, true},
		{"poly0", "", 0, false},
		{"polyx", "", 0, false},
		{"spline", "", 0, false},
	}
	for _, tc := range cases {
		kind, deg, err := ParseFormat(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", tc.in, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("ParseFormat(%q) should fail", tc.in)
			}
			continue
		}
		if kind != tc.kind || deg != tc.degree {
			t.Errorf("ParseFormat(%q) = %q,%d; want %q,%d", tc.in, kind, deg, tc.kind, tc.degree)
		}
	}
}

func TestAssemblerBuild(t *testing.T) {
	a := Assembler{
		Title:  "t",
		XLabel: "x",
		YLabel: "y",
		LogX:   true,
		Config: map[string]any{"fontsize": 12, "mystery": true},
	}
	doc := a.Build(
		[]Series{{Name: "s1", Data: []Point{{X: 1, Y: 2}}}},
		map[string]any{"failed_cells": []string{"c1"}},
	)

	if len(doc.Axes) != 1 {
		t.Fatalf("expected one axes, got %d", len(doc.Axes))
	}
	if !doc.Axes[0].LogX || doc.Axes[0].XLabel != "x" {
		t.Errorf("axes fields wrong: %+v", doc.Axes[0])
	}
	if doc.Config["mystery"] != true {
		t.Error("unknown config key dropped")
	}
	if _, ok := doc.Config["failed_cells"]; !ok {
		t.Error("annotations not merged into config")
	}

	// Assembler is pure: building twice gives equal documents.
	again := a.Build(
		[]Series{{Name: "s1", Data: []Point{{X: 1, Y: 2}}}},
		map[string]any{"failed_cells": []string{"c1"}},
	)
	if diff := cmp.Diff(doc, again); diff != "" {
		t.Errorf("assembler not deterministic: %s", diff)
	}
}

func TestToFigure(t *testing.T) {
	doc := sampleDoc()
	doc.Config["xmin"] = 0.0
	doc.Config["max_yitvls"] = 5

	fig, err := doc.ToFigure()
	if err != nil {
		t.Fatalf("ToFigure failed: %v", err)
	}
	if fig.Title != doc.PlotTitle || !fig.YLog || fig.XLabel != "n" {
		t.Errorf("figure header wrong: %+v", fig)
	}
	if fig.XMin == nil || *fig.XMin != 0 {
		t.Error("xmin not lowered")
	}
	if fig.YMaxItvls == nil || *fig.YMaxItvls != 5 {
		t.Error("max_yitvls not lowered")
	}
	if len(fig.FigSize) != 2 || fig.FigSize[0] != 12 {
		t.Errorf("figsize not lowered: %v", fig.FigSize)
	}

	if len(fig.Series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(fig.Series))
	}
	quick := fig.Series[0]
	if quick.Format != "polyfit" || quick.PolyDeg != 2 {
		t.Errorf("polyN not mapped to polyfit: %+v", quick)
	}
	if len(quick.Points) != 2 || quick.Points[1] != [2]float64{2000, 1.1} {
		t.Errorf("points wrong: %v", quick.Points)
	}
	if len(quick.ErrData) != 2 || quick.ErrData[0] != [2]float64{0.1, 0.2} {
		t.Errorf("errdata wrong: %v", quick.ErrData)
	}
	if fig.Series[1].Format != "points" || fig.Series[1].ErrData != nil {
		t.Errorf("points series wrong: %+v", fig.Series[1])
	}

	// Figure round-trips through JSON.
	data, err := json.Marshal(fig)
	if err != nil {
		t.Fatalf("marshal figure failed: %v", err)
	}
	var back Figure
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal figure failed: %v", err)
	}
	if diff := cmp.Diff(fig, &back); diff != "" {
		t.Errorf("figure round trip mismatch: %s", diff)
	}

	// Multi-axes documents cannot be lowered.
	doc.Axes = append(doc.Axes, Axes{})
	if _, err := doc.ToFigure(); err == nil {
		t.Error("expected error for multi-axes document")
	}
}
