package plotdoc

// Assembler builds a Document from realized series data and
// configuration. It is a pure transform: no I/O, no aggregation (the
// extractor already decided that), just shaping into the wire schema.
type Assembler struct {
	Title     string
	AxesTitle string
	XLabel    string
	YLabel    string
	LogX      bool
	LogY      bool
	ScalarX   bool
	ScalarY   bool

	// Config is merged into the document config; recognized and
	// unknown keys alike are carried through.
	Config map[string]any
}

// Build shapes the realized series into a single-axes document.
// Annotations (failed cells, failed series) are merged into the
// config so failures are visible in the terminal artifact.
func (a Assembler) Build(series []Series, annotations map[string]any) *Document {
	cfg := make(map[string]any, len(a.Config)+len(annotations))
	for k, v := range a.Config {
		cfg[k] = v
	}
	for k, v := range annotations {
		cfg[k] = v
	}
	if series == nil {
		series = []Series{}
	}
	return &Document{
		PlotTitle: a.Title,
		Axes: []Axes{{
			AxesTitle: a.AxesTitle,
			YLabel:    a.YLabel,
			XLabel:    a.XLabel,
			LogX:      a.LogX,
			LogY:      a.LogY,
			ScalarX:   a.ScalarX,
			ScalarY:   a.ScalarY,
			Series:    series,
		}},
		Config: cfg,
	}
}
