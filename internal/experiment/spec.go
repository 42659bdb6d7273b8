package experiment

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brandjon/frexp/internal/params"
)

// Spec is the on-disk definition of an exec-driven experiment: the
// dataset matrix, the programs to drive, the series to plot, and the
// plot configuration. Loaded from a YAML file and compiled into the
// collaborator set by the workflow package.
type Spec struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`

	XLabel string `yaml:"xlabel"`
	YLabel string `yaml:"ylabel"`
	LogX   bool   `yaml:"logx"`
	LogY   bool   `yaml:"logy"`

	// Datasets is the matrix of dataset parameter field maps. Each
	// entry should carry an "x" field (the plot abscissa); dsids are
	// derived from the field content.
	Datasets []map[string]any `yaml:"datasets"`

	// Generate optionally names a command that materializes dataset
	// payloads. It receives the dataset fields as JSON on stdin and
	// must print the payload JSON on stdout. When absent, the fields
	// themselves become the payload.
	Generate []string `yaml:"generate,omitempty"`

	Programs []ProgramSpec `yaml:"programs"`
	Series   []SeriesSpec  `yaml:"series"`

	// Config is passed through to the plot document; unknown keys are
	// preserved for the rendering collaborator.
	Config map[string]any `yaml:"config,omitempty"`
}

// ProgramSpec names one driven program and how to invoke it.
type ProgramSpec struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`

	// Verify optionally names the command used by the verify driver.
	// When empty, Command is reused with a "verify" mode flag in the
	// trial request.
	Verify []string `yaml:"verify,omitempty"`
}

// SeriesSpec describes one rendered series: which datapoints belong to
// it and how they are shown.
type SeriesSpec struct {
	Name   string `yaml:"name"`
	Prog   string `yaml:"prog"`
	Metric string `yaml:"metric,omitempty"` // results metric for y, default "time"

	// Match optionally restricts the series to datapoints whose
	// dataset fields contain these values, on top of the prog filter.
	Match map[string]any `yaml:"match,omitempty"`

	Format        string `yaml:"format,omitempty"` // normal | polyN | points
	Color         string `yaml:"color,omitempty"`
	Marker        string `yaml:"marker,omitempty"`
	LineStyle     string `yaml:"linestyle,omitempty"`
	ErrorBars     bool   `yaml:"errorbars,omitempty"`
	HollowMarkers bool   `yaml:"hollow_markers,omitempty"`
	DiscardRatio  float64 `yaml:"discard_ratio,omitempty"`
	AllPoints     bool   `yaml:"all_points,omitempty"`
}

// LoadSpec reads and validates an experiment definition.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: read spec: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("experiment: parse spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the definition for the mistakes that would otherwise
// surface halfway through a run.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return &params.ConfigError{Msg: "experiment name is required"}
	}
	if len(s.Datasets) == 0 {
		return &params.ConfigError{Msg: "experiment defines no datasets"}
	}
	if len(s.Programs) == 0 {
		return &params.ConfigError{Msg: "experiment defines no programs"}
	}
	progs := make(map[string]bool, len(s.Programs))
	for _, p := range s.Programs {
		if p.Name == "" {
			return &params.ConfigError{Msg: "program without a name"}
		}
		if len(p.Command) == 0 {
			return &params.ConfigError{Msg: fmt.Sprintf("program %q has no command", p.Name)}
		}
		if progs[p.Name] {
			return &params.ConfigError{Msg: fmt.Sprintf("duplicate program name %q", p.Name)}
		}
		progs[p.Name] = true
	}
	seen := make(map[string]bool, len(s.Series))
	for _, ss := range s.Series {
		if ss.Name == "" {
			return &params.ConfigError{Msg: "series without a name"}
		}
		if seen[ss.Name] {
			return &params.ConfigError{Msg: fmt.Sprintf("duplicate series name %q", ss.Name)}
		}
		seen[ss.Name] = true
		if ss.Prog != "" && !progs[ss.Prog] {
			return &params.ConfigError{Msg: fmt.Sprintf("series %q references unknown program %q", ss.Name, ss.Prog)}
		}
	}
	return nil
}

// ProgNames returns the program names in definition order.
func (s *Spec) ProgNames() []string {
	names := make([]string, len(s.Programs))
	for i, p := range s.Programs {
		names[i] = p.Name
	}
	return names
}

// Program looks up a program definition by name.
func (s *Spec) Program(name string) (ProgramSpec, bool) {
	for _, p := range s.Programs {
		if p.Name == name {
			return p, true
		}
	}
	return ProgramSpec{}, false
}

// MatrixDatagen is the Datagen for a Spec: it enumerates the dataset
// field maps and cross-products them with the program list. Generate
// copies the fields into the payload; wrap it with driver.GenCommand
// when the spec names a generate command.
type MatrixDatagen struct {
	Spec *Spec
}

func (g *MatrixDatagen) DatasetParamsList() ([]params.DatasetParams, error) {
	dsps := make([]params.DatasetParams, len(g.Spec.Datasets))
	for i, fields := range g.Spec.Datasets {
		dsps[i] = params.NewDatasetParams(params.Fields(fields))
	}
	return dsps, nil
}

func (g *MatrixDatagen) Generate(_ context.Context, dsp params.DatasetParams) (*Dataset, error) {
	payload := make(map[string]any, len(dsp.Fields))
	for k, v := range dsp.Fields {
		payload[k] = v
	}
	return &Dataset{DSParams: dsp, Payload: payload}, nil
}

func (g *MatrixDatagen) TestParamsList(dsps []params.DatasetParams) ([]params.TestParams, error) {
	return CrossProduct(dsps, g.Spec.ProgNames()), nil
}
