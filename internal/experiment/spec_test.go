package experiment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/brandjon/frexp/internal/params"
)

const sampleSpec = `
name: sortbench
title: Sorting algorithms
xlabel: n
ylabel: seconds
datasets:
  - {x: 1000, n: 1000}
  - {x: 2000, n: 2000}
  - {x: 4000, n: 4000}
programs:
  - name: quick
    command: ["./sortbench", "--algo=quick"]
  - name: merge
    command: ["./sortbench", "--algo=merge"]
series:
  - name: quicksort
    prog: quick
    color: "#1f77b4"
    format: poly2
  - name: mergesort
    prog: merge
    color: "#ff7f0e"
config:
  fontsize: 14
  custom_knob: hello
`

func writeSpec(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func TestLoadSpec(t *testing.T) {
	spec, err := LoadSpec(writeSpec(t, sampleSpec))
	if err != nil {
		t.Fatalf("LoadSpec failed: %v", err)
	}
	if spec.Name != "sortbench" {
		t.Errorf("expected name sortbench, got %q", spec.Name)
	}
	if len(spec.Datasets) != 3 || len(spec.Programs) != 2 || len(spec.Series) != 2 {
		t.Errorf("unexpected counts: %d datasets, %d programs, %d series",
			len(spec.Datasets), len(spec.Programs), len(spec.Series))
	}
	// Unknown config keys survive the load.
	if spec.Config["custom_knob"] != "hello" {
		t.Errorf("custom config key lost: %v", spec.Config)
	}
}

func TestSpecValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no datasets", `
name: x
programs: [{name: p, command: [p]}]
`},
		{"no programs", `
name: x
datasets: [{x: 1}]
`},
		{"duplicate program", `
name: x
datasets: [{x: 1}]
programs:
  - {name: p, command: [p]}
  - {name: p, command: [p]}
`},
		{"series unknown prog", `
name: x
datasets: [{x: 1}]
programs: [{name: p, command: [p]}]
series: [{name: s, prog: nosuch}]
`},
		{"duplicate series", `
name: x
datasets: [{x: 1}]
programs: [{name: p, command: [p]}]
series:
  - {name: s, prog: p}
  - {name: s, prog: p}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadSpec(writeSpec(t, tc.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMatrixDatagen(t *testing.T) {
	spec, err := LoadSpec(writeSpec(t, sampleSpec))
	if err != nil {
		t.Fatalf("LoadSpec failed: %v", err)
	}
	g := &MatrixDatagen{Spec: spec}

	dsps, err := g.DatasetParamsList()
	if err != nil {
		t.Fatalf("DatasetParamsList failed: %v", err)
	}
	if len(dsps) != 3 {
		t.Fatalf("expected 3 dataset params, got %d", len(dsps))
	}
	// Ids are derived, distinct, and stable.
	if dsps[0].DSID == dsps[1].DSID {
		t.Error("distinct datasets share a dsid")
	}
	again, _ := g.DatasetParamsList()
	if dsps[0].DSID != again[0].DSID {
		t.Error("dsid is not stable across enumerations")
	}

	ds, err := g.Generate(context.Background(), dsps[0])
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !params.EqualByContent(params.Fields(ds.Payload), dsps[0].Fields) {
		t.Errorf("payload does not mirror fields: %+v", ds.Payload)
	}

	tps, err := g.TestParamsList(dsps)
	if err != nil {
		t.Fatalf("TestParamsList failed: %v", err)
	}
	if len(tps) != 6 {
		t.Fatalf("expected 3x2 cross product, got %d", len(tps))
	}
	for _, tp := range tps {
		if tp.Prog != "quick" && tp.Prog != "merge" {
			t.Errorf("unexpected prog %q", tp.Prog)
		}
	}
}
