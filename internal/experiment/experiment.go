// Package experiment defines the artifacts that flow through the
// pipeline (datasets, datapoints, results) and the collaborator
// interfaces the orchestrator drives: dataset generation and trial
// execution. Concrete experiments plug in one implementation per role;
// the exec-driven experiment compiled from a YAML definition lives in
// spec.go.
package experiment

import (
	"context"

	"github.com/brandjon/frexp/internal/params"
)

// Dataset is the materialized input data for one DatasetParams.
// Immutable once generated; owned by the artifact store after
// persistence and superseded, never edited, when its params change.
type Dataset struct {
	DSParams params.DatasetParams `json:"dsparams"`
	Payload  map[string]any       `json:"payload,omitempty"`
}

// Results carries what one trial produced. For a benchmark driver the
// interesting part is Metrics; for a verify driver it is Verified and
// Output. A failed trial is recorded with Failed set instead of being
// dropped, so failures stay visible all the way into the plot.
type Results struct {
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Repeats holds the per-repeat metric samples when the driver ran
	// the trial multiple times to stabilize variance.
	Repeats []map[string]float64 `json:"repeats,omitempty"`

	Verified *bool  `json:"verified,omitempty"`
	Output   string `json:"output,omitempty"`

	Failed  bool   `json:"failed,omitempty"`
	Timeout bool   `json:"timeout,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Datapoint is the recorded outcome of exactly one trial: one
// TestParams executed against the referenced dataset.
type Datapoint struct {
	DSParams params.DatasetParams `json:"dsparams"`
	TID      string               `json:"tid"`
	Prog     string               `json:"prog"`
	Fields   params.Fields        `json:"fields,omitempty"`
	Results  Results              `json:"results"`
}

// Datagen enumerates the experiment's dataset matrix and materializes
// datasets. Generate must be deterministic: the same dsparams always
// yields a content-equal dataset.
type Datagen interface {
	DatasetParamsList() ([]params.DatasetParams, error)
	Generate(ctx context.Context, dsp params.DatasetParams) (*Dataset, error)

	// TestParamsList cross-products the dataset matrix with the
	// experiment's trial variation (typically its program list).
	TestParamsList(dsps []params.DatasetParams) ([]params.TestParams, error)
}

// Driver executes one trial of the driven program. Implementations
// must honor ctx cancellation and report per-trial failures as errors;
// the orchestrator records them against the cell and moves on.
//
// A verify driver has the same shape but its Results encode a
// correctness verdict instead of a measurement.
type Driver interface {
	RunTrial(ctx context.Context, tp params.TestParams, ds *Dataset) (*Datapoint, error)
}

// CrossProduct is the default TestParamsList: one trial per (dataset,
// prog) pair, with the trial id reusing the dataset id the way a
// single-trial-per-dataset experiment expects.
func CrossProduct(dsps []params.DatasetParams, progs []string) []params.TestParams {
	tps := make([]params.TestParams, 0, len(dsps)*len(progs))
	for _, prog := range progs {
		for _, dsp := range dsps {
			tps = append(tps, params.TestParams{
				TID:  dsp.DSID,
				DSID: dsp.DSID,
				Prog: prog,
			})
		}
	}
	return tps
}
