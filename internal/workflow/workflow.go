// Package workflow is the orchestration core. It sequences dataset
// generation, trial execution and extraction across the full matrix of
// dataset params x test params, decides per cell whether cached
// artifacts are still valid, runs independent cells concurrently, and
// assembles the terminal plot document with failures kept visible.
package workflow

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/brandjon/frexp/internal/artifact"
	"github.com/brandjon/frexp/internal/experiment"
	"github.com/brandjon/frexp/internal/extract"
	"github.com/brandjon/frexp/internal/params"
	"github.com/brandjon/frexp/internal/plotdoc"
)

// Policy selects which staleness checks are overridden for one run.
// The flags gate the checks; they are never hardcoded into the stages.
type Policy struct {
	// ForceRegenDatasets regenerates every dataset regardless of
	// fingerprint freshness.
	ForceRegenDatasets bool

	// ForceRerunTrials reruns every trial regardless of freshness.
	ForceRerunTrials bool

	// RerunFailedOnly reruns cells whose cached datapoint is a
	// recorded failure. Without it, recorded failures are cache hits
	// like any other artifact.
	RerunFailedOnly bool
}

// CellState tracks one (dataset params, test params) cell through the
// pipeline.
type CellState string

const (
	CellPending      CellState = "PENDING"
	CellDatasetReady CellState = "DATASET_READY"
	CellDatasetStale CellState = "DATASET_STALE"
	CellTrialReady   CellState = "TRIAL_READY"
	CellTrialFailed  CellState = "TRIAL_FAILED"
	CellExtracted    CellState = "EXTRACTED"
)

// Cell is the per-trial record in the run report.
type Cell struct {
	TP     params.TestParams
	State  CellState
	Cached bool   // satisfied from the artifact store
	Err    string // set when State is CellTrialFailed
}

// Name identifies the cell in report annotations.
func (c *Cell) Name() string {
	return fmt.Sprintf("%s/%s/%s", c.TP.DSID, c.TP.Prog, c.TP.TID)
}

// DatasetStatus records how one dataset was satisfied.
type DatasetStatus struct {
	DSID      string
	Generated bool // false means cache hit
	Err       string
}

// Report is the user-visible account of a run: which datasets were
// generated vs reused, how every cell ended, and which series failed
// extraction. Failed cells are never silently dropped.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Datasets     map[string]*DatasetStatus
	Cells        []*Cell
	SeriesErrors map[string]string
}

// FailedCells returns the names of cells that ended in failure,
// sorted for deterministic output.
func (r *Report) FailedCells() []string {
	var out []string
	for _, c := range r.Cells {
		if c.State == CellTrialFailed {
			out = append(out, c.Name())
		}
	}
	sort.Strings(out)
	return out
}

// annotations builds the failure markers merged into the plot document
// config. Run-specific identifiers stay out so an unchanged experiment
// reproduces a content-identical document.
func (r *Report) annotations() map[string]any {
	ann := map[string]any{}
	if failed := r.FailedCells(); len(failed) > 0 {
		ann["failed_cells"] = failed
	}
	if len(r.SeriesErrors) > 0 {
		ids := make([]string, 0, len(r.SeriesErrors))
		for id := range r.SeriesErrors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		m := make(map[string]any, len(ids))
		for _, id := range ids {
			m[id] = r.SeriesErrors[id]
		}
		ann["failed_series"] = m
	}
	return ann
}

// Workflow groups the four collaborator instances with the store,
// rerun policy and execution knobs. Constructed once per experiment
// and passed explicitly; there is no ambient lookup.
type Workflow struct {
	Name string

	Datagen   experiment.Datagen
	Driver    experiment.Driver
	Verifier  experiment.Driver // optional
	Extractor extract.Extractor
	Assembler plotdoc.Assembler

	Store  artifact.Store
	Policy Policy

	// Workers bounds concurrent dataset and trial tasks (each stage
	// gets its own pool). Zero means a sensible default.
	Workers int

	Log *zap.Logger
}

func (w *Workflow) workers() int {
	if w.Workers > 0 {
		return w.Workers
	}
	return 4
}

func (w *Workflow) log() *zap.Logger {
	if w.Log != nil {
		return w.Log
	}
	return zap.NewNop()
}

// DatasetGenerationError marks a dataset that could not be
// materialized. Fatal for every cell referencing its dsid; sibling
// dsids proceed.
type DatasetGenerationError struct {
	DSID string
	Err  error
}

func (e *DatasetGenerationError) Error() string {
	return fmt.Sprintf("workflow: generate dataset %s: %v", e.DSID, e.Err)
}

func (e *DatasetGenerationError) Unwrap() error { return e.Err }

// datapointFingerprint folds the trial parameters together with the
// producing dataset's parameter content, so a dataset change
// invalidates every dependent datapoint even when ids are unchanged.
func datapointFingerprint(tp params.TestParams, dsp params.DatasetParams) string {
	return params.Fingerprint(map[string]any{
		"tid":       tp.TID,
		"dsid":      tp.DSID,
		"prog":      tp.Prog,
		"fields":    map[string]any(tp.Fields),
		"ds_fields": map[string]any(dsp.Fields),
	})
}
