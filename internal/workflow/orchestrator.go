package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brandjon/frexp/internal/artifact"
	"github.com/brandjon/frexp/internal/driver"
	"github.com/brandjon/frexp/internal/experiment"
	"github.com/brandjon/frexp/internal/params"
	"github.com/brandjon/frexp/internal/plotdoc"
)

// runState is the shared mutable state of one orchestration run. The
// ready channels give trial tasks their dataset dependency: a trial
// for dsid may start as soon as the dataset task for dsid has finished
// (successfully or not), without waiting for unrelated datasets.
type runState struct {
	runID string

	mu       sync.Mutex
	datasets map[string]*experiment.Dataset
	dsErrs   map[string]error
	dps      []*experiment.Datapoint

	ready map[string]chan struct{}
}

func newRunState(dsps []params.DatasetParams) *runState {
	st := &runState{
		runID:    uuid.NewString(),
		datasets: make(map[string]*experiment.Dataset, len(dsps)),
		dsErrs:   make(map[string]error),
		ready:    make(map[string]chan struct{}, len(dsps)),
	}
	for _, dsp := range dsps {
		st.ready[dsp.DSID] = make(chan struct{})
	}
	return st
}

// prepare enumerates the experiment matrix and runs the fail-fast
// configuration checks: id collisions and dangling dataset references
// abort before any generation or trial work starts.
func (w *Workflow) prepare() ([]params.DatasetParams, []params.TestParams, map[string]params.DatasetParams, error) {
	dsps, err := w.Datagen.DatasetParamsList()
	if err != nil {
		return nil, nil, nil, &params.ConfigError{Msg: "enumerate dataset params: " + err.Error()}
	}
	registry := params.NewRegistry()
	dspByID := make(map[string]params.DatasetParams, len(dsps))
	for _, dsp := range dsps {
		if err := registry.Observe(dsp.DSID, dsp.Fields); err != nil {
			return nil, nil, nil, err
		}
		dspByID[dsp.DSID] = dsp
	}

	tps, err := w.Datagen.TestParamsList(dsps)
	if err != nil {
		return nil, nil, nil, &params.ConfigError{Msg: "enumerate test params: " + err.Error()}
	}
	seen := make(map[string]bool, len(tps))
	for _, tp := range tps {
		if _, ok := dspByID[tp.DSID]; !ok {
			return nil, nil, nil, &params.ConfigError{
				Msg: "test params " + tp.TID + " references unknown dataset " + tp.DSID,
			}
		}
		key := tp.Key()
		if seen[key] {
			return nil, nil, nil, &params.ConfigError{
				Msg: "duplicate trial cell " + tp.DSID + "/" + tp.Prog + "/" + tp.TID,
			}
		}
		seen[key] = true
	}
	return dsps, tps, dspByID, nil
}

// datasetTask satisfies one dataset: cache hit, or generate and
// persist. Generation failures are recorded per dsid and do not cancel
// the run; store failures do.
func (w *Workflow) datasetTask(ctx context.Context, dsp params.DatasetParams, st *runState, report *Report) error {
	defer close(st.ready[dsp.DSID])

	status := &DatasetStatus{DSID: dsp.DSID}
	st.mu.Lock()
	report.Datasets[dsp.DSID] = status
	st.mu.Unlock()

	if ctx.Err() != nil {
		status.Err = "canceled"
		return nil
	}

	key := artifact.Key{Kind: artifact.KindDataset, ID: dsp.DSID}
	fp := params.Fingerprint(map[string]any(dsp.Fields))

	stale, err := w.Store.Stale(key, fp, w.Policy.ForceRegenDatasets)
	if err != nil {
		return err
	}
	if !stale {
		var ds experiment.Dataset
		if _, err := w.Store.Load(key, &ds); err == nil {
			w.log().Debug("dataset cache hit", zap.String("dsid", dsp.DSID))
			st.mu.Lock()
			st.datasets[dsp.DSID] = &ds
			st.mu.Unlock()
			return nil
		} else if !errors.Is(err, artifact.ErrNotFound) {
			return err
		}
	}

	w.log().Info("generating dataset", zap.String("dsid", dsp.DSID))
	ds, err := w.Datagen.Generate(ctx, dsp)
	if err != nil {
		genErr := &DatasetGenerationError{DSID: dsp.DSID, Err: err}
		w.log().Warn("dataset generation failed",
			zap.String("dsid", dsp.DSID), zap.Error(err))
		st.mu.Lock()
		st.dsErrs[dsp.DSID] = genErr
		st.mu.Unlock()
		status.Err = genErr.Error()
		return nil
	}
	meta := artifact.Meta{Fingerprint: fp, CreatedAt: time.Now(), RunID: st.runID}
	if err := w.Store.Save(key, ds, meta); err != nil {
		return err
	}
	st.mu.Lock()
	st.datasets[dsp.DSID] = ds
	st.mu.Unlock()
	status.Generated = true
	return nil
}

// trialTask satisfies one cell: wait for its dataset, then cache hit
// or drive. Driver failures become persisted failure datapoints; a
// cancellation is never persisted as a result.
func (w *Workflow) trialTask(ctx context.Context, cell *Cell, st *runState, dspByID map[string]params.DatasetParams) error {
	tp := cell.TP

	select {
	case <-st.ready[tp.DSID]:
	case <-ctx.Done():
		cell.Err = "canceled"
		return nil
	}

	st.mu.Lock()
	dsErr := st.dsErrs[tp.DSID]
	ds := st.datasets[tp.DSID]
	st.mu.Unlock()

	if dsErr != nil {
		// Fatal for this cell without running the trial; the failure
		// marker stays in-memory so the next run retries the dataset.
		cell.State = CellTrialFailed
		cell.Err = dsErr.Error()
		st.appendDatapoint(failedDatapoint(tp, dspByID[tp.DSID], dsErr.Error(), false))
		return nil
	}
	if ds == nil {
		// Dataset task was canceled before satisfying this cell.
		cell.Err = "canceled"
		return nil
	}
	cell.State = CellDatasetReady

	if ctx.Err() != nil {
		cell.Err = "canceled"
		return nil
	}

	key := artifact.Key{Kind: artifact.KindDatapoint, ID: tp.Key()}
	fp := datapointFingerprint(tp, ds.DSParams)

	stale, err := w.Store.Stale(key, fp, w.Policy.ForceRerunTrials)
	if err != nil {
		return err
	}
	if !stale {
		var dp experiment.Datapoint
		if _, err := w.Store.Load(key, &dp); err == nil {
			if dp.Results.Failed && w.Policy.RerunFailedOnly {
				w.log().Debug("rerunning failed cell", zap.String("cell", cell.Name()))
			} else {
				cell.Cached = true
				if dp.Results.Failed {
					cell.State = CellTrialFailed
					cell.Err = dp.Results.Error
				} else {
					cell.State = CellTrialReady
				}
				st.appendDatapoint(&dp)
				return nil
			}
		} else if !errors.Is(err, artifact.ErrNotFound) {
			return err
		}
	} else {
		cell.State = CellDatasetStale
	}

	w.log().Info("running trial",
		zap.String("dsid", tp.DSID),
		zap.String("prog", tp.Prog),
		zap.String("tid", tp.TID))

	dp, runErr := w.Driver.RunTrial(ctx, tp, ds)
	if runErr != nil {
		if ctx.Err() != nil {
			cell.Err = "canceled"
			return nil
		}
		var toErr *driver.TimeoutError
		dp = failedDatapoint(tp, ds.DSParams, runErr.Error(), errors.As(runErr, &toErr))
		cell.State = CellTrialFailed
		cell.Err = runErr.Error()
		w.log().Warn("trial failed", zap.String("cell", cell.Name()), zap.Error(runErr))
	} else {
		cell.State = CellTrialReady
	}

	meta := artifact.Meta{Fingerprint: fp, CreatedAt: time.Now(), RunID: st.runID}
	if err := w.Store.Save(key, dp, meta); err != nil {
		return err
	}
	st.appendDatapoint(dp)
	return nil
}

func (st *runState) appendDatapoint(dp *experiment.Datapoint) {
	st.mu.Lock()
	st.dps = append(st.dps, dp)
	st.mu.Unlock()
}

func failedDatapoint(tp params.TestParams, dsp params.DatasetParams, msg string, timeout bool) *experiment.Datapoint {
	return &experiment.Datapoint{
		DSParams: dsp,
		TID:      tp.TID,
		Prog:     tp.Prog,
		Fields:   tp.Fields,
		Results: experiment.Results{
			Failed:  true,
			Timeout: timeout,
			Error:   msg,
		},
	}
}

// runStages executes the dataset and trial stages and leaves the
// collected datapoints in the returned state.
func (w *Workflow) runStages(ctx context.Context) (*runState, *Report, error) {
	dsps, tps, dspByID, err := w.prepare()
	if err != nil {
		return nil, nil, err
	}

	st := newRunState(dsps)
	report := &Report{
		RunID:        st.runID,
		StartedAt:    time.Now(),
		Datasets:     make(map[string]*DatasetStatus, len(dsps)),
		SeriesErrors: make(map[string]string),
	}
	for _, tp := range tps {
		report.Cells = append(report.Cells, &Cell{TP: tp, State: CellPending})
	}

	// Datasets and trials share one errgroup so a fatal store error
	// anywhere cancels everything; per-stage semaphores keep the two
	// pools from starving each other while trials block on readiness.
	g, gctx := errgroup.WithContext(ctx)
	dsSem := make(chan struct{}, w.workers())
	trialSem := make(chan struct{}, w.workers())

	for _, dsp := range dsps {
		dsp := dsp
		g.Go(func() error {
			select {
			case dsSem <- struct{}{}:
				defer func() { <-dsSem }()
			case <-gctx.Done():
				close(st.ready[dsp.DSID])
				return nil
			}
			return w.datasetTask(gctx, dsp, st, report)
		})
	}
	for _, cell := range report.Cells {
		cell := cell
		g.Go(func() error {
			select {
			case trialSem <- struct{}{}:
				defer func() { <-trialSem }()
			case <-gctx.Done():
				cell.Err = "canceled"
				return nil
			}
			return w.trialTask(gctx, cell, st, dspByID)
		})
	}

	if err := g.Wait(); err != nil {
		report.FinishedAt = time.Now()
		return st, report, err
	}
	if err := ctx.Err(); err != nil {
		report.FinishedAt = time.Now()
		return st, report, err
	}
	return st, report, nil
}

// Run executes the full pipeline: datasets, trials, extraction,
// assembly. The returned document is also persisted, in both the
// multi-axes and the legacy single-axes shapes.
func (w *Workflow) Run(ctx context.Context) (*plotdoc.Document, *Report, error) {
	st, report, err := w.runStages(ctx)
	if err != nil {
		return nil, report, err
	}

	// Extraction is a join point: it starts only after every selected
	// cell reached a terminal state.
	doc, err := w.extractAndAssemble(st, report)
	report.FinishedAt = time.Now()
	if err != nil {
		return nil, report, err
	}
	return doc, report, nil
}

// Bench executes datasets and trials only, leaving extraction and
// assembly to a later run or an explicit extract invocation.
func (w *Workflow) Bench(ctx context.Context) (*Report, error) {
	_, report, err := w.runStages(ctx)
	if report != nil && report.FinishedAt.IsZero() {
		report.FinishedAt = time.Now()
	}
	return report, err
}

// Extract realizes the series and assembles the document from cached
// datapoints only; missing or stale cells are simply absent. Useful to
// reshape the document after changing series definitions without
// rerunning trials.
func (w *Workflow) Extract(ctx context.Context) (*plotdoc.Document, *Report, error) {
	dsps, tps, _, err := w.prepare()
	if err != nil {
		return nil, nil, err
	}
	st := newRunState(dsps)
	report := &Report{
		RunID:        st.runID,
		StartedAt:    time.Now(),
		Datasets:     make(map[string]*DatasetStatus, len(dsps)),
		SeriesErrors: make(map[string]string),
	}
	for _, tp := range tps {
		cell := &Cell{TP: tp, State: CellPending}
		report.Cells = append(report.Cells, cell)
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		var dp experiment.Datapoint
		key := artifact.Key{Kind: artifact.KindDatapoint, ID: tp.Key()}
		if _, err := w.Store.Load(key, &dp); err != nil {
			if errors.Is(err, artifact.ErrNotFound) {
				continue
			}
			return nil, report, err
		}
		cell.Cached = true
		if dp.Results.Failed {
			cell.State = CellTrialFailed
			cell.Err = dp.Results.Error
		} else {
			cell.State = CellTrialReady
		}
		st.appendDatapoint(&dp)
	}

	doc, err := w.extractAndAssemble(st, report)
	report.FinishedAt = time.Now()
	if err != nil {
		return nil, report, err
	}
	return doc, report, nil
}

// Generate satisfies the dataset stage only.
func (w *Workflow) Generate(ctx context.Context) (*Report, error) {
	dsps, _, _, err := w.prepare()
	if err != nil {
		return nil, err
	}
	st := newRunState(dsps)
	report := &Report{
		RunID:     st.runID,
		StartedAt: time.Now(),
		Datasets:  make(map[string]*DatasetStatus, len(dsps)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers())
	for _, dsp := range dsps {
		dsp := dsp
		g.Go(func() error {
			return w.datasetTask(gctx, dsp, st, report)
		})
	}
	err = g.Wait()
	report.FinishedAt = time.Now()
	if err != nil {
		return report, err
	}
	return report, nil
}

// extractAndAssemble realizes every series over the collected
// datapoints and shapes the plot document. Per-series extraction
// failures are recorded and the remaining series still render.
func (w *Workflow) extractAndAssemble(st *runState, report *Report) (*plotdoc.Document, error) {
	// Concurrency makes collection order nondeterministic; restore a
	// stable order so unchanged inputs produce an identical document.
	sort.Slice(st.dps, func(i, j int) bool {
		a, b := st.dps[i], st.dps[j]
		if a.DSParams.DSID != b.DSParams.DSID {
			return a.DSParams.DSID < b.DSParams.DSID
		}
		if a.Prog != b.Prog {
			return a.Prog < b.Prog
		}
		return a.TID < b.TID
	})

	var series []plotdoc.Series
	for _, desc := range w.Extractor.Series() {
		data, err := w.Extractor.SeriesData(desc.ID, st.dps)
		if err != nil {
			w.log().Warn("series extraction failed",
				zap.String("series", desc.ID), zap.Error(err))
			report.SeriesErrors[desc.ID] = err.Error()
			continue
		}
		series = append(series, plotdoc.Series{
			Name:          desc.Name,
			Style:         desc.Style,
			Color:         desc.Color,
			ErrorBars:     desc.ErrorBars,
			Format:        desc.Format,
			HollowMarkers: desc.HollowMarkers,
			Data:          data,
		})
	}
	for _, cell := range report.Cells {
		if cell.State == CellTrialReady {
			cell.State = CellExtracted
		}
	}

	doc := w.Assembler.Build(series, report.annotations())

	meta := artifact.Meta{
		Fingerprint: params.Fingerprint(doc),
		CreatedAt:   time.Now(),
		RunID:       st.runID,
	}
	docKey := artifact.Key{Kind: artifact.KindPlotDoc, ID: w.Name}
	if err := w.Store.Save(docKey, doc, meta); err != nil {
		return nil, err
	}
	if fig, err := doc.ToFigure(); err == nil {
		figKey := artifact.Key{Kind: artifact.KindFigure, ID: w.Name}
		if err := w.Store.Save(figKey, fig, meta); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
