package workflow

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brandjon/frexp/internal/params"
)

// VerifyMismatch records two programs disagreeing on the same trial
// input. GoalProg is the first program in definition order; it sets
// the expected output for the group.
type VerifyMismatch struct {
	TID      string
	GoalProg string
	Prog     string
	Expected string
	Got      string
}

// VerifyReport summarizes a cross-program output comparison.
type VerifyReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Groups     int
	Checked    int
	Mismatches []VerifyMismatch
	Failures   []string // cells whose verify trial could not run
}

func (r *VerifyReport) OK() bool {
	return len(r.Mismatches) == 0 && len(r.Failures) == 0
}

// Verify runs every program in verify mode over the shared inputs and
// compares their captured outputs per trial id. Datasets are satisfied
// first, through the same cache the benchmark stage uses. Requires a
// Verifier driver; trial timings are ignored and nothing from this
// pass is persisted as a datapoint.
func (w *Workflow) Verify(ctx context.Context) (*VerifyReport, error) {
	if w.Verifier == nil {
		return nil, &params.ConfigError{Msg: "workflow " + w.Name + " has no verifier driver"}
	}

	dsps, tps, _, err := w.prepare()
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
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vr := &VerifyReport{RunID: st.runID, StartedAt: report.StartedAt}

	// Group by trial id: members share inputs and should agree.
	groups := make(map[string][]params.TestParams)
	for _, tp := range tps {
		groups[tp.TID] = append(groups[tp.TID], tp)
	}
	tids := make([]string, 0, len(groups))
	for tid := range groups {
		tids = append(tids, tid)
	}
	sort.Strings(tids)
	vr.Groups = len(tids)

	type groupResult struct {
		mismatches []VerifyMismatch
		failures   []string
		checked    int
	}
	results := make([]groupResult, len(tids))

	vg, vctx := errgroup.WithContext(ctx)
	vg.SetLimit(w.workers())
	for i, tid := range tids {
		i, tid := i, tid
		vg.Go(func() error {
			res := &results[i]
			var goalProg, goalOut string
			for _, tp := range groups[tid] {
				if vctx.Err() != nil {
					return vctx.Err()
				}
				st.mu.Lock()
				ds := st.datasets[tp.DSID]
				dsErr := st.dsErrs[tp.DSID]
				st.mu.Unlock()
				if ds == nil {
					msg := "dataset unavailable"
					if dsErr != nil {
						msg = dsErr.Error()
					}
					res.failures = append(res.failures, cellName(tp)+": "+msg)
					continue
				}
				dp, err := w.Verifier.RunTrial(vctx, tp, ds)
				if err != nil {
					res.failures = append(res.failures, cellName(tp)+": "+err.Error())
					continue
				}
				res.checked++
				if goalProg == "" {
					goalProg, goalOut = tp.Prog, dp.Results.Output
					continue
				}
				if dp.Results.Output != goalOut {
					w.log().Warn("verify mismatch",
						zap.String("tid", tid),
						zap.String("goal", goalProg),
						zap.String("prog", tp.Prog))
					res.mismatches = append(res.mismatches, VerifyMismatch{
						TID:      tid,
						GoalProg: goalProg,
						Prog:     tp.Prog,
						Expected: goalOut,
						Got:      dp.Results.Output,
					})
				}
			}
			return nil
		})
	}
	if err := vg.Wait(); err != nil {
		return nil, err
	}

	for _, res := range results {
		vr.Mismatches = append(vr.Mismatches, res.mismatches...)
		vr.Failures = append(vr.Failures, res.failures...)
		vr.Checked += res.checked
	}
	vr.FinishedAt = time.Now()
	return vr, nil
}

func cellName(tp params.TestParams) string {
	return tp.DSID + "/" + tp.Prog + "/" + tp.TID
}
