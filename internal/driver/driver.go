// Package driver executes trials of the driven program. The exec
// driver spawns one process per trial, hands it the dataset and trial
// parameters as JSON on stdin, and reads a JSON results object from
// stdout. A hang is converted into a recorded per-trial timeout
// instead of blocking the pipeline.
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/brandjon/frexp/internal/experiment"
	"github.com/brandjon/frexp/internal/params"
)

// ExecError reports a driven-program failure: crash, non-zero exit,
// or malformed output. Local to one cell; never fatal for the run.
type ExecError struct {
	Prog     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("driver: %s failed (exit %d): %v", e.Prog, e.ExitCode, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// TimeoutError reports a trial that exceeded its wall-clock budget.
type TimeoutError struct {
	Prog    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("driver: %s timed out after %s", e.Prog, e.Timeout)
}

// RepeatPolicy controls repeating a trial until its variance settles,
// the way long-running benchmark suites stabilize noisy measurements.
// A zero StddevWindow disables repeating.
type RepeatPolicy struct {
	MinRepeats   int
	MaxRepeats   int
	StddevWindow float64 // stop once stddev/mean falls within this fraction
	YLimit       float64 // below this mean, variance is not worth chasing
	Metric       string  // metric driving convergence, default "time"
}

func (p RepeatPolicy) enabled() bool { return p.StddevWindow > 0 && p.MaxRepeats > 1 }

// trialRequest is the JSON handed to the driven program on stdin.
type trialRequest struct {
	Prog    string         `json:"prog"`
	Dataset map[string]any `json:"dataset"`
	Fields  map[string]any `json:"fields,omitempty"`
	Verify  bool           `json:"verify,omitempty"`
}

// trialResponse is the JSON expected back on stdout.
type trialResponse struct {
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Verified *bool              `json:"verified,omitempty"`
	Output   string             `json:"output,omitempty"`
}

// ExecDriver runs the driven program as a subprocess, one invocation
// per trial (or per repeat). Implements experiment.Driver.
type ExecDriver struct {
	// Commands maps a prog name to its argv.
	Commands map[string][]string

	// Timeout bounds one invocation; zero means no bound.
	Timeout time.Duration

	Repeats RepeatPolicy

	// Verify switches the request into verification mode; the
	// response then carries a verdict instead of measurements.
	Verify bool

	Log *zap.Logger
}

// NewExecDriver builds a benchmark driver over the given prog commands.
func NewExecDriver(commands map[string][]string, timeout time.Duration, repeats RepeatPolicy, log *zap.Logger) *ExecDriver {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecDriver{Commands: commands, Timeout: timeout, Repeats: repeats, Log: log}
}

// NewVerifyDriver builds the verification variant over the same
// command set. Same shape as the benchmark driver, differing only in
// downstream interpretation of the results.
func NewVerifyDriver(commands map[string][]string, timeout time.Duration, log *zap.Logger) *ExecDriver {
	d := NewExecDriver(commands, timeout, RepeatPolicy{}, log)
	d.Verify = true
	return d
}

func (d *ExecDriver) RunTrial(ctx context.Context, tp params.TestParams, ds *experiment.Dataset) (*experiment.Datapoint, error) {
	argv, ok := d.Commands[tp.Prog]
	if !ok || len(argv) == 0 {
		return nil, &params.ConfigError{Msg: fmt.Sprintf("no command for program %q", tp.Prog)}
	}

	resp, repeats, err := d.runConverging(ctx, tp, ds, argv)
	if err != nil {
		return nil, err
	}

	res := experiment.Results{
		Metrics:  resp.Metrics,
		Verified: resp.Verified,
		Output:   resp.Output,
		Repeats:  repeats,
	}
	return &experiment.Datapoint{
		DSParams: ds.DSParams,
		TID:      tp.TID,
		Prog:     tp.Prog,
		Fields:   tp.Fields,
		Results:  res,
	}, nil
}

// runConverging invokes the program once, then keeps repeating while
// the repeat policy asks for more samples. The returned response
// carries per-metric means; repeats holds the raw samples.
func (d *ExecDriver) runConverging(ctx context.Context, tp params.TestParams, ds *experiment.Dataset, argv []string) (*trialResponse, []map[string]float64, error) {
	first, err := d.invoke(ctx, tp, ds, argv)
	if err != nil {
		return nil, nil, err
	}
	if d.Verify || !d.Repeats.enabled() {
		return first, nil, nil
	}

	metric := d.Repeats.Metric
	if metric == "" {
		metric = "time"
	}
	samples := []map[string]float64{first.Metrics}
	series := []float64{first.Metrics[metric]}

	for len(series) < d.Repeats.MaxRepeats {
		if len(series) >= d.Repeats.MinRepeats && stabilized(series, d.Repeats) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		resp, err := d.invoke(ctx, tp, ds, argv)
		if err != nil {
			return nil, nil, err
		}
		samples = append(samples, resp.Metrics)
		series = append(series, resp.Metrics[metric])
	}
	if !stabilized(series, d.Repeats) && len(series) >= d.Repeats.MaxRepeats {
		d.Log.Warn("trial did not converge",
			zap.String("prog", tp.Prog),
			zap.String("tid", tp.TID),
			zap.Float64("mean", stat.Mean(series, nil)),
			zap.Float64("stddev", stat.StdDev(series, nil)))
	}

	merged := &trialResponse{Metrics: meanMetrics(samples)}
	return merged, samples, nil
}

func stabilized(series []float64, p RepeatPolicy) bool {
	if len(series) < 2 {
		return false
	}
	mean := stat.Mean(series, nil)
	if mean < p.YLimit {
		return true
	}
	if mean <= 0 {
		return true
	}
	return stat.StdDev(series, nil)/mean <= p.StddevWindow
}

func meanMetrics(samples []map[string]float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range samples {
		for k, v := range s {
			sums[k] += v
			counts[k]++
		}
	}
	out := make(map[string]float64, len(sums))
	for k, sum := range sums {
		out[k] = sum / float64(counts[k])
	}
	return out
}

// invoke runs one subprocess and parses its response.
func (d *ExecDriver) invoke(ctx context.Context, tp params.TestParams, ds *experiment.Dataset, argv []string) (*trialResponse, error) {
	execCtx := ctx
	var cancel context.CancelFunc
	if d.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	req := trialRequest{
		Prog:    tp.Prog,
		Dataset: ds.Payload,
		Fields:  tp.Fields,
		Verify:  d.Verify,
	}
	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("driver: encode request: %w", err)
	}

	d.Log.Debug("running trial",
		zap.String("prog", tp.Prog),
		zap.String("tid", tp.TID),
		zap.Strings("argv", argv))

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if execCtx.Err() == context.DeadlineExceeded {
		return nil, &TimeoutError{Prog: tp.Prog, Timeout: d.Timeout}
	}
	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &ExecError{
			Prog:     tp.Prog,
			ExitCode: exitCode,
			Stderr:   tail(stderr.String(), 1024),
			Err:      runErr,
		}
	}

	var resp trialResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, &ExecError{
			Prog:     tp.Prog,
			ExitCode: 0,
			Stderr:   tail(stderr.String(), 1024),
			Err:      fmt.Errorf("malformed output: %w", err),
		}
	}
	return &resp, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
