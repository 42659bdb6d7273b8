package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/brandjon/frexp/internal/experiment"
	"github.com/brandjon/frexp/internal/params"
)

// GenCommand wraps a Datagen so dataset payloads are materialized by
// an external generator program instead of copied from the parameter
// fields. The generator receives the dataset fields as JSON on stdin
// and prints the payload JSON on stdout; it must be deterministic for
// a given field set.
type GenCommand struct {
	Inner   experiment.Datagen
	Command []string
	Timeout time.Duration
	Log     *zap.Logger
}

func (g *GenCommand) DatasetParamsList() ([]params.DatasetParams, error) {
	return g.Inner.DatasetParamsList()
}

func (g *GenCommand) TestParamsList(dsps []params.DatasetParams) ([]params.TestParams, error) {
	return g.Inner.TestParamsList(dsps)
}

func (g *GenCommand) Generate(ctx context.Context, dsp params.DatasetParams) (*experiment.Dataset, error) {
	if len(g.Command) == 0 {
		return g.Inner.Generate(ctx, dsp)
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if g.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	input, err := json.Marshal(map[string]any(dsp.Fields))
	if err != nil {
		return nil, fmt.Errorf("driver: encode dataset fields: %w", err)
	}

	if g.Log != nil {
		g.Log.Debug("generating dataset",
			zap.String("dsid", dsp.DSID),
			zap.Strings("argv", g.Command))
	}

	cmd := exec.CommandContext(execCtx, g.Command[0], g.Command[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("driver: generator for %s: %w (stderr: %s)",
			dsp.DSID, err, tail(stderr.String(), 512))
	}

	var payload map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("driver: generator for %s produced malformed payload: %w", dsp.DSID, err)
	}
	return &experiment.Dataset{DSParams: dsp, Payload: payload}, nil
}
