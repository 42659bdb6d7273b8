package workflow

import (
	"go.uber.org/zap"

	"github.com/brandjon/frexp/internal/artifact"
	"github.com/brandjon/frexp/internal/config"
	"github.com/brandjon/frexp/internal/driver"
	"github.com/brandjon/frexp/internal/experiment"
	"github.com/brandjon/frexp/internal/extract"
	"github.com/brandjon/frexp/internal/plotdoc"
)

// FromSpec compiles an experiment definition into a runnable Workflow:
// the matrix datagen (wrapped with the generate command when one is
// named), the exec benchmark and verify drivers, the series extractor
// and the document assembler. The caller owns the store lifecycle.
func FromSpec(spec *experiment.Spec, cfg *config.Config, store artifact.Store, log *zap.Logger) *Workflow {
	commands := make(map[string][]string, len(spec.Programs))
	verifyCommands := make(map[string][]string, len(spec.Programs))
	for _, p := range spec.Programs {
		commands[p.Name] = p.Command
		if len(p.Verify) > 0 {
			verifyCommands[p.Name] = p.Verify
		} else {
			verifyCommands[p.Name] = p.Command
		}
	}

	var datagen experiment.Datagen = &experiment.MatrixDatagen{Spec: spec}
	if len(spec.Generate) > 0 {
		datagen = &driver.GenCommand{
			Inner:   datagen,
			Command: spec.Generate,
			Timeout: cfg.Trial.Timeout,
			Log:     log,
		}
	}

	repeats := driver.RepeatPolicy{
		MinRepeats:   cfg.Trial.MinRepeats,
		MaxRepeats:   cfg.Trial.MaxRepeats,
		StddevWindow: cfg.Trial.StddevWindow,
		YLimit:       cfg.Trial.YLimit,
	}

	descriptors := make([]extract.SeriesDescriptor, len(spec.Series))
	for i, ss := range spec.Series {
		metric := ss.Metric
		if metric == "" {
			metric = "time"
		}
		descriptors[i] = extract.SeriesDescriptor{
			ID:            ss.Name,
			Name:          ss.Name,
			Color:         ss.Color,
			Style:         styleOf(ss),
			Format:        ss.Format,
			ErrorBars:     ss.ErrorBars,
			HollowMarkers: ss.HollowMarkers,
			Match:         extract.MatchProg(ss.Prog, ss.Match),
			Y:             extract.MetricY(metric),
			AllPoints:     ss.AllPoints,
			DiscardRatio:  ss.DiscardRatio,
		}
	}

	return &Workflow{
		Name:    spec.Name,
		Datagen: datagen,
		Driver:   driver.NewExecDriver(commands, cfg.Trial.Timeout, repeats, log),
		Verifier: driver.NewVerifyDriver(verifyCommands, cfg.Trial.Timeout, log),
		Extractor: &extract.TableExtractor{Descriptors: descriptors},
		Assembler: plotdoc.Assembler{
			Title:  spec.Title,
			XLabel: spec.XLabel,
			YLabel: spec.YLabel,
			LogX:   spec.LogX,
			LogY:   spec.LogY,
			Config: spec.Config,
		},
		Store:   store,
		Workers: cfg.Workers,
		Log:     log,
	}
}

// styleOf folds the definition's linestyle and marker into the compact
// style string the document schema carries, e.g. "-o" or "--s".
func styleOf(ss experiment.SeriesSpec) string {
	style := ss.LineStyle
	if style == "" && ss.Marker == "" {
		return ""
	}
	if style == "" && ss.Format != "points" {
		style = "-"
	}
	return style + ss.Marker
}
