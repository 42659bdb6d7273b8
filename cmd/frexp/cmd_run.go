package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brandjon/frexp/internal/render"
	"github.com/brandjon/frexp/internal/workflow"
)

var (
	runForceDatasets bool
	runForceTrials   bool
	runRetryFailed   bool
	runRender        bool
	runOutput        string
)

var runCmd = &cobra.Command{
	Use:   "run [experiment.yaml]",
	Short: "Run the full pipeline: datasets, trials, extraction, document",
	Long: `Runs the experiment end to end. Datasets and trial results are cached;
unchanged cells are reused and only stale or missing work is redone.

Example:
  frexp run experiments/scaling.yaml --render`,
	Args: cobra.ExactArgs(1),
	RunE: runExperiment,
}

func init() {
	runCmd.Flags().BoolVar(&runForceDatasets, "force-datasets", false, "Regenerate all datasets")
	runCmd.Flags().BoolVar(&runForceTrials, "force-trials", false, "Rerun all trials")
	runCmd.Flags().BoolVar(&runRetryFailed, "retry-failed", false, "Rerun only cells whose cached result is a failure")
	runCmd.Flags().BoolVar(&runRender, "render", false, "Render the document to a PNG after the run")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "PNG output path (default <output_dir>/<name>.png)")
}

func runExperiment(cmd *cobra.Command, args []string) error {
	w, store, cfg, err := buildWorkflow(args[0])
	if err != nil {
		return err
	}
	defer store.Close()
	w.Policy = workflow.Policy{
		ForceRegenDatasets: runForceDatasets,
		ForceRerunTrials:   runForceTrials,
		RerunFailedOnly:    runRetryFailed,
	}

	ctx, cancel := signalContext()
	defer cancel()

	doc, report, err := w.Run(ctx)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}

	fmt.Printf("document: %s (%d series)\n", w.Name, len(doc.Axes[0].Series))
	if runRender {
		out := runOutput
		if out == "" {
			out = filepath.Join(cfg.OutputDir, w.Name+".png")
		}
		if err := render.Document(doc, out); err != nil {
			return err
		}
		fmt.Printf("rendered: %s\n", out)
	}
	return nil
}
