package main

import (
	"github.com/spf13/cobra"

	"github.com/brandjon/frexp/internal/workflow"
)

var (
	benchForceTrials bool
	benchRetryFailed bool
)

var benchCmd = &cobra.Command{
	Use:   "bench [experiment.yaml]",
	Short: "Run datasets and trials without assembling the document",
	Long: `Runs the measurement stages only. Useful for filling the cache on a
benchmark machine before extracting and rendering elsewhere.`,
	Args: cobra.ExactArgs(1),
	RunE: benchExperiment,
}

func init() {
	benchCmd.Flags().BoolVar(&benchForceTrials, "force", false, "Rerun all trials")
	benchCmd.Flags().BoolVar(&benchRetryFailed, "retry-failed", false, "Rerun only cells whose cached result is a failure")
}

func benchExperiment(cmd *cobra.Command, args []string) error {
	w, store, _, err := buildWorkflow(args[0])
	if err != nil {
		return err
	}
	defer store.Close()
	w.Policy = workflow.Policy{
		ForceRerunTrials: benchForceTrials,
		RerunFailedOnly:  benchRetryFailed,
	}

	ctx, cancel := signalContext()
	defer cancel()

	report, err := w.Bench(ctx)
	if report != nil {
		printReport(report)
	}
	return err
}
