package main

import (
	"github.com/spf13/cobra"

	"github.com/brandjon/frexp/internal/workflow"
)

var genForce bool

var generateCmd = &cobra.Command{
	Use:   "generate [experiment.yaml]",
	Short: "Generate (or refresh) the experiment's datasets only",
	Args:  cobra.ExactArgs(1),
	RunE:  generateDatasets,
}

func init() {
	generateCmd.Flags().BoolVar(&genForce, "force", false, "Regenerate even when cached datasets are fresh")
}

func generateDatasets(cmd *cobra.Command, args []string) error {
	w, store, _, err := buildWorkflow(args[0])
	if err != nil {
		return err
	}
	defer store.Close()
	w.Policy = workflow.Policy{ForceRegenDatasets: genForce}

	ctx, cancel := signalContext()
	defer cancel()

	report, err := w.Generate(ctx)
	if report != nil {
		printReport(report)
	}
	return err
}
