package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [experiment.yaml]",
	Short: "Check that all programs agree on the same inputs",
	Long: `Runs every program in verification mode over the shared datasets and
compares their outputs per trial. The first program in the definition
sets the expected output. Exits nonzero on any disagreement.`,
	Args: cobra.ExactArgs(1),
	RunE: verifyExperiment,
}

func verifyExperiment(cmd *cobra.Command, args []string) error {
	w, store, _, err := buildWorkflow(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	vr, err := w.Verify(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("verified: %d trials across %d groups\n", vr.Checked, vr.Groups)
	for _, f := range vr.Failures {
		fmt.Printf("  error: %s\n", f)
	}
	for _, m := range vr.Mismatches {
		fmt.Printf("  mismatch %s: %s said %q, %s said %q\n",
			m.TID, m.GoalProg, m.Expected, m.Prog, m.Got)
	}
	if !vr.OK() {
		return fmt.Errorf("verification failed: %d mismatches, %d errors",
			len(vr.Mismatches), len(vr.Failures))
	}
	fmt.Println("all programs agree")
	return nil
}
