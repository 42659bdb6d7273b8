package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	extractOutput string
	extractLegacy bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [experiment.yaml]",
	Short: "Assemble the plot document from cached results",
	Long: `Realizes the series and assembles the plot document from whatever
datapoints are already cached, without running any trials. Lets you
adjust series definitions (colors, formats, polynomial degrees) and
reshape the document cheaply.`,
	Args: cobra.ExactArgs(1),
	RunE: extractDocument,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Write the document JSON here (default stdout)")
	extractCmd.Flags().BoolVar(&extractLegacy, "figure", false, "Emit the single-axes figure shape instead of the document")
}

func extractDocument(cmd *cobra.Command, args []string) error {
	w, store, _, err := buildWorkflow(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	doc, report, err := w.Extract(ctx)
	if err != nil {
		return err
	}
	for id, msg := range report.SeriesErrors {
		fmt.Fprintf(os.Stderr, "series %s: %s\n", id, msg)
	}

	var out any = doc
	if extractLegacy {
		fig, err := doc.ToFigure()
		if err != nil {
			return err
		}
		out = fig
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if extractOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(extractOutput, data, 0o644)
}
