package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brandjon/frexp/internal/artifact"
)

var cleanKind string

var cleanCmd = &cobra.Command{
	Use:   "clean [experiment.yaml]",
	Short: "Delete cached artifacts for an experiment",
	Long: `Deletes the experiment's cached artifacts: its datasets, trial
results, and assembled documents. Restrict to one kind with --kind.`,
	Args: cobra.ExactArgs(1),
	RunE: cleanArtifacts,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanKind, "kind", "", "Only this artifact kind: dataset, datapoint, plotdoc, figure")
}

func cleanArtifacts(cmd *cobra.Command, args []string) error {
	w, store, _, err := buildWorkflow(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	dsps, err := w.Datagen.DatasetParamsList()
	if err != nil {
		return err
	}
	tps, err := w.Datagen.TestParamsList(dsps)
	if err != nil {
		return err
	}

	var keys []artifact.Key
	for _, dsp := range dsps {
		keys = append(keys, artifact.Key{Kind: artifact.KindDataset, ID: dsp.DSID})
	}
	for _, tp := range tps {
		keys = append(keys, artifact.Key{Kind: artifact.KindDatapoint, ID: tp.Key()})
	}
	keys = append(keys,
		artifact.Key{Kind: artifact.KindPlotDoc, ID: w.Name},
		artifact.Key{Kind: artifact.KindFigure, ID: w.Name})

	deleted := 0
	for _, key := range keys {
		if cleanKind != "" && string(key.Kind) != cleanKind {
			continue
		}
		ok, err := store.Exists(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := store.Delete(key); err != nil {
			return err
		}
		deleted++
	}
	fmt.Printf("deleted %d artifacts\n", deleted)
	return nil
}
