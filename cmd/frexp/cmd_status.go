package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brandjon/frexp/internal/artifact"
	"github.com/brandjon/frexp/internal/experiment"
	"github.com/brandjon/frexp/internal/params"
)

var statusCmd = &cobra.Command{
	Use:   "status [experiment.yaml]",
	Short: "Show cache state for every dataset and trial cell",
	Args:  cobra.ExactArgs(1),
	RunE:  showStatus,
}

func showStatus(cmd *cobra.Command, args []string) error {
	w, store, _, err := buildWorkflow(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	dsps, err := w.Datagen.DatasetParamsList()
	if err != nil {
		return err
	}

	fmt.Println("datasets:")
	for _, dsp := range dsps {
		key := artifact.Key{Kind: artifact.KindDataset, ID: dsp.DSID}
		stale, err := store.Stale(key, params.Fingerprint(map[string]any(dsp.Fields)), false)
		if err != nil {
			return err
		}
		state := "fresh"
		if stale {
			if ok, _ := store.Exists(key); ok {
				state = "stale"
			} else {
				state = "missing"
			}
		}
		fmt.Printf("  %-20s %s\n", dsp.DSID, state)
	}

	tps, err := w.Datagen.TestParamsList(dsps)
	if err != nil {
		return err
	}
	fmt.Println("trials:")
	for _, tp := range tps {
		key := artifact.Key{Kind: artifact.KindDatapoint, ID: tp.Key()}
		var dp experiment.Datapoint
		state := "cached"
		if _, err := store.Load(key, &dp); err != nil {
			if !errors.Is(err, artifact.ErrNotFound) {
				return err
			}
			state = "missing"
		} else if dp.Results.Failed {
			state = "failed"
		}
		fmt.Printf("  %-20s %-10s %s\n", tp.DSID, tp.Prog, state)
	}

	if ok, _ := store.Exists(artifact.Key{Kind: artifact.KindPlotDoc, ID: w.Name}); ok {
		fmt.Printf("document: stored (%s)\n", w.Name)
	} else {
		fmt.Println("document: missing")
	}
	return nil
}
