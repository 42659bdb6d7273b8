package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brandjon/frexp/internal/render"
	"github.com/brandjon/frexp/internal/watch"
)

var watchRender bool

var watchCmd = &cobra.Command{
	Use:   "watch [experiment.yaml...]",
	Short: "Rerun experiments whenever their definitions change",
	Long: `Watches the given experiment definitions and reruns the full pipeline
when one changes. Caching keeps reruns cheap: only cells affected by
the edit are redone.`,
	Args: cobra.MinimumNArgs(1),
	RunE: watchExperiments,
}

func init() {
	watchCmd.Flags().BoolVar(&watchRender, "render", false, "Render after each rerun")
}

func watchExperiments(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	rerun := func(ctx context.Context, path string) {
		w, store, cfg, err := buildWorkflow(path)
		if err != nil {
			logger.Error("reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		defer store.Close()

		doc, report, err := w.Run(ctx)
		if report != nil {
			printReport(report)
		}
		if err != nil {
			logger.Error("run failed", zap.String("path", path), zap.Error(err))
			return
		}
		if watchRender {
			out := cfg.OutputDir + "/" + w.Name + ".png"
			if err := render.Document(doc, out); err != nil {
				logger.Error("render failed", zap.String("path", out), zap.Error(err))
				return
			}
			fmt.Printf("rendered: %s\n", out)
		}
	}

	w, err := watch.New(args, rerun, logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	// Initial run for every definition, then wait for changes.
	for _, path := range args {
		rerun(ctx, path)
	}
	fmt.Println("watching for changes (ctrl-c to stop)")
	<-ctx.Done()
	return nil
}
