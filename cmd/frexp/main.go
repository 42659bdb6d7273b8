package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brandjon/frexp/internal/artifact"
	"github.com/brandjon/frexp/internal/config"
	"github.com/brandjon/frexp/internal/experiment"
	"github.com/brandjon/frexp/internal/workflow"
)

var (
	// Global flags
	verbose      bool
	cfgPath      string
	storeBackend string
	storeRoot    string
	workers      int

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "frexp",
	Short: "frexp - benchmark experiment pipeline",
	Long: `frexp runs benchmark experiments end to end: it generates datasets,
drives the programs under test across the full parameter matrix, extracts
timing series, and assembles a plot document ready for rendering.

Artifacts are cached between runs; only work whose inputs changed is redone.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "frexp.yaml", "Tool config file")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store-backend", "", "Artifact store backend: fs or sqlite (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storeRoot, "store", "", "Artifact store location (overrides config)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Concurrent dataset/trial workers (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the tool config and folds in the global flag
// overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if storeBackend != "" {
		cfg.Store.Backend = storeBackend
	}
	if storeRoot != "" {
		cfg.Store.Root = storeRoot
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildWorkflow loads the experiment definition and wires it to the
// artifact store. The caller closes the returned store.
func buildWorkflow(specPath string) (*workflow.Workflow, artifact.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	spec, err := experiment.LoadSpec(specPath)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := artifact.Open(cfg.Store.Backend, cfg.Store.Root)
	if err != nil {
		return nil, nil, nil, err
	}
	return workflow.FromSpec(spec, cfg, store, logger), store, cfg, nil
}

// signalContext cancels on SIGINT/SIGTERM so in-flight trials stop and
// fresh cached artifacts stay intact.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// printReport summarizes a run on stdout.
func printReport(report *workflow.Report) {
	generated, hits := 0, 0
	for _, st := range report.Datasets {
		if st.Generated {
			generated++
		} else if st.Err == "" {
			hits++
		}
	}
	cached, ran, failed := 0, 0, 0
	for _, cell := range report.Cells {
		switch {
		case cell.State == workflow.CellTrialFailed:
			failed++
		case cell.Cached:
			cached++
		default:
			ran++
		}
	}
	fmt.Printf("datasets: %d generated, %d cached\n", generated, hits)
	if len(report.Cells) > 0 {
		fmt.Printf("trials:   %d run, %d cached, %d failed\n", ran, cached, failed)
	}
	for _, name := range report.FailedCells() {
		fmt.Printf("  failed: %s\n", name)
	}
	for id, msg := range report.SeriesErrors {
		fmt.Printf("  series %s: %s\n", id, msg)
	}
	fmt.Printf("elapsed:  %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
