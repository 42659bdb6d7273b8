package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brandjon/frexp/internal/artifact"
	"github.com/brandjon/frexp/internal/plotdoc"
	"github.com/brandjon/frexp/internal/render"
)

var renderOutput string

var renderCmd = &cobra.Command{
	Use:   "render [experiment.yaml | document.json]",
	Short: "Render a plot document to PNG",
	Long: `Renders the experiment's stored plot document, or a document/figure
JSON file produced by extract. Both the multi-axes document shape and
the single-axes figure shape are accepted.`,
	Args: cobra.ExactArgs(1),
	RunE: renderFigure,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "PNG output path (default <output_dir>/<name>.png)")
}

func renderFigure(cmd *cobra.Command, args []string) error {
	if strings.HasSuffix(args[0], ".json") {
		return renderJSONFile(args[0])
	}

	w, store, cfg, err := buildWorkflow(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	var doc plotdoc.Document
	if _, err := store.Load(artifact.Key{Kind: artifact.KindPlotDoc, ID: w.Name}, &doc); err != nil {
		return fmt.Errorf("no stored document for %s (run or extract first): %w", w.Name, err)
	}

	out := renderOutput
	if out == "" {
		out = filepath.Join(cfg.OutputDir, w.Name+".png")
	}
	if err := render.Document(&doc, out); err != nil {
		return err
	}
	fmt.Printf("rendered: %s\n", out)
	return nil
}

// renderJSONFile accepts either document or figure JSON; the document
// shape is recognized by its axes list.
func renderJSONFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out := renderOutput
	if out == "" {
		out = strings.TrimSuffix(path, ".json") + ".png"
	}

	var probe struct {
		Axes []json.RawMessage `json:"axes"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(probe.Axes) > 0 {
		var doc plotdoc.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse document %s: %w", path, err)
		}
		if err := render.Document(&doc, out); err != nil {
			return err
		}
	} else {
		var fig plotdoc.Figure
		if err := json.Unmarshal(data, &fig); err != nil {
			return fmt.Errorf("parse figure %s: %w", path, err)
		}
		if err := render.Figure(&fig, out); err != nil {
			return err
		}
	}
	fmt.Printf("rendered: %s\n", out)
	return nil
}
