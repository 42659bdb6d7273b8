package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/brandjon/frexp/internal/workflow"
)

const sampleExperiment = `
name: scaling
title: Solver scaling
xlabel: size
ylabel: seconds
datasets:
  - {x: 100}
  - {x: 200}
programs:
  - name: solver
    command: ["sh", "-c", "cat >/dev/null; echo '{\"metrics\":{\"time\":0.01}}'"]
series:
  - name: solver
    prog: solver
`

func writeExperiment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scaling.yaml")
	if err := os.WriteFile(path, []byte(sampleExperiment), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	cfgPath = filepath.Join(t.TempDir(), "missing.yaml")
	storeBackend = "sqlite"
	storeRoot = filepath.Join(t.TempDir(), "a.db")
	workers = 2
	t.Cleanup(func() { storeBackend, storeRoot, workers = "", "", 0 })

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Workers != 2 {
		t.Errorf("flag overrides not applied: %+v", cfg)
	}
}

func TestLoadConfig_RejectsBadBackend(t *testing.T) {
	cfgPath = filepath.Join(t.TempDir(), "missing.yaml")
	storeBackend = "redis"
	t.Cleanup(func() { storeBackend = "" })

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBuildWorkflow(t *testing.T) {
	logger = zap.NewNop()
	cfgPath = filepath.Join(t.TempDir(), "missing.yaml")
	storeRoot = t.TempDir()
	t.Cleanup(func() { storeRoot = "" })

	w, store, cfg, err := buildWorkflow(writeExperiment(t))
	if err != nil {
		t.Fatalf("buildWorkflow: %v", err)
	}
	defer store.Close()

	if w.Name != "scaling" {
		t.Errorf("workflow name = %q, want scaling", w.Name)
	}
	if cfg.Store.Root != storeRoot {
		t.Errorf("store root = %q, want %q", cfg.Store.Root, storeRoot)
	}
}

func TestPrintReport(t *testing.T) {
	report := &workflow.Report{
		StartedAt:  time.Now(),
		FinishedAt: time.Now().Add(time.Second),
		Datasets: map[string]*workflow.DatasetStatus{
			"d1": {DSID: "d1", Generated: true},
			"d2": {DSID: "d2"},
		},
		Cells: []*workflow.Cell{
			{State: workflow.CellExtracted},
			{State: workflow.CellTrialFailed, Err: "boom"},
		},
	}

	output := captureOutput(t, func() { printReport(report) })
	if !strings.Contains(output, "1 generated, 1 cached") {
		t.Errorf("dataset summary missing: %s", output)
	}
	if !strings.Contains(output, "1 failed") {
		t.Errorf("failure count missing: %s", output)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "generate", "bench", "verify", "extract", "render", "watch", "status", "clean"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	rOut, wOut, _ := os.Pipe()
	os.Stdout = wOut

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	os.Stdout = origOut
	return <-done
}
