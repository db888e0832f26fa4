package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTree = `{
  "label": "CATCH_BATCH",
  "children": [
    {"label": "SORTING_BATCH#1", "rankOrder": 1, "taxonGroup": {"id": 2, "label": "COD"},
     "weight": {"value": 10, "unit": "kg", "methodId": 1}},
    {"label": "SORTING_BATCH#2", "rankOrder": 2}
  ]
}`

func writeTree(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.json")
	if err := os.WriteFile(path, []byte(sampleTree), 0o600); err != nil {
		t.Fatalf("write tree: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func useTempBackends(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CATCHCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("CATCHCORE_SQLITE_PATH", filepath.Join(dir, "catchcore.db"))
	t.Setenv("CATCHCORE_BLOB_DRIVER", "fs")
	t.Setenv("CATCHCORE_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	return dir
}

func TestTreeCommands(t *testing.T) {
	path := writeTree(t)

	out, err := run(t, "clean", path)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	var cleaned struct {
		Children []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal([]byte(out), &cleaned); err != nil {
		t.Fatalf("decode clean output: %v", err)
	}
	if len(cleaned.Children) != 1 {
		t.Fatalf("expected the empty group removed, got %d children", len(cleaned.Children))
	}

	out, err = run(t, "compute", "--dump", path)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !strings.HasPrefix(out, "CATCH_BATCH") || !strings.Contains(out, "\n  SORTING_BATCH#1") {
		t.Fatalf("unexpected dump:\n%s", out)
	}

	if _, err := run(t, "renumber", path); err != nil {
		t.Fatalf("renumber: %v", err)
	}
	if _, err := run(t, "renumber", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestComputeReadsStdin(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetIn(strings.NewReader(sampleTree))
	cmd.SetArgs([]string{"compute", "-"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !strings.Contains(out.String(), `"COD"`) {
		t.Fatalf("expected tree JSON, got %s", out.String())
	}
}

func TestStoreControlAndReports(t *testing.T) {
	dir := useTempBackends(t)
	path := writeTree(t)
	metrics := filepath.Join(dir, "metrics.prom")

	if out, err := run(t, "store", "put", "op-1", path); err != nil || strings.TrimSpace(out) != "op-1" {
		t.Fatalf("put: %q %v", out, err)
	}
	if out, err := run(t, "store", "list"); err != nil || strings.TrimSpace(out) != "op-1" {
		t.Fatalf("list: %q %v", out, err)
	}

	out, err := run(t, "--metrics-file", metrics, "control", "--fail-on-invalid", "op-1")
	if err != nil {
		t.Fatalf("control: %v", err)
	}
	var summary controlSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.State != "VALID" || summary.Program != defaultProgram || len(summary.Errors) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), `catchcore_control_passes_total{program="SUMARiS",state="VALID"} 1`) {
		t.Fatalf("expected control counter in metrics:\n%s", data)
	}

	out, err = run(t, "reports", "op-1")
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if !strings.HasPrefix(out, "reports/op-1/") || !strings.Contains(out, "\tVALID\t") {
		t.Fatalf("unexpected reports listing %q", out)
	}

	out, err = run(t, "store", "get", "op-1")
	if err != nil || !strings.Contains(out, `"qualityFlagId"`) {
		t.Fatalf("get: %q %v", out, err)
	}
	if _, err := run(t, "store", "delete", "op-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := run(t, "store", "get", "op-1"); err == nil {
		t.Fatalf("expected not found after delete")
	}
}

func TestInvalidFlags(t *testing.T) {
	useTempBackends(t)
	if _, err := run(t, "--program", "NOPE", "--program-file", filepath.Join("..", "..", "internal", "program", "testdata", "programs.yaml"), "control", "op-1"); err == nil {
		t.Fatalf("expected unknown program error")
	}
	if _, err := run(t, "--format", "xml", "store", "list"); err == nil {
		t.Fatalf("expected unknown report format error")
	}
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--log-level", "loud", "store", "list"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected invalid log level error")
	}
}
