package host

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/zygi/r-playground-mcp/interp"
)

func newTestInterp(t *testing.T, imageOutput bool) *Interpreter {
	t.Helper()
	if _, err := exec.LookPath(DefaultRscriptPath); err != nil {
		t.Skip("Rscript not installed")
	}

	h, err := New(interp.Config{
		ScratchDir:  t.TempDir(),
		ImageOutput: imageOutput,
	})
	if err != nil {
		t.Fatalf("failed to start interpreter: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestEvalValue(t *testing.T) {
	h := newTestInterp(t, false)

	res, err := h.Eval(context.Background(), `1 + 1`)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("unexpected exec error: %v", res.Err)
	}
	if !res.HasValue || !strings.Contains(res.Value, "2") {
		t.Errorf("expected value containing '2', got %q", res.Value)
	}
}

func TestEvalOutputCapture(t *testing.T) {
	h := newTestInterp(t, false)

	res, err := h.Eval(context.Background(), `cat("Hello from R!\n")`)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if !strings.Contains(res.Stdout, "Hello from R!") {
		t.Errorf("expected stdout to contain greeting, got %q", res.Stdout)
	}
}

func TestStatePersistsAcrossCalls(t *testing.T) {
	h := newTestInterp(t, false)

	if _, err := h.Eval(context.Background(), `x <- 5`); err != nil {
		t.Fatalf("first eval failed: %v", err)
	}
	res, err := h.Eval(context.Background(), `x + 1`)
	if err != nil {
		t.Fatalf("second eval failed: %v", err)
	}
	if !strings.Contains(res.Value, "6") {
		t.Errorf("expected value containing '6', got %q", res.Value)
	}
}

func TestParseError(t *testing.T) {
	h := newTestInterp(t, false)

	res, err := h.Eval(context.Background(), `1 +`)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if res.Err == nil || res.Err.Kind != interp.KindParse {
		t.Fatalf("expected parse error, got %v", res.Err)
	}
	if res.Stdout != "" {
		t.Errorf("parse error must produce no output, got %q", res.Stdout)
	}
}

func TestRuntimeErrorKeepsPartialOutput(t *testing.T) {
	h := newTestInterp(t, false)

	res, err := h.Eval(context.Background(), "cat(\"partial\\n\")\nstop(\"boom\")")
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if res.Err == nil || res.Err.Kind != interp.KindRuntime {
		t.Fatalf("expected runtime error, got %v", res.Err)
	}
	if !strings.Contains(res.Stdout, "partial") {
		t.Errorf("expected partial output preserved, got %q", res.Stdout)
	}
	if !strings.Contains(res.Err.Message, "boom") {
		t.Errorf("unexpected error message: %q", res.Err.Message)
	}
}

func TestUndefinedSymbolIsRuntimeError(t *testing.T) {
	h := newTestInterp(t, false)

	res, err := h.Eval(context.Background(), `non_existent_variable`)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if res.Err == nil || res.Err.Kind != interp.KindRuntime {
		t.Fatalf("expected runtime error, got %v", res.Err)
	}
	if !strings.Contains(strings.ToLower(res.Err.Message), "not found") {
		t.Errorf("unexpected error message: %q", res.Err.Message)
	}
}

func TestImageHelperDisabled(t *testing.T) {
	h := newTestInterp(t, false)

	res, err := h.Eval(context.Background(), interp.HelperName+`()`)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if res.Err == nil || res.Err.Kind != interp.KindRuntime {
		t.Fatalf("expected runtime error when images disabled, got %v", res.Err)
	}
	if !strings.Contains(res.Err.Message, "disabled") {
		t.Errorf("unexpected error message: %q", res.Err.Message)
	}
}

func TestImageHelperIssuesOrderedPaths(t *testing.T) {
	h := newTestInterp(t, true)

	res, err := h.Eval(context.Background(), `cat(`+interp.HelperName+`(), "\n", `+interp.HelperName+`(), "\n")`)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("unexpected exec error: %v", res.Err)
	}
	if !strings.Contains(res.Stdout, "plot_00001.png") || !strings.Contains(res.Stdout, "plot_00002.png") {
		t.Errorf("expected two distinct ordered paths, got %q", res.Stdout)
	}
}

func TestEvalAfterClose(t *testing.T) {
	h := newTestInterp(t, false)
	h.Close()

	if _, err := h.Eval(context.Background(), `1`); err == nil {
		t.Fatal("expected error after close")
	}
}
