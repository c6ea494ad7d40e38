package wasm

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zygi/r-playground-mcp/interp"
)

// Smallest valid wasm binary: magic + version, no sections. Enough to
// exercise compilation and the failed-handshake path without shipping a
// real R build.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func writeModule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "r.wasm")
	if err := os.WriteFile(path, emptyModule, 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}
	return path
}

func TestNewRuntimeMissingModule(t *testing.T) {
	if _, err := NewRuntime(filepath.Join(t.TempDir(), "absent.wasm")); err == nil {
		t.Fatal("expected error for missing module file")
	}
}

func TestNewInterpreterHandshakeFailure(t *testing.T) {
	rt, err := NewRuntime(writeModule(t))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer rt.Close()

	// An empty module never emits the READY frame.
	_, err = rt.NewInterpreter(interp.Config{
		ScratchDir:     t.TempDir(),
		StartupTimeout: 500 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected handshake failure for empty module")
	}
}

func TestRuntimeCloseIdempotent(t *testing.T) {
	rt, err := NewRuntime(writeModule(t))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
