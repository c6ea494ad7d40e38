package mcpserver

import (
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zygi/r-playground-mcp/interp"
	"github.com/zygi/r-playground-mcp/plot"
	"github.com/zygi/r-playground-mcp/session"
)

func TestToolDescriptionAdvertisesHelperOnlyWhenEnabled(t *testing.T) {
	with := New(nil, true, "test")
	if !strings.Contains(with.ToolDescription(), interp.HelperName) {
		t.Error("enabled server should mention the plot helper")
	}

	without := New(nil, false, "test")
	if strings.Contains(without.ToolDescription(), interp.HelperName) {
		t.Error("disabled server must not mention the plot helper")
	}
}

func TestAssembleResultSuccess(t *testing.T) {
	out := assembleResult(&session.Result{
		SessionID: "s1",
		Stdout:    "hello",
		Value:     "[1] 2",
		HasValue:  true,
	})
	if out.SessionID != "s1" {
		t.Errorf("session id = %q", out.SessionID)
	}
	if out.SuccessfulOutput != "hello\n[1] 2" {
		t.Errorf("successful output = %q", out.SuccessfulOutput)
	}
	if out.RErrorOutput != "" || out.SystemErrorOutput != "" {
		t.Errorf("unexpected errors: %+v", out)
	}
}

func TestAssembleResultRError(t *testing.T) {
	out := assembleResult(&session.Result{
		SessionID: "s1",
		Stdout:    "before the error",
		Err:       &interp.ExecError{Kind: interp.KindRuntime, Message: "object 'x' not found"},
	})
	if out.SuccessfulOutput != "before the error" {
		t.Errorf("partial output lost: %q", out.SuccessfulOutput)
	}
	if !strings.Contains(out.RErrorOutput, "not found") {
		t.Errorf("r error = %q", out.RErrorOutput)
	}
	if out.SystemErrorOutput != "" {
		t.Errorf("runtime failure is not a system error: %+v", out)
	}
}

func TestAssembleResultSystemErrors(t *testing.T) {
	for _, kind := range []interp.Kind{interp.KindTimeout, interp.KindUnavailable, interp.KindFatal} {
		out := assembleResult(&session.Result{
			SessionID: "s1",
			Err:       &interp.ExecError{Kind: kind, Message: string(kind)},
		})
		if out.SystemErrorOutput == "" {
			t.Errorf("%s should be a system error", kind)
		}
		if out.RErrorOutput != "" {
			t.Errorf("%s should not be an R error", kind)
		}
	}
}

func TestResultForIncludesImages(t *testing.T) {
	res := &session.Result{
		SessionID: "s1",
		Images: []plot.Image{
			{Data: []byte{1, 2, 3}, Format: "png"},
			{Data: []byte{4, 5}, Format: "jpeg"},
		},
	}
	out := assembleResult(res)

	ctr := resultFor(out, res, true)
	if len(ctr.Content) != 3 {
		t.Fatalf("content blocks = %d, want 3", len(ctr.Content))
	}
	if _, ok := ctr.Content[0].(*mcp.TextContent); !ok {
		t.Error("first block should be the JSON result")
	}
	img, ok := ctr.Content[1].(*mcp.ImageContent)
	if !ok || img.MIMEType != "image/png" {
		t.Errorf("second block = %#v", ctr.Content[1])
	}

	// With images off, the plots are dropped from the content.
	ctr = resultFor(out, res, false)
	if len(ctr.Content) != 1 {
		t.Errorf("content blocks without images = %d, want 1", len(ctr.Content))
	}
}
