package plot

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func writePlot(t *testing.T, c *Capture, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(c.Dir(), name), data, 0o644); err != nil {
		t.Fatalf("write plot file: %v", err)
	}
}

func newCapture(t *testing.T) *Capture {
	t.Helper()
	c, err := NewCapture(t.TempDir(), "test")
	if err != nil {
		t.Fatalf("new capture: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCollectEmpty(t *testing.T) {
	c := newCapture(t)

	images, err := c.Collect()
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("expected no images, got %d", len(images))
	}
}

func TestCollectOrderedImages(t *testing.T) {
	c := newCapture(t)

	// Written out of order; issuance order comes from the counter in the
	// name.
	writePlot(t, c, "plot_00002.png", pngBytes(t, 20, 10))
	writePlot(t, c, "plot_00001.png", pngBytes(t, 5, 5))

	images, err := c.Collect()
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if images[0].Width != 5 || images[1].Width != 20 {
		t.Errorf("images out of issuance order: %dx%d then %dx%d",
			images[0].Width, images[0].Height, images[1].Width, images[1].Height)
	}
	if images[0].Index != 0 || images[1].Index != 1 {
		t.Errorf("unexpected indices: %d, %d", images[0].Index, images[1].Index)
	}
	if images[0].Format != "png" {
		t.Errorf("unexpected format: %q", images[0].Format)
	}

	// Files are consumed.
	left, _ := filepath.Glob(filepath.Join(c.Dir(), "plot_*"))
	if len(left) != 0 {
		t.Errorf("expected scratch dir drained, found %v", left)
	}
}

func TestCollectSkipsUndecodablePNG(t *testing.T) {
	c := newCapture(t)

	writePlot(t, c, "plot_00001.png", []byte("not a png"))
	writePlot(t, c, "plot_00002.png", pngBytes(t, 3, 3))

	images, err := c.Collect()
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(images) != 1 || images[0].Width != 3 {
		t.Fatalf("expected only the valid image, got %d", len(images))
	}
}

func TestCollectKeepsNonRasterFormats(t *testing.T) {
	c := newCapture(t)

	writePlot(t, c, "plot_00001.pdf", []byte("%PDF-1.4 fake"))

	images, err := c.Collect()
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(images) != 1 || images[0].Format != "pdf" {
		t.Fatalf("expected one pdf image, got %+v", images)
	}
	if images[0].Width != 0 || images[0].Height != 0 {
		t.Errorf("non-raster formats carry no dimensions")
	}
}

func TestSweepRemovesStaleFiles(t *testing.T) {
	c := newCapture(t)

	writePlot(t, c, "plot_00001.png", pngBytes(t, 2, 2))
	writePlot(t, c, "plot_00002.png", pngBytes(t, 2, 2))

	if n := c.Sweep(); n != 2 {
		t.Errorf("expected 2 swept files, got %d", n)
	}

	images, err := c.Collect()
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("stale files leaked into collect: %d", len(images))
	}
}

func TestCloseRemovesDir(t *testing.T) {
	c, err := NewCapture(t.TempDir(), "gone")
	if err != nil {
		t.Fatalf("new capture: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := os.Stat(c.Dir()); !os.IsNotExist(err) {
		t.Errorf("expected scratch dir removed, stat err: %v", err)
	}
}
