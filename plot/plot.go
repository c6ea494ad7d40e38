// Package plot materializes graphics output produced during a single call.
//
// The interpreter side issues counter-ordered destination paths inside a
// session's scratch directory; user code opens graphics devices against
// them. After each call, Collect picks up whatever was actually written, in
// issuance order, and removes the temp files. The filesystem is the only
// contract between the two sides, so no in-process callback hooks are
// needed.
package plot

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// filePrefix matches the names the in-interpreter helper issues.
const filePrefix = "plot_"

// Image is one decoded graphics artifact from a call.
type Image struct {
	// Data holds the raw encoded bytes as the graphics device wrote them.
	Data []byte

	// Format is the encoding, derived from the issued extension ("png",
	// "pdf", ...).
	Format string

	// Index is the image's position among the call's images, in the order
	// the destination paths were issued.
	Index int

	// Width and Height are pixel dimensions for raster formats, zero
	// otherwise.
	Width  int
	Height int
}

// Capture owns one session's scratch directory.
type Capture struct {
	dir string
	log *logrus.Entry
}

// NewCapture creates the session scratch directory under root (os.TempDir
// when empty).
func NewCapture(root, sessionID string) (*Capture, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir, err := os.MkdirTemp(root, "rplayground_"+sessionID+"_")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Capture{
		dir: dir,
		log: logrus.WithFields(logrus.Fields{"component": "plot", "session": sessionID}),
	}, nil
}

// Dir returns the scratch directory handed to the interpreter.
func (c *Capture) Dir() string {
	return c.dir
}

// Sweep removes artifacts left behind by a crashed or abandoned prior call
// so they cannot leak into the next call's results. It returns the number
// of files removed.
func (c *Capture) Sweep() int {
	paths, err := c.glob()
	if err != nil {
		c.log.WithError(err).Warn("scratch sweep failed")
		return 0
	}
	removed := 0
	for _, p := range paths {
		if err := os.Remove(p); err == nil {
			removed++
		}
	}
	if removed > 0 {
		c.log.WithField("count", removed).Debug("swept stale plot files")
	}
	return removed
}

// Collect reads every plot file written during the call just finished,
// decodes it, deletes the temp file, and returns the images in issuance
// order. Issued paths that were never written simply do not exist and are
// skipped; unreadable or truncated raster files are skipped with a warning.
func (c *Capture) Collect() ([]Image, error) {
	paths, err := c.glob()
	if err != nil {
		return nil, fmt.Errorf("scan scratch dir: %w", err)
	}
	// Names carry a zero-padded issue counter, so lexical order is
	// issuance order.
	sort.Strings(paths)

	var images []Image
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			c.log.WithError(err).WithField("path", p).Warn("unreadable plot file")
			continue
		}
		os.Remove(p)

		img := Image{
			Data:   data,
			Format: strings.TrimPrefix(filepath.Ext(p), "."),
			Index:  len(images),
		}
		if img.Format == "png" {
			cfg, err := png.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				c.log.WithError(err).WithField("path", p).Warn("skipping undecodable png")
				continue
			}
			img.Width = cfg.Width
			img.Height = cfg.Height
		}
		images = append(images, img)
	}
	return images, nil
}

func (c *Capture) glob() ([]string, error) {
	return filepath.Glob(filepath.Join(c.dir, filePrefix+"*.*"))
}

// Close removes the scratch directory and everything in it.
func (c *Capture) Close() error {
	return os.RemoveAll(c.dir)
}
