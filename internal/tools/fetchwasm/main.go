// Command fetchwasm downloads a WebAssembly R build for the wasm backend.
// It skips the download when the output file already exists.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// webR ships a WASI build of R suitable for the wasm backend.
const defaultURL = "https://repo.r-wasm.org/latest/R.wasm"

func main() {
	url := defaultURL
	output := "R.wasm"
	switch len(os.Args) {
	case 1:
	case 2:
		output = os.Args[1]
	case 3:
		url, output = os.Args[1], os.Args[2]
	default:
		fmt.Fprintln(os.Stderr, "usage: fetchwasm [url] <output>")
		os.Exit(1)
	}

	if _, err := os.Stat(output); err == nil {
		fmt.Fprintf(os.Stderr, "%s already exists, skipping\n", output)
		return
	}

	if err := fetch(url, output); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", output)
}

func fetch(url, output string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// Write to a temp name so a partial download never looks complete.
	tmp := output + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, output)
}
