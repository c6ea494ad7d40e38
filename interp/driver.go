package interp

import (
	_ "embed"
	"os"
)

//go:embed driver.R
var driverScript string

// HelperName is the zero-argument(-defaulted) function submitted code calls
// to obtain a fresh graphics destination path. The name is part of the tool
// contract advertised to callers.
const HelperName = "get_img_dest_file_name"

// DriverScript returns the R source of the session eval loop.
func DriverScript() string {
	return driverScript
}

// WriteDriverFile materializes the driver script into a temp file and
// returns its path. The caller removes the file when the interpreter shuts
// down.
func WriteDriverFile() (string, error) {
	f, err := os.CreateTemp("", "rplayground-driver-*.R")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(driverScript); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// DriverArgs returns the positional arguments the driver expects after the
// script path: the scratch directory (as seen by the interpreter) and the
// image-output flag.
func DriverArgs(scratchDir string, imageOutput bool) []string {
	flag := "0"
	if imageOutput {
		flag = "1"
	}
	return []string{scratchDir, flag}
}
