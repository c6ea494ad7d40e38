// Package interp defines the interpreter adapter boundary for R playground
// sessions.
//
// # Overview
//
// An [Interpreter] owns exactly one R runtime instance and exposes a single
// blocking Eval primitive. Backends live in subpackages: interp/host drives
// a long-lived Rscript child process, interp/wasm runs a WASI build of R
// under wazero. Both speak the same wire protocol: the embedded driver
// script (driver.R) loops reading code blocks from stdin and reports results
// on stdout as sentinel-delimited frames that [FrameScanner] decodes on the
// host side.
//
// Regular interpreter output passes through the frames untouched, so a
// call's stdout is exactly what the submitted code printed. The value of the
// last visible expression travels in its own frame, as do parse and runtime
// errors, which map onto [ExecError] kinds.
package interp
