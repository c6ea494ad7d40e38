package interp

import (
	"context"
	"time"
)

// EvalResult holds everything one call produced.
type EvalResult struct {
	// Stdout is the text the code printed to standard output during this
	// call, with protocol frames stripped.
	Stdout string

	// Stderr is the text written to standard error during this call
	// (messages, warnings).
	Stderr string

	// Value is the printed representation of the last visible expression,
	// empty when the call produced no visible value. HasValue
	// distinguishes "no value" from a value that printed as "".
	Value    string
	HasValue bool

	// Err is set when the call failed with a parse or runtime error. The
	// fields above still reflect output captured up to the failure point.
	Err *ExecError

	Duration time.Duration
}

// Interpreter is one exclusively-owned R runtime instance. Implementations
// are stateful and non-reentrant: callers must serialize Eval.
//
// Eval blocks until the interpreter finishes the call. A non-nil error
// return means the call could not complete at all (interpreter crash,
// context cancellation); parse and runtime failures inside R are reported on
// EvalResult.Err instead.
type Interpreter interface {
	Eval(ctx context.Context, code string) (*EvalResult, error)
	Close() error
}

// Config carries the per-session settings a backend needs to start an
// interpreter.
type Config struct {
	// ScratchDir is the host directory where the image helper points
	// graphics output. Required when ImageOutput is enabled.
	ScratchDir string

	// ImageOutput controls whether the in-interpreter image helper issues
	// destination paths. When false the helper is still defined but stops
	// with an explanatory error, so calling code gets clear feedback.
	ImageOutput bool

	// StartupTimeout bounds the wait for the interpreter's ready
	// handshake. Zero means DefaultStartupTimeout.
	StartupTimeout time.Duration
}

// DefaultStartupTimeout is how long backends wait for the driver's READY
// frame before giving up on a new interpreter. Conn.WaitReady applies it
// when given a non-positive timeout.
const DefaultStartupTimeout = 30 * time.Second
