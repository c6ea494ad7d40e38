package interp

import "errors"

// Sentinel errors for interpreter lifecycle failures.
var (
	// ErrInterpreterFatal indicates the R runtime crashed or became
	// unusable. The owning session must be torn down or its interpreter
	// replaced before further calls can succeed.
	ErrInterpreterFatal = errors.New("interpreter terminated")

	// ErrClosed indicates Eval was called on a closed interpreter.
	ErrClosed = errors.New("interpreter closed")
)

// Kind classifies an execution failure.
type Kind string

const (
	// KindParse: the submitted code is not valid R. Nothing was evaluated
	// and no output was produced.
	KindParse Kind = "parse_error"

	// KindRuntime: evaluation started and raised a condition partway.
	// Output produced before the failure point is preserved.
	KindRuntime Kind = "runtime_error"

	// KindTimeout: the caller's wait was bounded and the bound elapsed.
	// The underlying call may still be running; the session stays busy
	// until it resolves.
	KindTimeout Kind = "timeout"

	// KindUnavailable: the session's task queue is full and the call was
	// rejected rather than queued.
	KindUnavailable Kind = "session_unavailable"

	// KindFatal: the interpreter process itself died during or before the
	// call.
	KindFatal Kind = "interpreter_fatal"
)

// ExecError is a classified execution failure reported on a call's result.
type ExecError struct {
	Kind    Kind
	Message string
}

func (e *ExecError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Is lets errors.Is match an *ExecError against another by kind alone.
func (e *ExecError) Is(target error) bool {
	t, ok := target.(*ExecError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of err if it is (or wraps) an *ExecError, or ""
// otherwise.
func KindOf(err error) Kind {
	var e *ExecError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
