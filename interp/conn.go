package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Conn runs the eval exchange with a driver process over its stdio streams.
// Both backends wire a Conn the same way: the process's stdout feeds
// Stdout(), its stderr feeds Stderr(), and Conn writes code to the
// process's stdin.
type Conn struct {
	scanner *FrameScanner
	stderr  *OutputBuffer
	stdin   io.Writer

	mu sync.Mutex
}

// NewConn builds a connection writing code to stdin.
func NewConn(stdin io.Writer) *Conn {
	return &Conn{
		scanner: NewFrameScanner(),
		stderr:  &OutputBuffer{},
		stdin:   stdin,
	}
}

// Stdout returns the sink to wire as the interpreter's standard output.
func (c *Conn) Stdout() io.Writer { return c.scanner }

// Stderr returns the sink to wire as the interpreter's standard error.
func (c *Conn) Stderr() io.Writer { return c.stderr }

// Fail records that the interpreter process died. Any in-flight Eval returns
// a fatal error; later Evals fail immediately.
func (c *Conn) Fail(err error) {
	if err == nil {
		err = ErrInterpreterFatal
	}
	c.scanner.Fail(err)
}

// WaitReady blocks until the driver's READY handshake, a process death, or
// the timeout. Non-positive timeouts fall back to DefaultStartupTimeout.
func (c *Conn) WaitReady(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	select {
	case <-c.scanner.Ready():
		return nil
	case out := <-c.scanner.Done():
		if out.fatal != nil {
			return fatalError(out.fatal)
		}
		return fmt.Errorf("%w: unexpected result before ready handshake", ErrInterpreterFatal)
	case <-time.After(timeout):
		return fmt.Errorf("interpreter start timeout after %v", timeout)
	}
}

// Eval submits one code block and blocks until the driver reports the call
// done. Callers must serialize Eval; Conn enforces it defensively.
func (c *Conn) Eval(ctx context.Context, code string) (*EvalResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	if err := c.scanner.BeginCall(); err != nil {
		return nil, fatalError(err)
	}
	c.stderr.Reset()

	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	if _, err := io.WriteString(c.stdin, code+eofLine+"\n"); err != nil {
		c.Fail(err)
		return nil, fatalError(err)
	}

	select {
	case out := <-c.scanner.Done():
		if out.fatal != nil {
			return nil, fatalError(out.fatal)
		}
		return &EvalResult{
			Stdout:   out.stdout,
			Stderr:   c.stderr.String(),
			Value:    out.value,
			HasValue: out.hasValue,
			Err:      out.execErr,
			Duration: time.Since(start),
		}, nil
	case <-ctx.Done():
		// Abandoning a call mid-stream loses frame sync; the
		// interpreter is no longer usable.
		c.Fail(ctx.Err())
		return nil, ctx.Err()
	}
}

func fatalError(err error) error {
	if errors.Is(err, ErrInterpreterFatal) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInterpreterFatal, err)
}
