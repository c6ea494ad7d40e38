// Package host runs R playground interpreters as local Rscript child
// processes, one long-lived process per session.
package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zygi/r-playground-mcp/interp"
)

// DefaultRscriptPath is the binary used when no explicit path is given;
// resolved against PATH.
const DefaultRscriptPath = "Rscript"

// Option configures the host backend.
type Option func(*config)

type config struct {
	rscriptPath string
	extraArgs   []string
}

func defaultConfig() config {
	return config{rscriptPath: DefaultRscriptPath}
}

// WithRscriptPath sets the Rscript binary to launch.
func WithRscriptPath(path string) Option {
	return func(c *config) {
		if path != "" {
			c.rscriptPath = path
		}
	}
}

// WithExtraArgs appends additional Rscript arguments ahead of the driver
// script.
func WithExtraArgs(args ...string) Option {
	return func(c *config) {
		c.extraArgs = append(c.extraArgs, args...)
	}
}

// Interpreter drives one Rscript child process through the playground wire
// protocol.
type Interpreter struct {
	cmd        *exec.Cmd
	conn       *interp.Conn
	stdin      io.WriteCloser
	driverPath string

	waitCh chan error

	mu     sync.Mutex
	closed bool

	log *logrus.Entry
}

// New starts an Rscript process running the session driver and waits for its
// ready handshake.
func New(icfg interp.Config, opts ...Option) (*Interpreter, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	driverPath, err := interp.WriteDriverFile()
	if err != nil {
		return nil, fmt.Errorf("write driver script: %w", err)
	}

	args := append([]string{"--vanilla"}, cfg.extraArgs...)
	args = append(args, driverPath)
	args = append(args, interp.DriverArgs(icfg.ScratchDir, icfg.ImageOutput)...)

	cmd := exec.Command(cfg.rscriptPath, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(driverPath)
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}

	conn := interp.NewConn(stdin)
	cmd.Stdout = conn.Stdout()
	cmd.Stderr = conn.Stderr()

	h := &Interpreter{
		cmd:        cmd,
		conn:       conn,
		stdin:      stdin,
		driverPath: driverPath,
		waitCh:     make(chan error, 1),
		log:        logrus.WithField("component", "interp.host"),
	}

	if err := cmd.Start(); err != nil {
		os.Remove(driverPath)
		return nil, fmt.Errorf("start %s: %w", cfg.rscriptPath, err)
	}
	h.log = h.log.WithField("pid", cmd.Process.Pid)
	h.log.Debug("interpreter process started")

	go func() {
		err := cmd.Wait()
		if err == nil {
			err = fmt.Errorf("process exited")
		}
		conn.Fail(err)
		h.waitCh <- err
	}()

	if err := conn.WaitReady(icfg.StartupTimeout); err != nil {
		h.Close()
		return nil, err
	}
	h.log.Debug("interpreter ready")
	return h, nil
}

// Eval runs one code block against the process. Calls must be serialized by
// the owning session.
func (h *Interpreter) Eval(ctx context.Context, code string) (*interp.EvalResult, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, interp.ErrClosed
	}
	return h.conn.Eval(ctx, code)
}

// Close shuts the process down: closing stdin makes the driver exit on EOF,
// with a kill as backstop if it does not.
func (h *Interpreter) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.stdin.Close()

	select {
	case <-h.waitCh:
	case <-time.After(2 * time.Second):
		h.log.Warn("interpreter did not exit on EOF, killing")
		if h.cmd.Process != nil {
			h.cmd.Process.Kill()
		}
		<-h.waitCh
	}

	os.Remove(h.driverPath)
	h.log.Debug("interpreter closed")
	return nil
}

// Factory returns a session factory producing host interpreters with the
// given options.
func Factory(opts ...Option) func(interp.Config) (interp.Interpreter, error) {
	return func(icfg interp.Config) (interp.Interpreter, error) {
		return New(icfg, opts...)
	}
}
