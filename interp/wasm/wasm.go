// Package wasm runs R playground interpreters from a WASI build of R (such
// as a webR base image) under wazero. It needs no host R installation: each
// session instantiates the compiled module with piped stdio and a scratch
// directory mount, and speaks the same wire protocol as the host backend.
package wasm

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/zygi/r-playground-mcp/interp"
)

// Guest mount points. The driver script and the session scratch directory
// are the only host paths the module can see.
const (
	guestDriverDir  = "/driver"
	guestScratchDir = "/scratch"
)

// RuntimeOption configures the shared wazero runtime.
type RuntimeOption func(*runtimeConfig)

type runtimeConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32
	argvPrefix       []string
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		argvPrefix: []string{"R", "--vanilla", "--no-echo"},
	}
}

// WithDiskCache enables a persistent compilation cache so later starts skip
// recompiling the R module. Optionally provide a directory; otherwise
// ~/.cache/rplayground (or XDG_CACHE_HOME) is used.
func WithDiskCache(dir ...string) RuntimeOption {
	return func(c *runtimeConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit caps the module's memory in 64KB pages. Zero means the
// wazero default.
func WithMemoryLimit(pages uint32) RuntimeOption {
	return func(c *runtimeConfig) {
		c.memoryLimitPages = pages
	}
}

// WithArgvPrefix overrides the guest argv ahead of the driver-script
// arguments, for R builds invoked under a different name or flag set.
func WithArgvPrefix(argv ...string) RuntimeOption {
	return func(c *runtimeConfig) {
		if len(argv) > 0 {
			c.argvPrefix = argv
		}
	}
}

// Runtime owns the wazero runtime and the compiled R module, shared across
// all sessions of a process.
type Runtime struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	cfg     runtimeConfig

	moduleBytes []byte

	mu       sync.Mutex
	compiled wazero.CompiledModule
	closed   bool

	log *logrus.Entry
}

// NewRuntime loads the WASI R module from modulePath and prepares a wazero
// runtime for it.
func NewRuntime(modulePath string, opts ...RuntimeOption) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	moduleBytes, err := os.ReadFile(modulePath)
	if err != nil {
		return nil, fmt.Errorf("read R wasm module: %w", err)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	return &Runtime{
		runtime:     rt,
		cache:       cache,
		cfg:         cfg,
		moduleBytes: moduleBytes,
		log:         logrus.WithField("component", "interp.wasm"),
	}, nil
}

// getCompiled compiles the R module once and caches the result.
func (r *Runtime) getCompiled(ctx context.Context) (wazero.CompiledModule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, interp.ErrClosed
	}
	if r.compiled != nil {
		return r.compiled, nil
	}

	compiled, err := r.runtime.CompileModule(ctx, r.moduleBytes)
	if err != nil {
		return nil, fmt.Errorf("compile R module: %w", err)
	}
	r.compiled = compiled
	return compiled, nil
}

// Close releases the runtime and any compilation cache.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	ctx := context.Background()
	err := r.runtime.Close(ctx)
	if r.cache != nil {
		if cerr := r.cache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

// Interpreter is one instantiated R module bound to a session.
type Interpreter struct {
	rt        *Runtime
	conn      *interp.Conn
	stdin     *io.PipeWriter
	stdinRead *io.PipeReader
	driverDir string

	mu     sync.Mutex
	module api.Module
	closed bool
}

// NewInterpreter instantiates the module for a new session and waits for the
// driver's ready handshake.
func (r *Runtime) NewInterpreter(icfg interp.Config) (interp.Interpreter, error) {
	ctx := context.Background()

	compiled, err := r.getCompiled(ctx)
	if err != nil {
		return nil, err
	}

	driverDir, err := os.MkdirTemp("", "rplayground-wasm-")
	if err != nil {
		return nil, fmt.Errorf("create driver dir: %w", err)
	}
	driverPath := filepath.Join(driverDir, "driver.R")
	if err := os.WriteFile(driverPath, []byte(interp.DriverScript()), 0o644); err != nil {
		os.RemoveAll(driverDir)
		return nil, fmt.Errorf("write driver script: %w", err)
	}

	stdinRead, stdinWrite := io.Pipe()
	conn := interp.NewConn(stdinWrite)

	fsCfg := wazero.NewFSConfig().WithDirMount(driverDir, guestDriverDir)
	if icfg.ScratchDir != "" {
		fsCfg = fsCfg.WithDirMount(icfg.ScratchDir, guestScratchDir)
	}

	args := append([]string{}, r.cfg.argvPrefix...)
	args = append(args, "-f", guestDriverDir+"/driver.R", "--args")
	args = append(args, interp.DriverArgs(guestScratchDir, icfg.ImageOutput)...)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(conn.Stdout()).
		WithStderr(conn.Stderr()).
		WithStdin(stdinRead).
		WithArgs(args...).
		WithFSConfig(fsCfg).
		WithEnv("LC_ALL", "C").
		WithName("")

	w := &Interpreter{
		rt:        r,
		conn:      conn,
		stdin:     stdinWrite,
		stdinRead: stdinRead,
		driverDir: driverDir,
	}

	go func() {
		mod, err := r.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		if err != nil {
			conn.Fail(fmt.Errorf("module exited: %w", err))
			return
		}
		w.mu.Lock()
		w.module = mod
		w.mu.Unlock()
		// A clean return means the guest main finished; the driver only
		// returns on stdin EOF.
		conn.Fail(fmt.Errorf("module exited"))
	}()

	if err := conn.WaitReady(icfg.StartupTimeout); err != nil {
		w.Close()
		return nil, err
	}
	r.log.Debug("wasm interpreter ready")
	return w, nil
}

// Eval runs one code block against the module. Calls must be serialized by
// the owning session.
func (w *Interpreter) Eval(ctx context.Context, code string) (*interp.EvalResult, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil, interp.ErrClosed
	}
	return w.conn.Eval(ctx, code)
}

// Close tears the module down. Closing the stdin pipe gives the driver EOF;
// closing the module reclaims the instance even if the guest is stuck.
func (w *Interpreter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	mod := w.module
	w.mu.Unlock()

	w.stdinRead.Close()
	w.stdin.Close()

	if mod != nil {
		mod.Close(context.Background())
	}

	os.RemoveAll(w.driverDir)
	return nil
}

// Factory returns a session factory producing interpreters from this
// runtime.
func (r *Runtime) Factory() func(interp.Config) (interp.Interpreter, error) {
	return r.NewInterpreter
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "rplayground")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "rplayground")
	}
	return filepath.Join(os.TempDir(), "rplayground-cache")
}
