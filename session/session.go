package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zygi/r-playground-mcp/interp"
	"github.com/zygi/r-playground-mcp/plot"
)

// Factory produces one interpreter instance for a new session.
type Factory func(interp.Config) (interp.Interpreter, error)

// Result is what one call returns. Execution failures are carried on Err;
// the other fields still reflect whatever the call produced before failing.
type Result struct {
	SessionID string

	Stdout string
	Stderr string

	// Value is the printed representation of the last visible expression.
	Value    string
	HasValue bool

	// Images holds the plots drawn during this call, in the order their
	// destination paths were issued.
	Images []plot.Image

	Err *interp.ExecError

	Duration time.Duration
}

// errSessionClosed marks a submission that raced with eviction or deletion;
// the manager retries against a fresh session.
var errSessionClosed = errors.New("session closed")

type task struct {
	code   string
	result chan *Result
}

// Session is one isolated execution environment: an exclusively owned
// interpreter, its plot capture, and the worker serializing access to both.
type Session struct {
	id      string
	factory Factory
	icfg    interp.Config
	capture *plot.Capture

	queue chan *task
	done  chan struct{}

	recreateOnCrash bool

	mu       sync.Mutex
	interp   interp.Interpreter
	lastUsed time.Time
	pending  int
	closed   bool
	dead     error

	log *logrus.Entry
}

func newSession(id string, factory Factory, cfg managerConfig) (*Session, error) {
	capture, err := plot.NewCapture(cfg.scratchRoot, id)
	if err != nil {
		return nil, err
	}

	icfg := interp.Config{
		ScratchDir:     capture.Dir(),
		ImageOutput:    cfg.imageOutput,
		StartupTimeout: cfg.startupTimeout,
	}

	ip, err := factory(icfg)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("start interpreter for session %s: %w", id, err)
	}

	s := &Session{
		id:              id,
		factory:         factory,
		icfg:            icfg,
		capture:         capture,
		queue:           make(chan *task, cfg.queueCapacity),
		done:            make(chan struct{}),
		recreateOnCrash: cfg.recreateOnCrash,
		interp:          ip,
		lastUsed:        time.Now(),
		log:             logrus.WithFields(logrus.Fields{"component": "session", "session": id}),
	}

	go s.worker()
	s.log.Info("session created")
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LastUsed returns when the session last completed a call (or was created).
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Busy reports whether the session has in-flight or queued work.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// submit enqueues one call. It fails with errSessionClosed when the session
// is shutting down, or with a session-unavailable ExecError when the queue
// is full.
func (s *Session) submit(code string) (*task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errSessionClosed
	}

	t := &task{code: code, result: make(chan *Result, 1)}
	select {
	case s.queue <- t:
		s.pending++
		return t, nil
	default:
		return nil, &interp.ExecError{
			Kind:    interp.KindUnavailable,
			Message: fmt.Sprintf("session %s is busy: %d calls already queued", s.id, s.pending),
		}
	}
}

// worker drains the task queue in submission order. It owns the interpreter
// for the session's whole life and releases it once the queue closes.
func (s *Session) worker() {
	defer close(s.done)

	for t := range s.queue {
		res := s.run(t.code)
		t.result <- res

		s.mu.Lock()
		s.pending--
		s.lastUsed = time.Now()
		s.mu.Unlock()
	}

	s.mu.Lock()
	ip := s.interp
	s.mu.Unlock()
	if ip != nil {
		ip.Close()
	}
	s.capture.Close()
	s.log.Info("session destroyed")
}

// run executes one call: sweep stale plot files, evaluate, harvest images.
func (s *Session) run(code string) *Result {
	s.mu.Lock()
	dead := s.dead
	ip := s.interp
	s.mu.Unlock()

	if dead != nil {
		return &Result{
			SessionID: s.id,
			Err: &interp.ExecError{
				Kind:    interp.KindFatal,
				Message: "interpreter has terminated; delete the session and create a fresh one",
			},
		}
	}

	s.capture.Sweep()

	ev, err := ip.Eval(context.Background(), code)
	if err != nil {
		s.handleFatal(err)
		return &Result{
			SessionID: s.id,
			Err:       &interp.ExecError{Kind: interp.KindFatal, Message: err.Error()},
		}
	}

	images, cerr := s.capture.Collect()
	if cerr != nil {
		s.log.WithError(cerr).Warn("image collection failed")
	}

	return &Result{
		SessionID: s.id,
		Stdout:    ev.Stdout,
		Stderr:    ev.Stderr,
		Value:     ev.Value,
		HasValue:  ev.HasValue,
		Images:    images,
		Err:       ev.Err,
		Duration:  ev.Duration,
	}
}

// handleFatal applies the crash policy after the interpreter died mid-call.
func (s *Session) handleFatal(cause error) {
	s.log.WithError(cause).Error("interpreter terminated")

	s.mu.Lock()
	old := s.interp
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	if !s.recreateOnCrash {
		s.mu.Lock()
		s.interp = nil
		s.dead = cause
		s.mu.Unlock()
		return
	}

	fresh, err := s.factory(s.icfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.interp = nil
		s.dead = fmt.Errorf("replace interpreter: %w", err)
		s.log.WithError(err).Error("interpreter replacement failed")
		return
	}
	s.interp = fresh
	s.dead = nil
	s.log.Warn("interpreter replaced after crash; session state was lost")
}

// close stops accepting work and lets the worker drain what is already
// queued before releasing the interpreter. Safe to call more than once.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.queue)
}

// closeIfIdle closes the session only when it has been unused for at least
// idle and has no in-flight or queued work. Checking and closing happen
// under the same lock that gates submissions, so eviction can never
// interrupt a call.
func (s *Session) closeIfIdle(idle time.Duration) bool {
	s.mu.Lock()
	if s.closed || s.pending > 0 || time.Since(s.lastUsed) < idle {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.mu.Unlock()

	close(s.queue)
	return true
}
