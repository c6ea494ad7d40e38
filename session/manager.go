package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zygi/r-playground-mcp/interp"
)

// ErrManagerClosed is returned once CloseAll has run.
var ErrManagerClosed = errors.New("session manager closed")

// entry guards one id so concurrent first references build exactly one
// session.
type entry struct {
	once sync.Once
	s    *Session
	err  error
}

// Manager owns the id→session mapping: it creates sessions on first
// reference, routes execution, and evicts idle sessions in the background.
type Manager struct {
	factory Factory
	cfg     managerConfig

	mu       sync.RWMutex
	sessions map[string]*entry
	closed   bool

	stop     chan struct{}
	stopOnce sync.Once
	sweepWG  sync.WaitGroup

	log *logrus.Entry
}

// NewManager builds a manager creating interpreters through factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{
		factory:  factory,
		cfg:      cfg,
		sessions: make(map[string]*entry),
		stop:     make(chan struct{}),
		log:      logrus.WithField("component", "manager"),
	}

	if cfg.idleTimeout > 0 {
		m.sweepWG.Add(1)
		go m.sweep()
	}
	return m
}

// CreateSession allocates a fresh session under a generated id.
func (m *Manager) CreateSession() (string, error) {
	id := "s" + uuid.NewString()[:8]
	if _, err := m.GetOrCreate(id); err != nil {
		return "", err
	}
	return id, nil
}

// GetOrCreate returns the live session for id, creating it atomically on
// first reference. Two concurrent calls for the same id never observe two
// distinct sessions.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrManagerClosed
		}
		e, ok := m.sessions[id]
		if !ok {
			e = &entry{}
			m.sessions[id] = e
		}
		m.mu.Unlock()

		e.once.Do(func() {
			e.s, e.err = newSession(id, m.factory, m.cfg)
		})

		if e.err != nil {
			m.mu.Lock()
			if m.sessions[id] == e {
				delete(m.sessions, id)
			}
			m.mu.Unlock()
			return nil, e.err
		}

		// The entry may have been deleted or evicted while we were
		// creating it; in that case retry against a fresh one.
		m.mu.RLock()
		current := m.sessions[id] == e
		m.mu.RUnlock()
		if !current {
			e.s.close()
			continue
		}

		e.s.mu.Lock()
		closed := e.s.closed
		e.s.mu.Unlock()
		if closed {
			m.removeEntry(id, e)
			continue
		}
		return e.s, nil
	}
}

// Execute runs code in the named session, creating it if needed, and blocks
// until the call completes or ctx expires. Execution failures (parse,
// runtime, timeout, busy, fatal) ride on the Result's Err field; the error
// return is reserved for failures to attempt the call at all, such as being
// unable to allocate an interpreter.
func (m *Manager) Execute(ctx context.Context, id, code string) (*Result, error) {
	if m.cfg.callTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.cfg.callTimeout)
			defer cancel()
		}
	}

	for {
		s, err := m.GetOrCreate(id)
		if err != nil {
			return nil, err
		}

		t, err := s.submit(code)
		if errors.Is(err, errSessionClosed) {
			// Lost a race with eviction; a fresh session takes the
			// call.
			continue
		}
		var execErr *interp.ExecError
		if errors.As(err, &execErr) {
			return &Result{SessionID: id, Err: execErr}, nil
		}
		if err != nil {
			return nil, err
		}

		select {
		case res := <-t.result:
			return res, nil
		case <-ctx.Done():
			m.log.WithField("session", id).Warn("call timed out; session stays busy until it resolves")
			return &Result{
				SessionID: id,
				Err: &interp.ExecError{
					Kind:    interp.KindTimeout,
					Message: fmt.Sprintf("no result within the allowed time; session %s remains busy until the call resolves", id),
				},
			}, nil
		}
	}
}

// Delete destroys the named session, releasing its interpreter after any
// already-queued work drains. It reports whether the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok || e.s == nil {
		return ok
	}
	e.s.close()
	<-e.s.done
	return true
}

// Sessions returns a snapshot of live session ids.
func (m *Manager) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll destroys every session and stops the eviction sweep. The manager
// refuses further work afterwards.
func (m *Manager) CloseAll() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.sweepWG.Wait()

	m.mu.Lock()
	m.closed = true
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		if e.s != nil {
			e.s.close()
			<-e.s.done
		}
	}
	m.log.Info("all sessions destroyed")
}

// sweep periodically evicts sessions idle past the configured threshold.
// Sessions with in-flight or queued work are never touched.
func (m *Manager) sweep() {
	defer m.sweepWG.Done()

	ticker := time.NewTicker(m.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}

		m.mu.RLock()
		candidates := make(map[string]*entry, len(m.sessions))
		for id, e := range m.sessions {
			candidates[id] = e
		}
		m.mu.RUnlock()

		for id, e := range candidates {
			if e.s == nil {
				continue
			}
			if e.s.closeIfIdle(m.cfg.idleTimeout) {
				m.removeEntry(id, e)
				m.log.WithField("session", id).Info("evicted idle session")
			}
		}
	}
}

func (m *Manager) removeEntry(id string, e *entry) {
	m.mu.Lock()
	if m.sessions[id] == e {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
}
