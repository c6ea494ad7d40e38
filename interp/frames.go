package interp

import (
	"bytes"
	"strings"
	"sync"
)

// Protocol constants - the driver script brackets results with these frames
// on stdout. Payload frames (value, errors) run until frameEnd; everything
// outside a frame is interpreter output and passes through.
const (
	frameReady   = "\x01RPLAY_READY\x01"
	frameDone    = "\x01RPLAY_DONE\x01"
	frameValue   = "\x01RPLAY_VALUE\x01"
	frameParse   = "\x01RPLAY_PARSE_ERROR\x01"
	frameRuntime = "\x01RPLAY_RUNTIME_ERROR\x01"
	frameEnd     = "\x01RPLAY_END\x01"
	eofLine      = "\x01RPLAY_EOF\x01"

	frameByte = '\x01'
)

var startFrames = []string{frameReady, frameDone, frameValue, frameParse, frameRuntime}

// evalOutcome is what the scanner hands back for one completed call, or for
// an interpreter death.
type evalOutcome struct {
	stdout   string
	value    string
	hasValue bool
	execErr  *ExecError
	fatal    error
}

// FrameScanner decodes the driver's stdout stream. It implements io.Writer
// so backends can wire it directly as the interpreter's stdout sink.
type FrameScanner struct {
	mu      sync.Mutex
	buf     bytes.Buffer // undecoded tail of the stream
	stdout  bytes.Buffer // current call's pass-through output
	payload *bytes.Buffer
	inFrame string

	value    string
	hasValue bool
	execErr  *ExecError

	ready   bool
	readyCh chan struct{}
	doneCh  chan evalOutcome
	fatal   error
}

// NewFrameScanner returns a scanner ready to receive the driver's stream.
func NewFrameScanner() *FrameScanner {
	return &FrameScanner{
		readyCh: make(chan struct{}),
		doneCh:  make(chan evalOutcome, 1),
	}
}

func (s *FrameScanner) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Write(data)
	s.process()
	return len(data), nil
}

func (s *FrameScanner) process() {
	content := s.buf.String()

	for {
		if s.payload != nil {
			idx := strings.Index(content, frameEnd)
			if idx == -1 {
				// Payload frames are small; hold until the end
				// marker arrives.
				break
			}
			s.payload.WriteString(content[:idx])
			content = content[idx+len(frameEnd):]
			s.closePayload()
			continue
		}

		idx := strings.IndexByte(content, frameByte)
		if idx == -1 {
			s.stdout.WriteString(content)
			content = ""
			break
		}
		s.stdout.WriteString(content[:idx])
		content = content[idx:]

		frame, ok := matchFrame(content)
		if !ok {
			if partialFrame(content) {
				break
			}
			// Stray \x01 in interpreter output; pass it through.
			s.stdout.WriteByte(frameByte)
			content = content[1:]
			continue
		}
		content = content[len(frame):]

		switch frame {
		case frameReady:
			if !s.ready {
				s.ready = true
				close(s.readyCh)
			}
		case frameValue, frameParse, frameRuntime:
			s.payload = &bytes.Buffer{}
			s.inFrame = frame
		case frameDone:
			s.deliverLocked(nil)
		}
	}

	s.buf.Reset()
	s.buf.WriteString(content)
}

func (s *FrameScanner) closePayload() {
	text := s.payload.String()
	switch s.inFrame {
	case frameValue:
		s.value = text
		s.hasValue = true
	case frameParse:
		s.execErr = &ExecError{Kind: KindParse, Message: text}
	case frameRuntime:
		s.execErr = &ExecError{Kind: KindRuntime, Message: text}
	}
	s.payload = nil
	s.inFrame = ""
}

// matchFrame reports which start frame content begins with, if any.
func matchFrame(content string) (string, bool) {
	for _, f := range startFrames {
		if strings.HasPrefix(content, f) {
			return f, true
		}
	}
	return "", false
}

// partialFrame reports whether content could still grow into a start frame.
func partialFrame(content string) bool {
	for _, f := range startFrames {
		if len(content) < len(f) && strings.HasPrefix(f, content) {
			return true
		}
	}
	return false
}

// deliverLocked snapshots the current call state onto doneCh and clears it
// for the next call. Callers hold s.mu.
func (s *FrameScanner) deliverLocked(fatal error) {
	out := evalOutcome{
		stdout:   s.stdout.String(),
		value:    s.value,
		hasValue: s.hasValue,
		execErr:  s.execErr,
		fatal:    fatal,
	}
	select {
	case s.doneCh <- out:
	default:
	}
	s.stdout.Reset()
	s.value = ""
	s.hasValue = false
	s.execErr = nil
}

// Ready is closed once the driver's READY handshake arrives.
func (s *FrameScanner) Ready() <-chan struct{} {
	return s.readyCh
}

// Done yields one outcome per completed (or fatally aborted) call.
func (s *FrameScanner) Done() <-chan evalOutcome {
	return s.doneCh
}

// Fail records that the interpreter died and wakes any waiter with a fatal
// outcome. Later calls observe the stored error via BeginCall.
func (s *FrameScanner) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal != nil {
		return
	}
	s.fatal = err
	s.deliverLocked(err)
}

// BeginCall clears per-call state ahead of a new eval. It fails immediately
// when the interpreter has already died.
func (s *FrameScanner) BeginCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fatal != nil {
		return s.fatal
	}

	select {
	case <-s.doneCh:
	default:
	}
	s.doneCh = make(chan evalOutcome, 1)
	s.stdout.Reset()
	s.value = ""
	s.hasValue = false
	s.execErr = nil
	return nil
}

// OutputBuffer is a concurrency-safe sink for the interpreter's stderr.
type OutputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (o *OutputBuffer) Write(data []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(data)
}

func (o *OutputBuffer) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

func (o *OutputBuffer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf.Reset()
}
