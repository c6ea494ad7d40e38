package interp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func feed(t *testing.T, s *FrameScanner, data string, chunk int) {
	t.Helper()
	for i := 0; i < len(data); i += chunk {
		end := i + chunk
		if end > len(data) {
			end = len(data)
		}
		if _, err := s.Write([]byte(data[i:end])); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
}

func TestScannerReady(t *testing.T) {
	s := NewFrameScanner()
	feed(t, s, frameReady, 1)

	select {
	case <-s.Ready():
	default:
		t.Fatal("expected ready after READY frame")
	}
}

func TestScannerPlainOutput(t *testing.T) {
	s := NewFrameScanner()
	feed(t, s, frameReady+"hello\nworld\n"+frameDone, 3)

	out := <-s.Done()
	if out.stdout != "hello\nworld\n" {
		t.Errorf("unexpected stdout: %q", out.stdout)
	}
	if out.hasValue || out.execErr != nil {
		t.Errorf("expected bare output, got value=%v err=%v", out.hasValue, out.execErr)
	}
}

func TestScannerValueFrame(t *testing.T) {
	for chunk := 1; chunk <= 7; chunk++ {
		s := NewFrameScanner()
		feed(t, s, frameReady+"printed\n"+frameValue+"[1] 6"+frameEnd+frameDone, chunk)

		out := <-s.Done()
		if out.stdout != "printed\n" {
			t.Errorf("chunk=%d: unexpected stdout: %q", chunk, out.stdout)
		}
		if !out.hasValue || out.value != "[1] 6" {
			t.Errorf("chunk=%d: unexpected value: %q (has=%v)", chunk, out.value, out.hasValue)
		}
	}
}

func TestScannerParseError(t *testing.T) {
	s := NewFrameScanner()
	feed(t, s, frameParse+"unexpected end of input"+frameEnd+frameDone, 5)

	out := <-s.Done()
	if out.execErr == nil || out.execErr.Kind != KindParse {
		t.Fatalf("expected parse error, got %v", out.execErr)
	}
	if !strings.Contains(out.execErr.Message, "unexpected end") {
		t.Errorf("unexpected message: %q", out.execErr.Message)
	}
	if out.stdout != "" {
		t.Errorf("parse error must carry no output, got %q", out.stdout)
	}
}

func TestScannerRuntimeErrorKeepsPartialOutput(t *testing.T) {
	s := NewFrameScanner()
	feed(t, s, "before failure\n"+frameRuntime+"object 'x' not found"+frameEnd+frameDone, 4)

	out := <-s.Done()
	if out.execErr == nil || out.execErr.Kind != KindRuntime {
		t.Fatalf("expected runtime error, got %v", out.execErr)
	}
	if out.stdout != "before failure\n" {
		t.Errorf("expected partial output preserved, got %q", out.stdout)
	}
}

func TestScannerStrayControlByte(t *testing.T) {
	s := NewFrameScanner()
	feed(t, s, "a\x01b"+frameDone, 2)

	out := <-s.Done()
	if out.stdout != "a\x01b" {
		t.Errorf("stray control byte should pass through, got %q", out.stdout)
	}
}

func TestScannerConsecutiveCalls(t *testing.T) {
	s := NewFrameScanner()

	feed(t, s, "first"+frameDone, 1)
	out := <-s.Done()
	if out.stdout != "first" {
		t.Fatalf("unexpected first stdout: %q", out.stdout)
	}

	if err := s.BeginCall(); err != nil {
		t.Fatalf("begin call: %v", err)
	}
	feed(t, s, "second"+frameValue+"v"+frameEnd+frameDone, 1)
	out = <-s.Done()
	if out.stdout != "second" || out.value != "v" {
		t.Errorf("second call leaked state: stdout=%q value=%q", out.stdout, out.value)
	}
}

func TestScannerFail(t *testing.T) {
	s := NewFrameScanner()
	boom := errors.New("process exited")
	s.Fail(boom)

	out := <-s.Done()
	if out.fatal == nil {
		t.Fatal("expected fatal outcome")
	}
	if err := s.BeginCall(); !errors.Is(err, boom) {
		t.Errorf("expected stored fatal error, got %v", err)
	}
}

func TestConnEvalRoundTrip(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	c := NewConn(stdinW)

	sent := make(chan string, 1)
	go func() {
		// Simulate the driver: handshake, read one code block, answer.
		c.Stdout().Write([]byte(frameReady))

		scanner := bufio.NewScanner(stdinR)
		var lines []string
		for scanner.Scan() {
			if scanner.Text() == eofLine {
				break
			}
			lines = append(lines, scanner.Text())
		}
		sent <- strings.Join(lines, "\n")

		c.Stderr().Write([]byte("warn: something\n"))
		c.Stdout().Write([]byte("out\n" + frameValue + "[1] 2" + frameEnd + frameDone))
	}()

	if err := c.WaitReady(time.Second); err != nil {
		t.Fatalf("wait ready: %v", err)
	}

	res, err := c.Eval(context.Background(), "1 + 1")
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if res.Stdout != "out\n" || res.Value != "[1] 2" || !res.HasValue {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Stderr != "warn: something\n" {
		t.Errorf("unexpected stderr: %q", res.Stderr)
	}

	if got := <-sent; got != "1 + 1" {
		t.Errorf("unexpected code sent to driver: %q", got)
	}
}

func TestConnEvalAfterFail(t *testing.T) {
	c := NewConn(&bytes.Buffer{})
	c.Fail(errors.New("dead"))

	_, err := c.Eval(context.Background(), "1")
	if !errors.Is(err, ErrInterpreterFatal) {
		t.Fatalf("expected interpreter fatal, got %v", err)
	}
}
