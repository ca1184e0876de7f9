// Package relay forwards a process's console output into the output link.
package relay

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Sender is the part of the bus the relay needs.
type Sender interface {
	SendOutput(text string) error
}

// Writer turns every Write into one output frame. A rune split across two
// writes is held back until its remaining bytes arrive.
type Writer struct {
	s     Sender
	mu    sync.Mutex
	carry []byte
}

// NewWriter returns a Writer sending through s.
func NewWriter(s Sender) *Writer {
	return &Writer{s: s}
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := p
	if len(w.carry) > 0 {
		data = append(w.carry, p...)
		w.carry = nil
	}
	cut := completePrefix(data)
	if cut < len(data) {
		w.carry = append([]byte(nil), data[cut:]...)
	}
	if cut == 0 {
		return len(p), nil
	}
	text := strings.ToValidUTF8(string(data[:cut]), string(utf8.RuneError))
	if err := w.s.SendOutput(text); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush is a no-op: frames leave on every Write.
func (w *Writer) Flush() error { return nil }

// Close sends any held back bytes.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.carry) == 0 {
		return nil
	}
	text := strings.ToValidUTF8(string(w.carry), string(utf8.RuneError))
	w.carry = nil
	return w.s.SendOutput(text)
}

// completePrefix returns the length of data without a trailing incomplete
// UTF-8 sequence.
func completePrefix(data []byte) int {
	n := len(data)
	for i := 1; i < utf8.UTFMax && i <= n; i++ {
		c := data[n-i]
		if utf8.RuneStart(c) {
			if !utf8.FullRune(data[n-i:]) {
				return n - i
			}
			return n
		}
	}
	return n
}

// Scope is an active redirection of os.Stdout, os.Stderr and the std log
// output. Release undoes it.
type Scope struct {
	w      *Writer
	pr, pw *os.File
	done   chan struct{}

	stdout, stderr *os.File
	logOut         io.Writer

	once    sync.Once
	err     error
	pumpErr error
}

// Activate redirects the process's console output into s until Release.
// Log output that already goes to a file keeps going there and is also relayed.
func Activate(s Sender) (*Scope, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("relay: pipe: %w", err)
	}
	sc := &Scope{
		w:      NewWriter(s),
		pr:     pr,
		pw:     pw,
		done:   make(chan struct{}),
		stdout: os.Stdout,
		stderr: os.Stderr,
		logOut: log.Writer(),
	}
	os.Stdout = pw
	os.Stderr = pw
	if sc.logOut == sc.stderr || sc.logOut == sc.stdout {
		log.SetOutput(pw)
	} else {
		log.SetOutput(io.MultiWriter(sc.logOut, pw))
	}
	go sc.pump()
	return sc, nil
}

func (sc *Scope) pump() {
	defer close(sc.done)
	buf := make([]byte, 32*1024)
	for {
		n, err := sc.pr.Read(buf)
		if n > 0 {
			if _, werr := sc.w.Write(buf[:n]); werr != nil && sc.pumpErr == nil {
				sc.pumpErr = werr
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && sc.pumpErr == nil {
				sc.pumpErr = err
			}
			return
		}
	}
}

// ReleaseTimeout bounds how long Release waits for the pump to forward what
// was written inside the scope. A peer that never drains the output link
// would otherwise hold the process at shutdown.
var ReleaseTimeout = 2 * time.Second

// ErrReleaseTimeout is returned by Release when the pump did not finish in
// time. Output still in flight is abandoned.
var ErrReleaseTimeout = errors.New("relay: output still pending at release")

// Release restores the original destinations and waits until everything
// written inside the scope has been forwarded, or ReleaseTimeout passes. It is
// safe to call repeatedly; later calls return the first result.
func (sc *Scope) Release() error {
	sc.once.Do(func() {
		os.Stdout = sc.stdout
		os.Stderr = sc.stderr
		log.SetOutput(sc.logOut)
		_ = sc.pw.Close()

		timer := time.NewTimer(ReleaseTimeout)
		defer timer.Stop()
		select {
		case <-sc.done:
		case <-timer.C:
			// the pump is stuck in a send; closing the read end ends it once
			// the send returns
			_ = sc.pr.Close()
			sc.err = ErrReleaseTimeout
			return
		}
		_ = sc.pr.Close()
		if err := sc.w.Close(); err != nil && sc.pumpErr == nil {
			sc.pumpErr = err
		}
		if sc.pumpErr != nil {
			sc.err = fmt.Errorf("relay: %w", sc.pumpErr)
		}
	})
	return sc.err
}
