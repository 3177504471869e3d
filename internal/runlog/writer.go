// Package runlog writes and follows append-only agent run logs.
package runlog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("run log closed")

// Writer appends lines to a log file through a buffer that is flushed
// periodically and on Close. It keeps the last lines in memory for
// completion summaries.
type Writer struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	buf    *bufio.Writer
	tail   *ring
	closed bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// Open creates or appends to the log at path. A non-positive flushEvery
// disables the background flusher, so data reaches disk only on Flush or
// Close.
func Open(path string, flushEvery time.Duration, tailLines int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	w := &Writer{
		path: path,
		f:    f,
		buf:  bufio.NewWriterSize(f, 32*1024),
		tail: newRing(tailLines),
		stop: make(chan struct{}),
	}
	if flushEvery > 0 {
		w.wg.Add(1)
		go w.flushLoop(flushEvery)
	}
	return w, nil
}

// Path returns the log file path.
func (w *Writer) Path() string { return w.path }

func (w *Writer) flushLoop(every time.Duration) {
	defer w.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.stop:
			return
		}
	}
}

// WriteLine appends line and a newline.
func (w *Writer) WriteLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	line = strings.TrimRight(line, "\r\n")
	w.tail.push(line)
	if _, err := w.buf.WriteString(line); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

// Write implements io.Writer, splitting p into lines for the tail buffer.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	if trimmed := strings.TrimRight(string(p), "\n"); trimmed != "" {
		for _, line := range strings.Split(trimmed, "\n") {
			w.tail.push(line)
		}
	}
	return w.buf.Write(p)
}

// Flush writes buffered data to the file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.buf.Flush()
}

// Tail returns the most recent lines joined by newlines.
func (w *Writer) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Join(w.tail.lines(), "\n")
}

// Close flushes and closes the file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	flushErr := w.buf.Flush()
	closeErr := w.f.Close()
	w.mu.Unlock()

	close(w.stop)
	w.wg.Wait()
	return errors.Join(flushErr, closeErr)
}

type ring struct {
	buf  []string
	next int
	full bool
}

func newRing(n int) *ring {
	if n <= 0 {
		n = 1
	}
	return &ring{buf: make([]string, n)}
}

func (r *ring) push(s string) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) lines() []string {
	if !r.full {
		return append([]string(nil), r.buf[:r.next]...)
	}
	out := make([]string, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
