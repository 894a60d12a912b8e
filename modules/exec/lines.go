package exec

import (
	"bytes"
	"strings"
	"sync"
)

const tailLines = 5

// lineWriter splits process output into lines and keeps the last few for
// error messages.
type lineWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	tail []string
	emit func(string)
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf.Next(i+1)), "\r\n")
		w.line(line)
	}
	return len(p), nil
}

// Flush emits a trailing line that has no newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.line(w.buf.String())
		w.buf.Reset()
	}
}

// Tail returns the last lines written, joined with " | ".
func (w *lineWriter) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.tail) == 0 {
		return "(no output)"
	}
	return strings.Join(w.tail, " | ")
}

func (w *lineWriter) line(s string) {
	w.tail = append(w.tail, s)
	if len(w.tail) > tailLines {
		w.tail = w.tail[1:]
	}
	if w.emit != nil {
		w.emit(s)
	}
}
