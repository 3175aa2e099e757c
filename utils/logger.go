package utils

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Logger is safe to use as nil, then it drops everything.
type Logger struct {
	io.Writer
}

func NewLogger(w io.Writer) *Logger {
	if w == nil {
		return nil
	}
	return &Logger{Writer: w}
}

func (l *Logger) Printf(format string, a ...interface{}) {
	if l != nil {
		fmt.Fprintf(l, format+"\n", a...)
	}
}

func (l *Logger) Warnf(format string, a ...interface{}) {
	l.Printf("warning: "+format, a...)
}

// WarningsWriter passes only the lines that are warnings.
type WarningsWriter struct {
	w    io.Writer
	mu   sync.Mutex
	line bytes.Buffer
}

func NewWarningsWriter(w io.Writer) *WarningsWriter {
	return &WarningsWriter{w: w}
}

func (ww *WarningsWriter) Write(p []byte) (int, error) {
	ww.mu.Lock()
	defer ww.mu.Unlock()

	ww.line.Write(p)
	for {
		data := ww.line.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := string(data[:i+1])
		ww.line.Next(i + 1)
		if strings.HasPrefix(line, "warning: ") {
			if _, err := io.WriteString(ww.w, line); err != nil {
				return len(p), err
			}
		}
	}
	return len(p), nil
}
