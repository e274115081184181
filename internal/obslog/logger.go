// Package obslog is the ambient structured-logging layer every component
// writes through: a thin Printf-style wrapper around a rotating file
// writer, stamping each record with a timestamp, the emitting component,
// and the process id, in the rotating-log pattern the persisted-artifact
// contract specifies.
package obslog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const timeFormat = "2006-01-02 15:04:05.000"

// MaxSizeMB and MaxBackups implement the 10 MiB x 3 files rotation the
// persisted-artifact contract calls for.
const (
	MaxSizeMB  = 10
	MaxBackups = 3
)

// NewRotatingWriter returns a lumberjack-backed io.Writer rotating at
// 10 MiB with 3 retained backups. An empty path means "no file logging":
// it returns os.Stderr instead.
func NewRotatingWriter(path string) io.Writer {
	if path == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		Compress:   false,
	}
}

// Logger stamps every record with a timestamp and a fixed component
// name, matching the `[ts] [level] [source] message` persisted pattern.
// Every package's Logger interface is structurally just Printf, so a
// *Logger satisfies all of them without an adapter.
type Logger struct {
	out    io.Writer
	source string
	pid    int

	mu sync.Mutex
}

// New returns a Logger writing to out, tagging every record with source
// (e.g. "pane[2]", "fanout", "supervisor").
func New(out io.Writer, source string) *Logger {
	return &Logger{out: out, source: source, pid: os.Getpid()}
}

// Printf formats and writes one record. Every record carries the fixed
// "info" level tag; a caller with its own level (the event pump, for
// decoder log severities) carries it inside the message text.
func (l *Logger) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format(timeFormat)

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] [info] [%s P%d] %s\n", ts, l.source, l.pid, msg)
}

// Sub returns a Logger writing to the same sink under a child source
// name, e.g. New(out, "pane").Sub("2") for per-pane tagging.
func (l *Logger) Sub(suffix string) *Logger {
	return &Logger{out: l.out, source: l.source + "." + suffix, pid: l.pid}
}
