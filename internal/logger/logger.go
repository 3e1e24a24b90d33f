package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is what the engine, the HTTP server and the CLI report through.
// Info, Warning and Error are for the debug log; the ToUser variants,
// Success and StatusMessage talk to whoever is running simpletext.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	InfoToUser(format string, args ...interface{})
	WarningToUser(format string, args ...interface{})
	Success(format string, args ...interface{})
	StatusMessage(format string, args ...interface{})

	// Close flushes and closes the log file, if any.
	Close() error
}

// DefaultLogger writes structured zerolog records to a log file and
// decorated user messages to the console.
type DefaultLogger struct {
	mu      sync.Mutex
	records zerolog.Logger
	enabled bool
	logFile string
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
	file    *os.File
}

// echo selects the console stream a message is mirrored to.
type echo int

const (
	echoNone echo = iota
	echoStdout
	echoVerbose
	echoStderr
)

// New returns a DefaultLogger printing to the process's stdout and stderr.
func New(enabled bool, logFile string, verbose bool) *DefaultLogger {
	return NewWithOutput(enabled, logFile, verbose, os.Stdout, os.Stderr)
}

// NewWithOutput returns a DefaultLogger printing to the given writers. When
// enabled, records are appended to logFile, creating its directory first. If
// the file cannot be opened records go to stderr in console format instead.
func NewWithOutput(enabled bool, logFile string, verbose bool, stdout, stderr io.Writer) *DefaultLogger {
	l := &DefaultLogger{
		records: zerolog.Nop(),
		enabled: enabled,
		logFile: logFile,
		verbose: verbose,
		stdout:  stdout,
		stderr:  stderr,
	}
	if !enabled {
		return l
	}

	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_, _ = fmt.Fprintf(stderr, "⚠️ Cannot create log directory %s: %v\n", dir, err)
		}
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "⚠️ Cannot open log file (%v), logging to stderr\n", err)
		l.records = zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
		return l
	}

	l.file = f
	l.records = zerolog.New(f).With().Timestamp().Str("app", "simpletext").Logger()
	_, _ = fmt.Fprintf(stdout, "🔍 Debug logging enabled. Logs will be written to: %s\n", logFile)
	l.records.Info().Msg("simpletext debug logging started")
	return l
}

// emit writes one record at level (tagged user=true for user messages) and
// mirrors it to the console stream chosen by to, prefixed by marker.
func (l *DefaultLogger) emit(level zerolog.Level, user bool, to echo, marker, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled && level != zerolog.NoLevel {
		ev := l.records.WithLevel(level)
		if user {
			ev = ev.Bool("user", true)
		}
		ev.Msg(msg)
	}

	var w io.Writer
	switch to {
	case echoStdout:
		w = l.stdout
	case echoVerbose:
		if l.verbose {
			w = l.stdout
		}
	case echoStderr:
		w = l.stderr
	}
	if w != nil {
		_, _ = fmt.Fprintln(w, marker+msg)
	}
}

// Info records a debug message. Nothing is printed.
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.emit(zerolog.InfoLevel, false, echoNone, "", format, args)
}

// Warning records a warning and prints it in verbose mode.
func (l *DefaultLogger) Warning(format string, args ...interface{}) {
	l.emit(zerolog.WarnLevel, false, echoVerbose, "⚠️  ", format, args)
}

// Error records an error and always prints it to stderr.
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.emit(zerolog.ErrorLevel, false, echoStderr, "❌ ", format, args)
}

func (l *DefaultLogger) InfoToUser(format string, args ...interface{}) {
	l.emit(zerolog.InfoLevel, true, echoStdout, "ℹ️  ", format, args)
}

func (l *DefaultLogger) WarningToUser(format string, args ...interface{}) {
	l.emit(zerolog.WarnLevel, true, echoStdout, "⚠️  ", format, args)
}

func (l *DefaultLogger) Success(format string, args ...interface{}) {
	l.emit(zerolog.InfoLevel, true, echoStdout, "✅ ", format, args)
}

// StatusMessage prints a bare line to stdout and is never recorded.
func (l *DefaultLogger) StatusMessage(format string, args ...interface{}) {
	l.emit(zerolog.NoLevel, false, echoStdout, "", format, args)
}

// Close syncs and closes the log file. Later records are dropped.
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	l.records = zerolog.Nop()
	l.enabled = false

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// SetStdout redirects user-facing stdout messages. Records are unaffected.
func (l *DefaultLogger) SetStdout(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = w
}

// SetStderr redirects user-facing stderr messages. Records are unaffected.
func (l *DefaultLogger) SetStderr(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stderr = w
}

// Discard returns a logger that drops every message.
func Discard() *DefaultLogger {
	return NewWithOutput(false, "", false, io.Discard, io.Discard)
}
