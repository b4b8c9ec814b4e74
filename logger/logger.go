// Package logger provides leveled logging with key/value fields.
//
// Lines look like:
//
//	2026-10-19 14:03:11 [INFO] wrote output | run=3f2a input=Foo.tt path=Foo.cs
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config value such as "debug" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "off":
		return LevelSilent, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger provides structured logging with configurable levels
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
	SetLevel(level Level)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value any
}

// F is a convenience function for creating fields
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err is shorthand for F("error", err).
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// sink is shared by a logger and everything derived from it with
// WithFields, so SetLevel on the root applies to all of them.
type sink struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
	now   func() time.Time
}

type standardLogger struct {
	sink   *sink
	fields []Field
}

// NewLogger creates a new logger with the specified level and output
func NewLogger(level Level, out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}
	return &standardLogger{sink: &sink{level: level, out: out, now: time.Now}}
}

// NewSilentLogger creates a logger that outputs nothing
func NewSilentLogger() Logger {
	return NewLogger(LevelSilent, io.Discard)
}

func (l *standardLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

func (l *standardLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &standardLogger{sink: l.sink, fields: merged}
}

func (l *standardLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *standardLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *standardLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *standardLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

func (l *standardLogger) log(level Level, msg string, fields []Field) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level < l.sink.level {
		return
	}

	var b strings.Builder
	b.WriteString(l.sink.now().Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] ")
	b.WriteString(msg)

	if len(l.fields)+len(fields) > 0 {
		b.WriteString(" |")
		for _, f := range l.fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
		for _, f := range fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(l.sink.out, b.String())
}

// Global default logger
var (
	defaultMu     sync.RWMutex
	defaultLogger = NewLogger(LevelInfo, os.Stderr)
)

// SetDefault sets the global default logger
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the global default logger
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}
