// Package logger provides structured file logging for the telegate hook.
//
// Hook processes must keep stdout clean for the decision JSON and stderr
// clean for host-visible messages, so all diagnostics go to a log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Logger provides the structured logging interface.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...any)

	// With returns a new logger with additional key-value pairs.
	With(keysAndValues ...any) Logger
}

// Level represents the log level.
type Level int

const (
	// LevelDebug enables all log output.
	LevelDebug Level = iota

	// LevelInfo enables info and error output.
	LevelInfo

	// LevelError enables error output only.
	LevelError
)

// LogFilePermissions defines the file permissions for log files (owner read/write only).
const LogFilePermissions = 0o600

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelError: "ERROR",
}

// ParseLevel maps a level name to its Level, defaulting to LevelInfo for
// unrecognized input.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// FileLogger implements Logger with file output only.
type FileLogger struct {
	file    io.Writer
	baseKVs []any
	level   Level
}

// NewFileLogger creates a FileLogger appending to the given path.
func NewFileLogger(filePath string, level Level) (*FileLogger, error) {
	//nolint:gosec // File path is controlled and within user home directory
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &FileLogger{
		file:  file,
		level: level,
	}, nil
}

// NewFileLoggerWithWriter creates a FileLogger with a custom writer.
func NewFileLoggerWithWriter(file io.Writer, level Level) *FileLogger {
	return &FileLogger{
		file:  file,
		level: level,
	}
}

// Debug logs debug-level messages.
func (l *FileLogger) Debug(msg string, keysAndValues ...any) {
	if l.level > LevelDebug {
		return
	}

	l.log(LevelDebug, msg, keysAndValues...)
}

// Info logs info-level messages.
func (l *FileLogger) Info(msg string, keysAndValues ...any) {
	if l.level > LevelInfo {
		return
	}

	l.log(LevelInfo, msg, keysAndValues...)
}

// Error logs error-level messages.
func (l *FileLogger) Error(msg string, keysAndValues ...any) {
	l.log(LevelError, msg, keysAndValues...)
}

// With returns a new logger with additional base key-value pairs.
//
//nolint:ireturn // With is intended to return an interface for chaining
func (l *FileLogger) With(keysAndValues ...any) Logger {
	newKVs := make([]any, len(l.baseKVs)+len(keysAndValues))
	copy(newKVs, l.baseKVs)
	copy(newKVs[len(l.baseKVs):], keysAndValues)

	return &FileLogger{
		file:    l.file,
		baseKVs: newKVs,
		level:   l.level,
	}
}

// log writes one entry to the file.
func (l *FileLogger) log(level Level, msg string, keysAndValues ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var builder strings.Builder

	builder.WriteString(timestamp)
	builder.WriteString(" ")
	builder.WriteString(levelNames[level])
	builder.WriteString(" ")
	builder.WriteString(msg)

	if len(l.baseKVs) > 0 {
		l.writeKeyValues(&builder, l.baseKVs)
	}

	if len(keysAndValues) > 0 {
		l.writeKeyValues(&builder, keysAndValues)
	}

	builder.WriteString("\n")

	if l.file != nil {
		_, _ = l.file.Write([]byte(builder.String()))
	}
}

// writeKeyValues formats key-value pairs and appends to builder.
func (l *FileLogger) writeKeyValues(builder *strings.Builder, kvs []any) {
	for i := 0; i < len(kvs); i += 2 {
		if i+1 >= len(kvs) {
			// Odd number of arguments, skip the last one
			break
		}

		key := fmt.Sprintf("%v", kvs[i])
		value := fmt.Sprintf("%v", kvs[i+1])

		builder.WriteString(" ")
		builder.WriteString(key)
		builder.WriteString("=")

		if strings.ContainsAny(value, " \t\n\"") {
			builder.WriteString(l.quote(value))
		} else {
			builder.WriteString(value)
		}
	}
}

// quote escapes and quotes a string value.
func (*FileLogger) quote(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")

	return "\"" + s + "\""
}

// NoOpLogger is a logger that does nothing.
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug does nothing.
func (*NoOpLogger) Debug(string, ...any) {}

// Info does nothing.
func (*NoOpLogger) Info(string, ...any) {}

// Error does nothing.
func (*NoOpLogger) Error(string, ...any) {}

// With returns the same NoOpLogger.
//
//nolint:ireturn // With is intended to return an interface for chaining
func (n *NoOpLogger) With(...any) Logger {
	return n
}
