// Package logging defines the structured logging surface used across the
// gateway: a Logger interface backed by zap, typed Field constructors, and
// a process-wide logger configured from LOG_LEVEL and LOG_FILE.
package logging

import (
	"context"
	"io"
	"strings"
	"sync"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a LOG_LEVEL value to a LogLevel. Unrecognized values
// fall back to InfoLevel rather than failing startup.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field is a structured key-value attached to a log entry. Use the typed
// constructors (String, Int, Duration, ...) rather than struct literals.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is implemented by the zap adapter. Error takes the error as its
// own argument so every error log carries an "error" field.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// LogConfig configures a logger. A nil Output logs to stdout.
type LogConfig struct {
	Level  LogLevel
	Output io.Writer
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
	initOnce     sync.Once
)

// SetGlobalLogger replaces the process-wide logger.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the process-wide logger, creating the default
// one on first use so components can log before InitGlobalLogger runs.
func GetGlobalLogger() Logger {
	initOnce.Do(func() {
		globalLogger = NewDefaultLogger()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Debug logs through the process-wide logger.
func Debug(msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

// Info logs through the process-wide logger.
func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

// Warn logs through the process-wide logger.
func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

// Error logs through the process-wide logger.
func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}
