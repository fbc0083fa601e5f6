// Package logging provides structured logging using zap
package logging

import (
	"context"
	"fmt"
	"os"
)

// NewDefaultLogger creates a stdout logger at the LOG_LEVEL severity.
func NewDefaultLogger() Logger {
	config := LogConfig{Level: ParseLevel(os.Getenv("LOG_LEVEL"))}
	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger initializes the global logger from LOG_LEVEL and LOG_FILE
func InitGlobalLogger() {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))

	config := LogConfig{Level: level}

	// Log to a file when one is configured, stdout otherwise
	if logFileName := os.Getenv("LOG_FILE"); logFileName != "" {
		file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			panic(fmt.Sprintf("failed to open log file %s: %v", logFileName, err))
		}
		config.Output = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		Field{"level", level.String()},
	)
}

// MustSync flushes any buffered log entries for zap loggers
// This should be called before application exit
func MustSync() {
	logger := GetGlobalLogger()
	if zapLogger, ok := logger.(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// WithContext is a convenience function to add context to the global logger
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields is a convenience function to add fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

// Strings creates a string slice field
func Strings(key string, values []string) Field {
	return Field{Key: key, Value: values}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
