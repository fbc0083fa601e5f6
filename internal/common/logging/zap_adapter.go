// Package logging provides zap-based structured logging
package logging

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter wraps zap.Logger to implement our Logger interface
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZapLogger creates a new zap-based logger
func NewZapLogger(config LogConfig) (Logger, error) {
	zapLevel := convertToZapLevel(config.Level)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var writer zapcore.WriteSyncer
	if config.Output != nil {
		writer = zapcore.AddSync(config.Output)
	} else {
		writer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, writer, zapLevel)
	return &ZapAdapter{logger: zap.New(core, zap.AddCaller())}, nil
}

// Debug logs a debug message
func (z *ZapAdapter) Debug(msg string, fields ...Field) {
	z.logger.Debug(msg, convertFields(fields)...)
}

// Info logs an info message
func (z *ZapAdapter) Info(msg string, fields ...Field) {
	z.logger.Info(msg, convertFields(fields)...)
}

// Warn logs a warning message
func (z *ZapAdapter) Warn(msg string, fields ...Field) {
	z.logger.Warn(msg, convertFields(fields)...)
}

// Error logs an error message
func (z *ZapAdapter) Error(msg string, err error, fields ...Field) {
	zapFields := convertFields(fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	z.logger.Error(msg, zapFields...)
}

// WithFields returns a new logger with additional fields
func (z *ZapAdapter) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return z
	}

	return &ZapAdapter{logger: z.logger.With(convertFields(fields)...)}
}

// WithContext returns a new logger with context fields
func (z *ZapAdapter) WithContext(ctx context.Context) Logger {
	fields := []zap.Field{}

	if requestID, ok := ctx.Value("request_id").(string); ok {
		fields = append(fields, zap.String("request_id", requestID))
	}

	if merchantID, ok := ctx.Value("merchant_id").(string); ok {
		fields = append(fields, zap.String("merchant_id", merchantID))
	}

	if len(fields) == 0 {
		return z
	}

	return &ZapAdapter{logger: z.logger.With(fields...)}
}

// Sync flushes any buffered log entries
func (z *ZapAdapter) Sync() error {
	return z.logger.Sync()
}

// convertToZapLevel converts our LogLevel to zap's Level
func convertToZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// convertFields converts our Field type to zap.Field
func convertFields(fields []Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, field := range fields {
		zapFields[i] = zap.Any(field.Key, field.Value)
	}
	return zapFields
}

// Common typed field constructors for better performance

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Time creates a time field
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Any creates a field with any value
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
