// Package log provides structured logging for the Conductor process.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for hot orchestration paths (buffer
//     flush, injection, audit append).
//   - SugaredLogger: printf-style logging for CLI/debug surfaces.
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with process-wide context fields.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI and debug surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a new Logger. Output defaults to os.Stderr so it never
// collides with the wrapped worker's own pass-through terminal output.
func New() *Logger {
	return newLoggerWithWriter(os.Stderr)
}

// WithOutput returns a new Logger writing to w instead of os.Stderr.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := zapcore.NewCore(jsonEncoder(), zapcore.AddSync(w), zapcore.DebugLevel)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

// WithRequest returns a Logger with request-scoped context fields attached,
// so every subsequent log line from a request's lifecycle is correlated.
func (l *Logger) WithRequest(requestID string, kind string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("request_id", requestID), zap.String("kind", kind))}
}

func newLoggerWithWriter(w io.Writer) *Logger {
	core := zapcore.NewCore(jsonEncoder(), zapcore.AddSync(w), zapcore.DebugLevel)
	return &Logger{zap: zap.New(core)}
}

func jsonEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) { l.zap.Debug(message, zap.Any("fields", fields)) }

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) { l.zap.Info(message, zap.Any("fields", fields)) }

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) { l.zap.Warn(message, zap.Any("fields", fields)) }

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) { l.zap.Error(message, zap.Any("fields", fields)) }

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger { return &SugaredLogger{sugar: l.zap.Sugar()} }

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) { s.sugar.Debugf(template, args...) }

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) { s.sugar.Infof(template, args...) }

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) { s.sugar.Warnf(template, args...) }

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) { s.sugar.Errorf(template, args...) }

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger { return &SugaredLogger{sugar: s.sugar.With(args...)} }
