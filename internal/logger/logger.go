package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured diagnostics for devx operations.
type Logger struct {
	zap *zap.Logger
}

// New creates a Logger that writes JSON lines to logPath.
// If logPath is empty, logging is disabled.
// If development is true, debug entries are written too.
func New(logPath string, development bool) (*Logger, error) {
	if logPath == "" {
		return Nop(), nil
	}

	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	var encoderConfig zapcore.EncoderConfig
	level := zapcore.InfoLevel
	if development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logFile),
		level,
	)

	return &Logger{zap: zap.New(core)}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// Close syncs the logger (should be called on shutdown).
func (l *Logger) Close() error {
	return l.zap.Sync()
}

// Edit logs a synthesized edit.
func (l *Logger) Edit(path string, start, end, added, removed int) {
	l.zap.Info("edit",
		zap.String("path", path),
		zap.Int("start", start),
		zap.Int("end", end),
		zap.Int("added", added),
		zap.Int("removed", removed),
	)
}

// Resolve logs a reconciliation.
func (l *Logger) Resolve(path, intent string, start, end int) {
	l.zap.Info("resolve",
		zap.String("path", path),
		zap.String("intent", intent),
		zap.Int("start", start),
		zap.Int("end", end),
	)
}

// LLMCall logs a model call.
func (l *Logger) LLMCall(provider, model string, promptTokens int, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Int("prompt_tokens", promptTokens),
		zap.Duration("duration", duration),
	}
	if err != nil {
		l.zap.Warn("llm call failed", append(fields, zap.Error(err))...)
		return
	}
	l.zap.Info("llm call", fields...)
}

// Error logs an error.
func (l *Logger) Error(msg string, err error) {
	l.zap.Error(msg, zap.Error(err))
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}
