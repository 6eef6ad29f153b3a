// Package logger provides structured logging for the engine.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with engine-specific child-logger helpers.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// New creates a new structured logger.
func New(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "miniql").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message.
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// WithFields returns a logger with additional fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// StorageLogger returns a logger scoped to the page manager / buffer pool /
// B-tree subsystem.
func (l *Logger) StorageLogger() *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", "storage").Logger()}
}

// WalLogger returns a logger scoped to the write-ahead log.
func (l *Logger) WalLogger() *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", "wal").Logger()}
}

// QueryLogger returns a logger scoped to a single SQL statement's
// parse/plan/execute lifecycle.
func (l *Logger) QueryLogger(stmtKind string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "query").
			Str("stmt_kind", stmtKind).
			Logger(),
	}
}

// LogDbOperation logs a storage-layer operation with structured fields.
func (l *Logger) LogDbOperation(operation string, duration time.Duration, recordCount int, err error) {
	event := l.zlog.Debug().
		Str("component", "storage").
		Str("operation", operation).
		Dur("duration_ms", duration).
		Int("record_count", recordCount)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "storage").
			Str("operation", operation).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("storage operation completed")
}

// LogQuery logs a completed SQL statement execution.
func (l *Logger) LogQuery(sql string, duration time.Duration, err error) {
	event := l.zlog.Info().
		Str("component", "query").
		Str("sql", sql).
		Dur("duration_ms", duration)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "query").
			Str("sql", sql).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("statement executed")
}

// Global logger instance.
var globalLogger *Logger

// InitGlobal initializes the global logger.
func InitGlobal(cfg Config) {
	globalLogger = New(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// Global returns the global logger instance, initializing it with defaults
// on first use if InitGlobal was never called.
func Global() *Logger {
	if globalLogger == nil {
		InitGlobal(Config{Level: "info", Pretty: true})
	}
	return globalLogger
}
