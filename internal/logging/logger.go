// Package logging provides structured logging for audit runs. It wraps
// log/slog to emit JSON-formatted entries carrying run, tier, and stage
// attributes so a completed run can be reconstructed from its log.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels accepted by NewLogger and config.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Logger wraps slog with child-logger helpers for audit attributes.
// It is safe for concurrent use.
type Logger struct {
	sl   *slog.Logger
	mu   sync.Mutex
	file *os.File
}

// NewLogger creates a Logger writing JSON entries to {dir}/audit.log.
// If dir is empty, entries go to stderr.
func NewLogger(dir, level string) (*Logger, error) {
	var w io.Writer = os.Stderr
	var file *os.File

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		path := filepath.Join(dir, "audit.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		file = f
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{sl: slog.New(handler), file: file}, nil
}

// NopLogger returns a Logger that discards all output. Used in tests and
// wherever logging is disabled.
func NopLogger() *Logger {
	return &Logger{sl: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRun returns a child logger carrying the run id on every entry.
func (l *Logger) WithRun(runID string) *Logger {
	return l.child("run_id", runID)
}

// WithStage returns a child logger carrying the stage id on every entry.
func (l *Logger) WithStage(stageID string) *Logger {
	return l.child("stage", stageID)
}

// WithTier returns a child logger carrying the tier name ("analysis",
// "evaluation", "synthesis") on every entry.
func (l *Logger) WithTier(tier string) *Logger {
	return l.child("tier", tier)
}

// With returns a child logger with arbitrary alternating key-value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sl: l.sl.With(args...), file: l.file}
}

func (l *Logger) child(key, value string) *Logger {
	return &Logger{sl: l.sl.With(slog.String(key, value)), file: l.file}
}

// Debug logs at DEBUG level with alternating key-value pairs.
func (l *Logger) Debug(msg string, args ...any) { l.sl.Debug(msg, args...) }

// Info logs at INFO level with alternating key-value pairs.
func (l *Logger) Info(msg string, args ...any) { l.sl.Info(msg, args...) }

// Warn logs at WARN level with alternating key-value pairs.
func (l *Logger) Warn(msg string, args ...any) { l.sl.Warn(msg, args...) }

// Error logs at ERROR level with alternating key-value pairs.
func (l *Logger) Error(msg string, args ...any) { l.sl.Error(msg, args...) }

// Close flushes and closes the underlying log file. It is a no-op for
// loggers writing to stderr or discard.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	l.file = nil
	return nil
}

// ValidLevels returns the accepted log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
