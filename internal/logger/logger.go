package logger

import (
	"log/slog"
	"os"
	"strings"
)

var defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Init configures the process-wide JSON logger at the given level.
func Init(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	defaultLogger.Info("logger initialized", "level", lvl.String())
}

// Logger returns the underlying slog logger.
func Logger() *slog.Logger {
	return defaultLogger
}

// SetLogger replaces the logger (tests).
func SetLogger(l *slog.Logger) {
	defaultLogger = l
}

func Debug(msg string, fields map[string]any) {
	defaultLogger.Debug(msg, attrs(fields)...)
}

func Info(msg string, fields map[string]any) {
	defaultLogger.Info(msg, attrs(fields)...)
}

func Warn(msg string, fields map[string]any) {
	defaultLogger.Warn(msg, attrs(fields)...)
}

func Error(msg string, fields map[string]any) {
	defaultLogger.Error(msg, attrs(fields)...)
}

// TruncateID shortens opaque identifiers so they can be logged.
func TruncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func attrs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields))
	for k, v := range fields {
		out = append(out, slog.Any(k, v))
	}
	return out
}
