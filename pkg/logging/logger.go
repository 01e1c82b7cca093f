package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger so components can share one JSON logger.
type Logger struct {
	*slog.Logger
}

// New creates a JSON logger on stdout at the given level.
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter is New with a custom destination.
func NewWithWriter(level string, w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{Logger: slog.New(handler)}
}

// Default returns an info-level logger.
func Default() *Logger {
	return New("info")
}

// ParseLevel maps debug|info|warn|error to a slog level; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
