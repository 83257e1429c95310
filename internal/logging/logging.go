// Package logging provides structured JSON logging for repcut.
// It uses log/slog, optionally teeing into a size-rotated log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for the log file.
const (
	DefaultMaxSizeMB  = 20
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 14
)

// ParseLevel maps debug, info, warn and error to a slog level. Unknown values
// are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// NewLogger creates a JSON logger writing to stdout.
func NewLogger(level string) *slog.Logger {
	return newLogger(os.Stdout, level)
}

// NewFileLogger creates a JSON logger writing to stdout and to a rotating
// file at path. The returned closer flushes and closes the file. An empty
// path behaves like NewLogger.
func NewFileLogger(level, path string) (*slog.Logger, io.Closer, error) {
	if path == "" {
		return NewLogger(level), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAgeDays,
		Compress:   true,
	}
	return newLogger(io.MultiWriter(os.Stdout, rotator), level), rotator, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithRequestID returns a logger with request_id attribute
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithComponent returns a logger with component attribute
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithJobID returns a logger with job_id attribute
func WithJobID(logger *slog.Logger, jobID string) *slog.Logger {
	return logger.With("job_id", jobID)
}

// WithSessionID returns a logger with session_id attribute
func WithSessionID(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}

// SanitizeToken masks a token for safe logging.
// Shows first 4 and last 4 characters only.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizePath replaces the home directory with ~.
func SanitizePath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
