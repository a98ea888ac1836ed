package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs a JSON slog handler as the default logger. level is one of
// debug, info, warn or error; empty falls back to LOG_LEVEL, then info.
func Init(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	slog.SetDefault(l)
	return l
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
