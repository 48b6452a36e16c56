package logging

import (
	"log/slog"
	"os"
)

// Init installs the default slog logger. An explicit level wins over
// LOG_LEVEL; fallback is used when neither names a known level.
func Init(level string, fallback slog.Level) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: ParseLevel(level, fallback),
		}),
	)
	slog.SetDefault(logger)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string, fallback slog.Level) slog.Level {
	switch name {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return fallback
}
