package logger

import (
	"log/slog"
	"os"
)

var (
	log   *slog.Logger
	level = new(slog.LevelVar)
)

func init() {
	if os.Getenv("CONDUCTOR_DEBUG") == "true" {
		level.Set(slog.LevelDebug)
	}

	opts := &slog.HandlerOptions{Level: level}
	handler := slog.NewTextHandler(os.Stderr, opts)
	log = slog.New(handler)
}

// SetDebug switches the level at runtime (the -v flag).
func SetDebug(on bool) {
	if on {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// Logger exposes the underlying logger for components that take a *slog.Logger.
func Logger() *slog.Logger {
	return log
}

func Debug(msg string, args ...any) {
	log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	log.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	log.Error(msg, args...)
	os.Exit(1)
}
