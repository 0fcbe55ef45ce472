// Package utils provides shared helpers: logging setup and small utilities.
package utils

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// InitLogger initializes the global slog logger.
// Level is controlled by CADENZA_LOG_LEVEL (debug, info, warn, error; default info).
// When CADENZA_LOG_FILE is set, log output is duplicated to that file.
func InitLogger() {
	loggerOnce.Do(func() {
		logger = buildLogger()
		slog.SetDefault(logger)
	})
}

// GetLogger returns the global logger, initializing it on first use.
func GetLogger() *slog.Logger {
	InitLogger()
	return logger
}

func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(os.Getenv("CADENZA_LOG_LEVEL"))) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var w io.Writer = os.Stderr
	if path := strings.TrimSpace(os.Getenv("CADENZA_LOG_FILE")); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
				w = io.MultiWriter(os.Stderr, f)
			}
		}
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
