// Package logging builds the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ParseLevel maps debug, info, warn and error (case-insensitive) to a
// slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// Init builds the logger and installs it as the slog default.
func Init(w io.Writer, level string) (*slog.Logger, error) {
	logger, err := New(w, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// WithComponent tags every record of logger with a component name.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// LogDuration logs msg with the time elapsed since start.
func LogDuration(logger *slog.Logger, level slog.Level, msg string, start time.Time, attrs ...any) {
	attrs = append(attrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	logger.Log(context.Background(), level, msg, attrs...)
}
