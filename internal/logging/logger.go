// Package logging configures the zerolog logger shared by the leasedesk
// binaries and hands out component-scoped children of it.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Packages should derive from it with
// Component rather than write to it directly.
var Logger zerolog.Logger

var (
	fileMu  sync.Mutex
	logFile *os.File
)

type ctxKey struct{}

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format is console or json.
	Format string

	// Output overrides the destination. Defaults to stderr.
	Output io.Writer

	// File, when set, receives the log stream instead of Output.
	File string

	EnableCaller bool
}

// Init replaces the global logger. Any file opened by an earlier call is
// closed first.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	fileMu.Lock()
	defer fileMu.Unlock()
	closeFileLocked()
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		out = f
	}

	// A log file always gets JSON; colour codes are noise there.
	if strings.EqualFold(cfg.Format, "console") && cfg.File == "" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lc := zerolog.New(out).With().Timestamp()
	if cfg.EnableCaller {
		lc = lc.Caller()
	}
	Logger = lc.Logger()
	return nil
}

// Close releases the log file opened by Init, if any.
func Close() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	return closeFileLocked()
}

func closeFileLocked() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ParseLevel accepts zerolog level names plus "warning". An empty level
// means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return parsed, nil
}

// WithContext attaches a logger to ctx.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached to ctx, falling back to fallback.
func FromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return fallback
}

// Component creates a logger with a component field.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithActor adds the acting user to a logger.
func WithActor(logger zerolog.Logger, actorID string) zerolog.Logger {
	if actorID == "" {
		return logger
	}
	return logger.With().Str("actor_id", actorID).Logger()
}

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
