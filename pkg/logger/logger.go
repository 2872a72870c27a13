// Package logger provides component-tagged logging for larkbridge,
// backed by log/slog.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	level   atomic.Int32
	backend atomic.Pointer[slog.Logger]
)

func init() {
	level.Store(int32(INFO))
	backend.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}

// SetLevel sets the minimum level emitted by the package-level functions.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// SetLevelFromString sets the level from a config string. Unknown values
// keep the current level.
func SetLevelFromString(s string) {
	switch s {
	case "debug":
		SetLevel(DEBUG)
	case "info":
		SetLevel(INFO)
	case "warn", "warning":
		SetLevel(WARN)
	case "error":
		SetLevel(ERROR)
	}
}

// SetBackend replaces the underlying slog logger. Tests use this to capture output.
func SetBackend(l *slog.Logger) {
	if l != nil {
		backend.Store(l)
	}
}

func log(l Level, slogLevel slog.Level, component, msg string, fields map[string]any) {
	if int32(l) < level.Load() {
		return
	}
	attrs := make([]any, 0, 2+2*len(fields))
	attrs = append(attrs, "component", component)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	backend.Load().Log(context.Background(), slogLevel, msg, attrs...)
}

// DebugC logs a debug message for a component.
func DebugC(component, msg string) { log(DEBUG, slog.LevelDebug, component, msg, nil) }

// DebugCF logs a debug message with structured fields.
func DebugCF(component, msg string, fields map[string]any) {
	log(DEBUG, slog.LevelDebug, component, msg, fields)
}

// InfoC logs an info message for a component.
func InfoC(component, msg string) { log(INFO, slog.LevelInfo, component, msg, nil) }

// InfoCF logs an info message with structured fields.
func InfoCF(component, msg string, fields map[string]any) {
	log(INFO, slog.LevelInfo, component, msg, fields)
}

// WarnC logs a warning for a component.
func WarnC(component, msg string) { log(WARN, slog.LevelWarn, component, msg, nil) }

// WarnCF logs a warning with structured fields.
func WarnCF(component, msg string, fields map[string]any) {
	log(WARN, slog.LevelWarn, component, msg, fields)
}

// ErrorC logs an error for a component.
func ErrorC(component, msg string) { log(ERROR, slog.LevelError, component, msg, nil) }

// ErrorCF logs an error with structured fields.
func ErrorCF(component, msg string, fields map[string]any) {
	log(ERROR, slog.LevelError, component, msg, fields)
}
