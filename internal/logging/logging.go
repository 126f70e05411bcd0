// Package logging provides structured logging using Go's slog package.
//
// Every record written through the *Context helpers carries the id of the
// assembly run found in the context, so concurrent exercise and equation
// lookups can be traced back to one build.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// AssemblyIDKey is the context key for the id of one assembly run.
	AssemblyIDKey ContextKey = "assembly_id"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
)

func init() {
	// Initialize with a default logger (JSON format, Info level)
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// ParseLevel converts a level name (debug, info, warn, error) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat converts a format name (json, text) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q", s)
}

// InitLogger initializes the global logger with the specified level and format.
// Logs go to stderr so that document output on stdout stays clean.
func InitLogger(level Level, format Format) {
	InitLoggerWithWriter(os.Stderr, level, format)
}

// InitLoggerWithWriter initializes the global logger writing to w.
func InitLoggerWithWriter(w io.Writer, level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// NewAssemblyID returns a fresh id for one assembly run.
func NewAssemblyID() string {
	return uuid.NewString()
}

// WithAssemblyID adds an assembly ID to the context.
func WithAssemblyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, AssemblyIDKey, id)
}

// GetAssemblyID retrieves the assembly ID from the context.
func GetAssemblyID(ctx context.Context) string {
	if id, ok := ctx.Value(AssemblyIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if id := GetAssemblyID(ctx); id != "" {
		logger = logger.With("assembly_id", id)
	}
	return logger
}

// DebugContext logs a debug message with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Debug(msg, args...)
}

// InfoContext logs an info message with context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

// WarnContext logs a warning message with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

// ErrorContext logs an error message with context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// HTTPRequestContext logs an outbound HTTP request with context and common fields.
func HTTPRequestContext(ctx context.Context, method, url string, statusCode int, duration time.Duration, args ...any) {
	allArgs := []any{
		"method", method,
		"url", url,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Info("http_request", allArgs...)
}

// ConversionError logs a failed equation conversion with the offending
// source and whatever the converter returned.
func ConversionError(ctx context.Context, tag, source, returned string, err error) {
	LoggerFromContext(ctx).Error(
		fmt.Sprintf("Error converting math in %s:\n  math: %s\n  mathml: %s", tag, source, returned),
		"tag", tag,
		"error", err.Error(),
	)
}

// MissingExercise logs an exercise link the exercise service knows nothing about.
func MissingExercise(ctx context.Context, tag, href string) {
	LoggerFromContext(ctx).Warn("missing_exercise", "tag", tag, "href", href)
}

// PipelineStage logs the completion of one injection rule.
func PipelineStage(ctx context.Context, rule string, matches int, duration time.Duration) {
	LoggerFromContext(ctx).Debug("pipeline_stage",
		"rule", rule,
		"matches", matches,
		"duration_ms", duration.Milliseconds(),
	)
}
