// Package observability carries build-scoped logging context through the
// pipeline so every log line of a build can be correlated by job id and
// phase.
package observability

import (
	"context"
	"log/slog"
)

// LogContext holds structured logging context for one build.
type LogContext struct {
	JobID string
	Phase string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithJobID adds a job id to the context.
func WithJobID(ctx context.Context, jobID string) context.Context {
	lc := extract(ctx)
	lc.JobID = jobID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithPhase adds the current build phase to the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	lc := extract(ctx)
	lc.Phase = phase
	return context.WithValue(ctx, logContextKey, lc)
}

func extract(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func attrs(ctx context.Context) []slog.Attr {
	lc := extract(ctx)
	var out []slog.Attr
	if lc.JobID != "" {
		out = append(out, slog.String("job.id", lc.JobID))
	}
	if lc.Phase != "" {
		out = append(out, slog.String("phase", lc.Phase))
	}
	return out
}

// InfoContext logs at info level with the build context attached.
func InfoContext(ctx context.Context, msg string, extra ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelInfo, msg, append(attrs(ctx), extra...)...)
}

// WarnContext logs at warn level with the build context attached.
func WarnContext(ctx context.Context, msg string, extra ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelWarn, msg, append(attrs(ctx), extra...)...)
}

// ErrorContext logs at error level with the build context attached.
func ErrorContext(ctx context.Context, msg string, extra ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelError, msg, append(attrs(ctx), extra...)...)
}

// DebugContext logs at debug level with the build context attached.
func DebugContext(ctx context.Context, msg string, extra ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelDebug, msg, append(attrs(ctx), extra...)...)
}
