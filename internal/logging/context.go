package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID for a single get_data call.
func GenerateTraceID() string {
	return uuid.New().String()
}

// FromContext retrieves the logger carried on ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext returns a context carrying the given logger.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext mints a trace ID for a request and returns both the
// context and a logger pre-tagged with it, for propagation across stages.
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := Default().WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// RequestContext creates a logger context scoped to a single FCP request.
func RequestContext(venue, symbol, interval string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"venue":    venue,
		"symbol":   symbol,
		"interval": interval,
	}).WithComponent("fcp")
}

// SourceContext creates a logger context scoped to one source stage
// (cache, vision, rest) within the orchestrator.
func SourceContext(source, symbol string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"source": source,
		"symbol": symbol,
	}).WithComponent("fcp.source")
}
