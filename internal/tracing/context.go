package tracing

import "context"

// Context keys for trace propagation. The active span is carried in the
// request context; opening a scope derives a child context, so the caller's
// own context is naturally restored when the scope ends.
type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
	spanKey    contextKey = "span"
)

// ContextWithSpan returns a context carrying the span as the active one.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, span.TraceID())
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID())
	return context.WithValue(ctx, spanKey, span)
}

// TraceIDFrom retrieves the in-flight trace ID, or "" if none is active.
func TraceIDFrom(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}

// SpanIDFrom retrieves the active span ID, or "" if none is active.
func SpanIDFrom(ctx context.Context) SpanID {
	if spanID, ok := ctx.Value(spanIDKey).(SpanID); ok {
		return spanID
	}
	return ""
}

// SpanFrom retrieves the active span, or nil if none is active.
func SpanFrom(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}
