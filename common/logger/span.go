package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentdesk"

// SpanContext pairs a span with the context carrying it.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan creates a new span as a child of the current trace context.
// Returns a SpanContext that must be ended with End().
//
// Example:
//
//	sc := logger.StartSpan(ctx, "chat.send_message", trace.WithSpanKind(trace.SpanKindClient))
//	defer sc.End()
//	ctx = sc.Context()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// StartLinkedSpan starts a span under ctx that links to the trace named by
// traceID, for work that continues a trace recorded by another process, such
// as relaying a published session event. An empty or malformed traceID starts
// a plain child span.
func StartLinkedSpan(ctx context.Context, traceID string, name string, opts ...trace.SpanStartOption) *SpanContext {
	if tid, err := trace.TraceIDFromHex(traceID); err == nil {
		remote := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    tid,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: remote}))
	}
	return StartSpan(ctx, name, opts...)
}

// TraceIDFromContext returns the hex trace id of the span in ctx, or "" when
// ctx carries no valid span.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Context returns ctx with the span attached.
func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

// End completes the span.
func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}

// RecordError records err on the span; nil is ignored.
func (sc *SpanContext) RecordError(err error) {
	if sc.span != nil && err != nil {
		sc.span.RecordError(err)
	}
}
