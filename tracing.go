package vectorium

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/go-lynx/vectorium"

// startSpan opens a span on the global tracer provider. Without an
// installed provider the span is a no-op.
func startSpan(op, plugin string) (context.Context, trace.Span) {
	var opts []trace.SpanStartOption
	if plugin != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("plugin.name", plugin)))
	}
	return otel.Tracer(tracerName).Start(context.Background(), op, opts...)
}

// endSpan records err, if any, and ends span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
