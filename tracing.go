package messaging

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/slush-dev/fcm-admin"

func defaultTracer() trace.Tracer {
	return otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(Version))
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// endSpan marks span as failed when err is non-nil and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var fe *Error
		if errors.As(err, &fe) {
			span.SetAttributes(
				attribute.String("fcm.error_code", string(fe.Code)),
				attribute.String("fcm.messaging_error_code", string(fe.MessagingCode)),
			)
		}
	}
	span.End()
}
