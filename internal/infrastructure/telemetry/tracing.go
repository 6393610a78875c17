package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of application spans
const TracerName = "github.com/storefront/backend"

// Span attribute keys set by application services
const (
	SpanAttrOrderID    = attribute.Key("order.id")
	SpanAttrItemCount  = attribute.Key("order.item_count")
	SpanAttrObjectKey  = attribute.Key("storage.key")
	SpanAttrPageURL    = attribute.Key("page.url")
	SpanAttrInstalled  = attribute.Key("tagging.installed")
	SpanAttrStrategy   = attribute.Key("tagging.strategy")
	SpanAttrTrackingID = attribute.Key("tagging.tracking_id")
)

// StartSpan starts an internal span on the global tracer. The caller ends it,
// usually through EndSpan.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartServiceSpan starts a span named service.method
func StartServiceSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, attrs...)
}

// EndSpan sets the span status from err and ends it
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "storefront", "SubmitOrder")
//	defer func() { telemetry.EndSpan(span, err) }()
func EndSpan(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordError records err on the span and marks it failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDs returns the trace and span IDs of the span in ctx. Both are empty
// when ctx carries no sampled span context.
func TraceIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
