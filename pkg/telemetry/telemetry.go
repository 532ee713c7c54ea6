// Package telemetry wraps the OpenTelemetry API behind a small helper surface
// so SDK packages can annotate spans without owning exporter setup.
package telemetry

import (
	"context"
	"regexp"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/cexll/claudesdk-go"

var defaultTracer atomic.Pointer[trace.Tracer]

// Tracer returns the tracer used by SDK spans. Falls back to the global
// otel tracer provider, and to a noop tracer when none is registered.
func Tracer() trace.Tracer {
	if t := defaultTracer.Load(); t != nil {
		return *t
	}
	if tp := otel.GetTracerProvider(); tp != nil {
		return tp.Tracer(tracerName)
	}
	return noop.NewTracerProvider().Tracer(tracerName)
}

// SetTracer overrides the tracer used by StartSpan. Intended for tests and
// for applications that manage their own provider.
func SetTracer(t trace.Tracer) {
	if t == nil {
		defaultTracer.Store(nil)
		return
	}
	defaultTracer.Store(&t)
}

// StartSpan begins a span on the SDK tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// EndSpan records err (when non-nil) and ends the span.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var secretPattern = regexp.MustCompile(`(?i)(sk-[a-z0-9-]{8,}|bearer\s+\S+|x-api-key\s*[=:]\s*\S+)`)

// SanitizeAttributes masks values that look like credentials before they are
// attached to a span.
func SanitizeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		if kv.Value.Type() == attribute.STRING {
			masked := secretPattern.ReplaceAllString(kv.Value.AsString(), "***REDACTED***")
			out = append(out, attribute.String(string(kv.Key), masked))
			continue
		}
		out = append(out, kv)
	}
	return out
}
