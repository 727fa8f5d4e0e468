// Package telemetry adapts the teacher's core.Telemetry/Span interfaces to
// an OpenTelemetry-backed implementation, so chain and workflow execution
// can be wrapped in spans the way resilience.Instrumentation wraps calls.
// NewOtelTracerProvider mirrors telemetry/otel.go's OTLP/HTTP exporter
// wiring, trimmed to tracing only (the gateway has no metrics Non-goal to
// justify pulling in the separate otel/sdk/metric module).
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Span is the minimal span capability surface components depend on.
type Span interface {
	SetAttribute(key string, value interface{})
	RecordError(err error)
	End()
}

// Telemetry is the capability surface for starting spans and recording
// counters, mirroring core.Telemetry.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordCounter(ctx context.Context, name string, value int64, tags map[string]string)
}

// otelSpan adapts trace.Span to the narrower Span interface.
type otelSpan struct{ s trace.Span }

func (o otelSpan) SetAttribute(key string, value interface{}) {
	o.s.SetAttributes(attribute.String(key, toString(value)))
}
func (o otelSpan) RecordError(err error) {
	if err != nil {
		o.s.RecordError(err)
	}
}
func (o otelSpan) End() { o.s.End() }

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// OtelTelemetry is the default Telemetry. It reads from whatever
// TracerProvider/MeterProvider are currently set globally — either the
// process defaults (no-op) or, for tracing, the TracerProvider that
// NewOtelTracerProvider installed (it installs no MeterProvider).
type OtelTelemetry struct {
	tracerName string
}

func NewOtelTelemetry(tracerName string) *OtelTelemetry {
	return &OtelTelemetry{tracerName: tracerName}
}

func (t *OtelTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, s := otel.Tracer(t.tracerName).Start(ctx, name)
	return ctx, otelSpan{s: s}
}

func (t *OtelTelemetry) RecordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	counter, err := otel.Meter(t.tracerName).Int64Counter(name)
	if err != nil {
		return
	}
	counter.Add(ctx, value, otelmetric.WithAttributes(attrs...))
}

// NewOtelTracerProvider builds and installs a real sdktrace.TracerProvider
// exporting spans over OTLP/HTTP to endpoint, sampling at ratio (0..1).
// It sets the result as the global tracer provider, the way
// telemetry/otel.go's NewOTelProvider does with otel.SetTracerProvider, so
// every OtelTelemetry built afterward picks it up through otel.Tracer().
// The caller owns the returned shutdown func and must call it on exit to
// flush pending spans.
func NewOtelTracerProvider(ctx context.Context, serviceName, endpoint string, samplingRatio float64) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		endpoint = "localhost:4318"
	}
	if samplingRatio <= 0 {
		samplingRatio = 1
	}
	if samplingRatio > 1 {
		samplingRatio = 1
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create otlp trace exporter for %s: %w", endpoint, err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(samplingRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// NoOp discards every call; used when no tracer provider is configured.
type NoOp struct{}

func (NoOp) StartSpan(ctx context.Context, _ string) (context.Context, Span) { return ctx, noOpSpan{} }
func (NoOp) RecordCounter(context.Context, string, int64, map[string]string) {}

type noOpSpan struct{}

func (noOpSpan) SetAttribute(string, interface{}) {}
func (noOpSpan) RecordError(error)                {}
func (noOpSpan) End()                             {}
