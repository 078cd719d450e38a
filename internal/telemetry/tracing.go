// Package telemetry wires OpenTelemetry tracing and Prometheus metrics for
// the request dispatcher. It deliberately stays a thin, direct user of the
// otel API rather than wrapping it behind a custom interface — the
// dispatcher is the only caller, so an abstraction layer would add
// indirection without a second implementation to justify it.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process's TracerProvider and the tracer the
// dispatcher pulls request spans from.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a TracerProvider exporting spans to w (os.Stdout in
// development; nil disables tracing and returns a no-op provider).
func NewProvider(serviceName string, w io.Writer) (*Provider, error) {
	if w == nil {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		otel.SetTracerProvider(tp)
		return &Provider{tp: tp, tracer: tp.Tracer(serviceName)}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("building stdout trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("merging otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp, tracer: tp.Tracer(serviceName)}, nil
}

// Shutdown flushes and releases the provider's exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// StartRequestSpan starts a span for one incoming request, tagged with
// method, URI, and request ID per the dispatcher's tracing contract.
func (p *Provider) StartRequestSpan(ctx context.Context, method, uri, requestID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "sealproxy.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.target", uri),
			attribute.String("request.id", requestID),
		),
	)
}
