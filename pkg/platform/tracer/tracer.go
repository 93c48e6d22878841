// Package tracer is a thin span API over OpenTelemetry so services can be traced
// without importing otel throughout, and run with a no-op tracer in tests.
package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span)
}

// Span is ended exactly once with the error of the traced operation, if any.
type Span interface {
	End(err error)
	SetAttributes(attrs ...attribute.KeyValue)
}

// String and Int re-export the attribute constructors used by callers.
var (
	String = attribute.String
	Int    = attribute.Int
)

type otelTracer struct {
	tracer trace.Tracer
}

// NewOTel returns a Tracer backed by the global OpenTelemetry provider.
func NewOTel(instrumentation string) Tracer {
	return &otelTracer{tracer: otel.Tracer(instrumentation)}
}

func (t *otelTracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func (s *otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

type noopTracer struct{}

// NewNoop returns a Tracer that records nothing.
func NewNoop() Tracer { return noopTracer{} }

func (noopTracer) Start(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                         {}
func (noopSpan) SetAttributes(...attribute.KeyValue) {}
