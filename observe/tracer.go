package observe

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Operation names used by the cache.
const (
	OpFetch      = "fetch"
	OpRefetch    = "refetch"
	OpMutate     = "mutate"
	OpInvalidate = "invalidate"
	OpGC         = "gc"
)

// OpMeta describes one cache operation for telemetry purposes.
type OpMeta struct {
	Op      string // fetch|refetch|mutate|invalidate|gc
	Entity  string // entity name (may be empty)
	Leaf    string // leaf or mutation name (may be empty)
	KeyHash uint64 // key fingerprint; the key itself is never exported
}

// SpanName returns the deterministic span name:
// cache.<op>[.<entity>[.<leaf>]]
func (m OpMeta) SpanName() string {
	name := "cache." + m.Op
	if m.Entity != "" {
		name += "." + m.Entity
	}
	if m.Leaf != "" {
		name += "." + m.Leaf
	}
	return name
}

func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("cache.op", m.Op)}
	if m.Entity != "" {
		attrs = append(attrs, attribute.String("cache.entity", m.Entity))
	}
	if m.Leaf != "" {
		attrs = append(attrs, attribute.String("cache.leaf", m.Leaf))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with cache span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a span carrying the operation attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("cache.error", false))
	if meta.KeyHash != 0 {
		attrs = append(attrs, attribute.String("cache.key_hash", strconv.FormatUint(meta.KeyHash, 16)))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("cache.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
