package observe

import (
	"context"
	"errors"
	"time"
)

// Instrumenter wraps transport-bound cache operations with tracing,
// metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Instrumenter struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewInstrumenter creates an Instrumenter. Nil components are replaced
// with no-ops.
func NewInstrumenter(tracer Tracer, metrics Metrics, logger Logger) *Instrumenter {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Instrumenter{tracer: tracer, metrics: metrics, logger: logger}
}

// NopInstrumenter returns an Instrumenter that records nothing.
func NopInstrumenter() *Instrumenter {
	return NewInstrumenter(nil, nil, nil)
}

// InstrumenterFromObserver builds an Instrumenter from an Observer.
func InstrumenterFromObserver(obs Observer) (*Instrumenter, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewInstrumenter(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the instrumenter's logger.
func (i *Instrumenter) Logger() Logger { return i.logger }

// Run executes fn inside a span, records its duration and outcome and
// logs the result.
func (i *Instrumenter) Run(ctx context.Context, meta OpMeta, fn func(ctx context.Context) error) error {
	ctx, span := i.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	i.tracer.EndSpan(span, err)
	i.metrics.RecordOp(ctx, meta, duration, err)

	logger := i.logger.WithOp(meta)
	fields := []Field{{Key: "duration_ms", Value: float64(duration.Milliseconds())}}
	switch {
	case err == nil:
		logger.Debug(ctx, "cache operation completed", fields...)
	case errors.Is(err, context.Canceled):
		logger.Info(ctx, "cache operation canceled", fields...)
	default:
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Warn(ctx, "cache operation failed", fields...)
	}
	return err
}

// Hit records a fetch served from the store.
func (i *Instrumenter) Hit(ctx context.Context, meta OpMeta) {
	i.metrics.RecordHit(ctx, meta)
}

// Shared records a caller that attached to an in-flight fetch.
func (i *Instrumenter) Shared(ctx context.Context, meta OpMeta) {
	i.metrics.RecordShared(ctx, meta)
	i.logger.WithOp(meta).Debug(ctx, "joined in-flight fetch")
}
