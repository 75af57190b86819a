package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache operation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOp records one transport-bound operation.
	RecordOp(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordHit records a fetch served from a fresh entry.
	RecordHit(ctx context.Context, meta OpMeta)

	// RecordShared records a caller that joined an in-flight fetch.
	RecordShared(ctx context.Context, meta OpMeta)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	hitCount     metric.Int64Counter
	sharedCount  metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the cache instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"cache.op.total",
		metric.WithDescription("Total number of transport-bound cache operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"cache.op.errors",
		metric.WithDescription("Total number of failed cache operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	hitCount, err := meter.Int64Counter(
		"cache.fetch.hits",
		metric.WithDescription("Fetches served from a fresh cache entry"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	sharedCount, err := meter.Int64Counter(
		"cache.fetch.shared",
		metric.WithDescription("Fetches that joined an in-flight request for the same key"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.op.duration_ms",
		metric.WithDescription("Transport-bound cache operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		hitCount:     hitCount,
		sharedCount:  sharedCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordOp(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)
	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordHit(ctx context.Context, meta OpMeta) {
	m.hitCount.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

func (m *metricsImpl) RecordShared(ctx context.Context, meta OpMeta) {
	m.sharedCount.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

type noopMetrics struct{}

func (noopMetrics) RecordOp(context.Context, OpMeta, time.Duration, error) {}
func (noopMetrics) RecordHit(context.Context, OpMeta)                      {}
func (noopMetrics) RecordShared(context.Context, OpMeta)                   {}
